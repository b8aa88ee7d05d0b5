/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package spatial

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestComposeAndRelative(t *testing.T) {
	parent := AtYaw(1, 2, 3, 90)
	child := AtYaw(0.5, 0, -1, 30)
	world := parent.Mul(child)
	back := world.RelativeTo(parent)
	if !back.ApproxEqual(child) {
		t.Fatalf("RelativeTo did not invert Mul: got %v want %v", back, child)
	}
	if !parent.Mul(back).ApproxEqual(world) {
		t.Fatalf("round-trip mismatch")
	}
}

func TestYawRotatesAboutY(t *testing.T) {
	p := AtYaw(0, 0, 0, 90)
	got := p.Mul(At(1, 0, 0)).Position
	want := mgl64.Vec3{0, 0, -1}
	if !got.ApproxEqualThreshold(want, 1e-9) {
		t.Fatalf("rotated point = %v, want %v", got, want)
	}
}

func TestInverseIsIdentity(t *testing.T) {
	p := AtYaw(4, -2, 7, 45)
	if !p.Mul(p.Inverse()).ApproxEqual(IdentityPose()) {
		t.Fatalf("p * p^-1 is not identity")
	}
}

func TestZeroPoseNormalizes(t *testing.T) {
	var p Pose
	if !p.ApproxEqual(IdentityPose()) {
		t.Fatalf("zero pose should compare equal to identity")
	}
}

func TestOppositeQuaternionSameOrientation(t *testing.T) {
	p := AtYaw(0, 0, 0, 60)
	q := p
	q.Rotation = mgl64.Quat{W: -p.Rotation.W, V: p.Rotation.V.Mul(-1)}
	if !p.ApproxEqual(q) {
		t.Fatalf("q and -q should be equal orientations")
	}
}

func TestClampScaleAndDistance(t *testing.T) {
	v := ClampScale(mgl64.Vec3{0.01, 5, 100}, 0.05, 20)
	if v != (mgl64.Vec3{0.05, 5, 20}) {
		t.Fatalf("ClampScale = %v", v)
	}
	if d := Distance(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{3, 4, 0}); math.Abs(d-5) > 1e-12 {
		t.Fatalf("Distance = %v, want 5", d)
	}
	if Round(1.23456, 2) != 1.23 {
		t.Fatalf("Round mismatch")
	}
}
