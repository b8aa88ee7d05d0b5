/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package spatial holds the pose and transform value types shared by the
// scene, the commands and the manipulation session.
package spatial

// Float values use float64 throughout to match mgl64; rotations are unit
// quaternions.

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the tolerance used by ApproxEqual comparisons.
const Epsilon = 1e-9

// Pose is a rigid placement: position plus orientation.
type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// Transform is a pose with a per-axis scale.
type Transform struct {
	Pose
	Scale mgl64.Vec3
}

// IdentityPose is the origin with no rotation.
func IdentityPose() Pose { return Pose{Rotation: mgl64.QuatIdent()} }

// At returns an unrotated pose at x,y,z.
func At(x, y, z float64) Pose { return Pose{Position: mgl64.Vec3{x, y, z}, Rotation: mgl64.QuatIdent()} }

// AtYaw returns a pose at x,y,z rotated yawDeg degrees about +Y.
func AtYaw(x, y, z, yawDeg float64) Pose {
	return Pose{
		Position: mgl64.Vec3{x, y, z},
		Rotation: mgl64.QuatRotate(mgl64.DegToRad(yawDeg), mgl64.Vec3{0, 1, 0}),
	}
}

// Normalized returns p with a unit rotation. The zero quaternion maps to identity.
func (p Pose) Normalized() Pose {
	if p.Rotation.Len() == 0 {
		p.Rotation = mgl64.QuatIdent()
		return p
	}
	p.Rotation = p.Rotation.Normalize()
	return p
}

// Mul composes p with child, where child is expressed in p's local frame.
func (p Pose) Mul(child Pose) Pose {
	p = p.Normalized()
	child = child.Normalized()
	return Pose{
		Position: p.Position.Add(p.Rotation.Rotate(child.Position)),
		Rotation: p.Rotation.Mul(child.Rotation).Normalize(),
	}
}

// Inverse returns the pose that undoes p.
func (p Pose) Inverse() Pose {
	p = p.Normalized()
	inv := p.Rotation.Inverse()
	return Pose{Position: inv.Rotate(p.Position.Mul(-1)), Rotation: inv}
}

// RelativeTo expresses p in the local frame of parent, so that
// parent.Mul(p.RelativeTo(parent)) == p.
func (p Pose) RelativeTo(parent Pose) Pose { return parent.Inverse().Mul(p) }

// ApproxEqual compares positions component-wise and rotations as orientations
// (q and -q are the same orientation).
func (p Pose) ApproxEqual(o Pose) bool {
	p, o = p.Normalized(), o.Normalized()
	if !p.Position.ApproxEqualThreshold(o.Position, 1e-6) {
		return false
	}
	return math.Abs(math.Abs(p.Rotation.Dot(o.Rotation))-1) < 1e-6
}

func (p Pose) String() string {
	p = p.Normalized()
	return fmt.Sprintf("pos(%s) rot(%.3f %.3f %.3f %.3f)", fmtVec(p.Position), p.Rotation.W, p.Rotation.V[0], p.Rotation.V[1], p.Rotation.V[2])
}

// UniformScale returns (s, s, s).
func UniformScale(s float64) mgl64.Vec3 { return mgl64.Vec3{s, s, s} }

// ScaleBy multiplies each component of v by f.
func ScaleBy(v mgl64.Vec3, f float64) mgl64.Vec3 { return v.Mul(f) }

// ClampScale clamps each component of v to [lo, hi]. A non-positive bound is ignored.
func ClampScale(v mgl64.Vec3, lo, hi float64) mgl64.Vec3 {
	for i := range v {
		if lo > 0 && v[i] < lo {
			v[i] = lo
		}
		if hi > 0 && v[i] > hi {
			v[i] = hi
		}
	}
	return v
}

// Distance is the euclidean distance between a and b.
func Distance(a, b mgl64.Vec3) float64 { return a.Sub(b).Len() }

// Round rounds v to n decimal places deterministically.
func Round(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

func fmtVec(v mgl64.Vec3) string {
	return fmt.Sprintf("%g %g %g", Round(v[0], 3), Round(v[1], 3), Round(v[2], 3))
}

// FormatVec renders v with three decimals, as used in CLI output.
func FormatVec(v mgl64.Vec3) string { return fmtVec(v) }
