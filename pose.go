// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Pose is a camera position and orientation in world space.
// Orientation is expected to be a unit quaternion.
type Pose struct {
	Position    mgl32.Vec3
	Orientation mgl32.Quat
}

// IdentityPose is the pose at the origin looking down -Z.
func IdentityPose() Pose {
	return Pose{Orientation: mgl32.QuatIdent()}
}

// NewPose creates a pose, normalizing the orientation.
func NewPose(position mgl32.Vec3, orientation mgl32.Quat) Pose {
	return Pose{Position: position, Orientation: orientation}.Normalized()
}

// unitTolerance is how far from 1 an orientation length may be before
// Normalized rescales it.
const unitTolerance = 1e-6

// Normalized returns p with a unit-length orientation.
// A zero quaternion is replaced by the identity rotation. Orientations
// already within unitTolerance of unit length are returned unchanged.
func (p Pose) Normalized() Pose {
	l := p.Orientation.Len()
	if l == 0 {
		p.Orientation = mgl32.QuatIdent()
	} else if math.Abs(float64(l)-1) > unitTolerance {
		p.Orientation = p.Orientation.Normalize()
	}
	return p
}

// CameraMatrix returns the camera-to-world matrix of p.
func (p Pose) CameraMatrix() mgl32.Mat4 {
	return BuildCameraMatrix(p.Position, p.Orientation)
}

// ViewMatrix returns the world-to-camera matrix of p.
func (p Pose) ViewMatrix() mgl32.Mat4 {
	return InverseAffine(p.CameraMatrix())
}

// Displaced returns p moved by offset expressed in p's local frame.
// Orientation is unchanged.
func (p Pose) Displaced(offset mgl32.Vec3) Pose {
	p.Position = p.Position.Add(p.Orientation.Rotate(offset))
	return p
}

// ApproxEqual reports whether both poses agree within eps. q and -q are
// treated as the same orientation.
func (p Pose) ApproxEqual(o Pose, eps float32) bool {
	for i := range p.Position {
		if d := p.Position[i] - o.Position[i]; d > eps || d < -eps {
			return false
		}
	}
	d := p.Orientation.Dot(o.Orientation)
	if d < 0 {
		d = -d
	}
	return 1-d <= eps
}

// String formats the pose for logs.
func (p Pose) String() string {
	q := p.Orientation
	return fmt.Sprintf("pos(%.3f, %.3f, %.3f) rot(%.3f; %.3f, %.3f, %.3f)",
		p.Position[0], p.Position[1], p.Position[2], q.W, q.V[0], q.V[1], q.V[2])
}

// BuildCameraMatrix composes translation and rotation into a camera-to-world
// matrix: the translation column is position and the upper 3×3 block is the
// rotation of orientation.
func BuildCameraMatrix(position mgl32.Vec3, orientation mgl32.Quat) mgl32.Mat4 {
	return mgl32.Translate3D(position[0], position[1], position[2]).Mul4(orientation.Mat4())
}

// InverseAffine inverts a rigid transform (orthonormal rotation plus
// translation) as Rᵀ and -Rᵀt. It must not be used for projective matrices.
func InverseAffine(m mgl32.Mat4) mgl32.Mat4 {
	rt := m.Mat3().Transpose()
	t := mgl32.Vec3{m[12], m[13], m[14]}
	nt := rt.Mul3x1(t).Mul(-1)
	return mgl32.Mat4{
		rt[0], rt[1], rt[2], 0,
		rt[3], rt[4], rt[5], 0,
		rt[6], rt[7], rt[8], 0,
		nt[0], nt[1], nt[2], 1,
	}
}

// PoseFromCamera extracts the pose of a camera-to-world matrix.
func PoseFromCamera(m mgl32.Mat4) Pose {
	return Pose{
		Position:    mgl32.Vec3{m[12], m[13], m[14]},
		Orientation: mgl32.Mat4ToQuat(m).Normalize(),
	}
}
