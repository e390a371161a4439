// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Projection describes a symmetric perspective frustum with OpenGL clip-space
// conventions. It is fixed for a session.
type Projection struct {
	FovY   float32 // vertical field of view, radians
	Aspect float32 // width / height
	Near   float32
	Far    float32
}

// DefaultProjection returns a 60° frustum for a 16:9 target.
func DefaultProjection() Projection {
	return Projection{
		FovY:   mgl32.DegToRad(60),
		Aspect: 16.0 / 9.0,
		Near:   0.1,
		Far:    100,
	}
}

// NewProjection creates and validates a projection.
func NewProjection(fovY, aspect, near, far float32) (Projection, error) {
	p := Projection{FovY: fovY, Aspect: aspect, Near: near, Far: far}
	if err := p.Validate(); err != nil {
		return Projection{}, err
	}
	return p, nil
}

// Validate rejects projections whose matrix would not be invertible.
func (p Projection) Validate() error {
	switch {
	case !(p.FovY > 0 && p.FovY < math.Pi):
		return fmt.Errorf("%w: fovY %v outside (0, π)", ErrInvalidProjection, p.FovY)
	case !(p.Aspect > 0):
		return fmt.Errorf("%w: aspect %v", ErrInvalidProjection, p.Aspect)
	case !(p.Near > 0):
		return fmt.Errorf("%w: near %v must be positive", ErrInvalidProjection, p.Near)
	case !(p.Far > p.Near):
		return fmt.Errorf("%w: far %v must exceed near %v", ErrInvalidProjection, p.Far, p.Near)
	}
	return nil
}

// WithAspect returns p with the aspect ratio of a width×height target.
func (p Projection) WithAspect(width, height int) Projection {
	if height > 0 {
		p.Aspect = float32(width) / float32(height)
	}
	return p
}

func (p Projection) focal() float32 {
	return float32(1 / math.Tan(float64(p.FovY)/2))
}

// Matrix returns the perspective projection matrix.
func (p Projection) Matrix() mgl32.Mat4 {
	return mgl32.Perspective(p.FovY, p.Aspect, p.Near, p.Far)
}

// Inverse returns the closed-form inverse of Matrix.
func (p Projection) Inverse() mgl32.Mat4 {
	f := p.focal()
	n, fa := p.Near, p.Far
	return mgl32.Mat4{
		p.Aspect / f, 0, 0, 0,
		0, 1 / f, 0, 0,
		0, 0, 0, (n - fa) / (2 * fa * n),
		0, 0, -1, (fa + n) / (2 * fa * n),
	}
}

// LinearDepth converts window depth d in [0, 1] to distance along the view
// axis, in [Near, Far].
func (p Projection) LinearDepth(d float32) float32 {
	z := d*2 - 1
	n, f := p.Near, p.Far
	return 2 * f * n / ((f + n) - z*(f-n))
}

// WindowDepth converts a view-axis distance to window depth. It is the
// inverse of LinearDepth.
func (p Projection) WindowDepth(linear float32) float32 {
	n, f := p.Near, p.Far
	z := ((f + n) - 2*f*n/linear) / (f - n)
	return z*0.5 + 0.5
}
