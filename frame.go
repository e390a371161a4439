// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// RenderedFrame is the output of one scene render: color, window depth and
// the matrices it was produced with. A published frame is never modified.
type RenderedFrame struct {
	Color      *Image
	Depth      *DepthMap
	Camera     mgl32.Mat4 // camera-to-world matrix used for the render
	Pose       Pose
	Projection Projection
	Seq        uint64
	RenderedAt time.Time
}

// NewRenderedFrame allocates an empty frame. Color is transparent and depth
// is at the far plane.
func NewRenderedFrame(width, height int, proj Projection) *RenderedFrame {
	return &RenderedFrame{
		Color:      NewImage(width, height),
		Depth:      NewDepthMap(width, height),
		Camera:     mgl32.Ident4(),
		Pose:       IdentityPose(),
		Projection: proj,
	}
}

// Width returns the frame width in pixels.
func (f *RenderedFrame) Width() int { return f.Color.Width() }

// Height returns the frame height in pixels.
func (f *RenderedFrame) Height() int { return f.Color.Height() }

// SetPose records p as the render pose and updates Camera to match.
func (f *RenderedFrame) SetPose(p Pose) {
	f.Pose = p
	f.Camera = p.CameraMatrix()
}

// ViewProjection returns projection × view for the stored camera.
func (f *RenderedFrame) ViewProjection() mgl32.Mat4 {
	return f.Projection.Matrix().Mul4(InverseAffine(f.Camera))
}

// Validate checks that f carries matching color and depth buffers.
func (f *RenderedFrame) Validate() error {
	if f == nil || f.Color == nil || f.Depth == nil {
		return ErrNilFrame
	}
	if f.Color.Width() != f.Depth.Width() || f.Color.Height() != f.Depth.Height() {
		return fmt.Errorf("%w: color %dx%d, depth %dx%d", ErrSizeMismatch,
			f.Color.Width(), f.Color.Height(), f.Depth.Width(), f.Depth.Height())
	}
	if f.Color.Width() == 0 || f.Color.Height() == 0 {
		return fmt.Errorf("%w: empty frame", ErrSizeMismatch)
	}
	return f.Projection.Validate()
}

// CopyFrom deep-copies src into f.
func (f *RenderedFrame) CopyFrom(src *RenderedFrame) error {
	if err := f.Color.CopyFrom(src.Color); err != nil {
		return err
	}
	if err := f.Depth.CopyFrom(src.Depth); err != nil {
		return err
	}
	f.Camera = src.Camera
	f.Pose = src.Pose
	f.Projection = src.Projection
	f.Seq = src.Seq
	f.RenderedAt = src.RenderedAt
	return nil
}
