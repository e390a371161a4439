// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import "errors"

var (
	// ErrInvalidMeshSize is returned when a warp mesh has zero quads along an axis.
	ErrInvalidMeshSize = errors.New("timewarp: warp mesh width and height must be at least 1")

	// ErrInvalidProjection is returned for degenerate projection parameters.
	ErrInvalidProjection = errors.New("timewarp: invalid projection")

	// ErrEmptyFrameStore is returned when reprojecting before any frame was published.
	ErrEmptyFrameStore = errors.New("timewarp: no frame has been rendered yet")

	// ErrNilFrame is returned when a reprojector receives a nil or incomplete frame.
	ErrNilFrame = errors.New("timewarp: nil frame")

	// ErrSizeMismatch is returned when buffers of different dimensions are combined.
	ErrSizeMismatch = errors.New("timewarp: size mismatch")

	// ErrUnknownAlgorithm is returned when no reprojector is registered for a kind.
	ErrUnknownAlgorithm = errors.New("timewarp: unknown reprojection algorithm")
)
