// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"fmt"
	"strings"
)

// Algorithm synthesizes the view from fresh out of a previously rendered
// frame. Implementations must not modify src.
type Algorithm interface {
	// Name returns a short identifier such as "mesh" or "raymarch".
	Name() string

	// Reproject writes the warped view into dst. dst may differ in size
	// from src; the warp is resolution independent.
	Reproject(src *RenderedFrame, fresh Pose, params Params, dst *Image) error
}

// AlgorithmKind selects a reprojection algorithm.
type AlgorithmKind int

const (
	// AlgorithmMesh selects the depth-displaced warp mesh.
	AlgorithmMesh AlgorithmKind = iota
	// AlgorithmRayMarch selects the per-pixel depth ray march.
	AlgorithmRayMarch
)

// String returns the canonical name of k.
func (k AlgorithmKind) String() string {
	switch k {
	case AlgorithmMesh:
		return "mesh"
	case AlgorithmRayMarch:
		return "raymarch"
	default:
		return fmt.Sprintf("AlgorithmKind(%d)", int(k))
	}
}

// ParseAlgorithmKind parses "mesh" or "raymarch" (also "ray").
func ParseAlgorithmKind(s string) (AlgorithmKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mesh", "":
		return AlgorithmMesh, nil
	case "raymarch", "ray", "ray-march":
		return AlgorithmRayMarch, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k AlgorithmKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *AlgorithmKind) UnmarshalText(b []byte) error {
	v, err := ParseAlgorithmKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// CheckReprojectArgs validates the arguments every Algorithm.Reproject
// receives: a valid stored frame and a non-empty destination.
func CheckReprojectArgs(src *RenderedFrame, dst *Image) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if dst == nil {
		return fmt.Errorf("%w: destination image", ErrNilFrame)
	}
	if dst.Width() == 0 || dst.Height() == 0 {
		return fmt.Errorf("%w: empty destination", ErrSizeMismatch)
	}
	return nil
}
