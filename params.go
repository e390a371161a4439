// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import "math"

// Documented parameter ranges. Values outside are clamped at the boundary
// between configuration and the reprojectors.
const (
	MaxBleed = 0.05

	MinRayPower = 0.1
	MaxRayPower = 8

	MinRayStepSize = 0.0005
	MaxRayStepSize = 1

	MaxDepthOffset        = 1
	MaxOcclusionThreshold = 10
	MaxOcclusionOffset    = 10

	// MaxMarchSteps caps the per-pixel march budget.
	MaxMarchSteps = 4096
)

// MeshParams tunes the mesh reprojector.
type MeshParams struct {
	// BleedRadius is how far outside [0,1] texture space a fragment may lie
	// before it is fully replaced by the background.
	BleedRadius float32
	// BleedTolerance is how far inside [0,1] the fade toward background starts.
	BleedTolerance float32
	// DebugOverlayOpacity blends warp grid lines over the output when > 0.
	DebugOverlayOpacity float32
}

// RayMarchParams tunes the ray-march reprojector.
type RayMarchParams struct {
	// Power biases samples along the ray: t = progress^Power.
	Power float32
	// StepSize is the progress advance per sample, in (0, 1].
	StepSize float32
	// DepthOffset is added to stored linear depth before comparing.
	DepthOffset float32
	// OcclusionThreshold is the base thickness assigned to stored surfaces.
	OcclusionThreshold float32
	// OcclusionOffset scales the current step span into the thickness.
	OcclusionOffset float32
}

// Params groups every reprojection tunable.
type Params struct {
	Mesh       MeshParams
	RayMarch   RayMarchParams
	Background RGBA
}

// DefaultMeshParams returns the mesh defaults.
func DefaultMeshParams() MeshParams {
	return MeshParams{
		BleedRadius:    0.02,
		BleedTolerance: 0.005,
	}
}

// DefaultRayMarchParams returns the ray-march defaults.
func DefaultRayMarchParams() RayMarchParams {
	return RayMarchParams{
		Power:              1.5,
		StepSize:           0.01,
		DepthOffset:        0,
		OcclusionThreshold: 0.25,
		OcclusionOffset:    1.0,
	}
}

// DefaultParams returns defaults for both algorithms on a black background.
func DefaultParams() Params {
	return Params{
		Mesh:       DefaultMeshParams(),
		RayMarch:   DefaultRayMarchParams(),
		Background: Black,
	}
}

// Clamped returns p restricted to the documented ranges. NaN values fall back
// to defaults.
func (p MeshParams) Clamped() MeshParams {
	d := DefaultMeshParams()
	p.BleedRadius = clampParam(p.BleedRadius, 0, MaxBleed, d.BleedRadius)
	p.BleedTolerance = clampParam(p.BleedTolerance, 0, MaxBleed, d.BleedTolerance)
	p.DebugOverlayOpacity = clampParam(p.DebugOverlayOpacity, 0, 1, d.DebugOverlayOpacity)
	return p
}

// Clamped returns p restricted to the documented ranges. NaN values fall back
// to defaults.
func (p RayMarchParams) Clamped() RayMarchParams {
	d := DefaultRayMarchParams()
	p.Power = clampParam(p.Power, MinRayPower, MaxRayPower, d.Power)
	p.StepSize = clampParam(p.StepSize, MinRayStepSize, MaxRayStepSize, d.StepSize)
	p.DepthOffset = clampParam(p.DepthOffset, -MaxDepthOffset, MaxDepthOffset, d.DepthOffset)
	p.OcclusionThreshold = clampParam(p.OcclusionThreshold, 0, MaxOcclusionThreshold, d.OcclusionThreshold)
	p.OcclusionOffset = clampParam(p.OcclusionOffset, 0, MaxOcclusionOffset, d.OcclusionOffset)
	return p
}

// Steps returns the number of march samples after the origin.
func (p RayMarchParams) Steps() int {
	n := int(math.Ceil(float64(1 / p.StepSize)))
	if n < 1 {
		n = 1
	}
	if n > MaxMarchSteps {
		n = MaxMarchSteps
	}
	return n
}

// Clamped returns p with both parameter groups clamped.
func (p Params) Clamped() Params {
	p.Mesh = p.Mesh.Clamped()
	p.RayMarch = p.RayMarch.Clamped()
	return p
}

func clampParam(v, lo, hi, fallback float32) float32 {
	switch {
	case math.IsNaN(float64(v)):
		return fallback
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
