// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"math"
	"testing"
)

func TestMeshParamsClamped(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name string
		in   MeshParams
		want MeshParams
	}{
		{"defaults unchanged", DefaultMeshParams(), DefaultMeshParams()},
		{"too large", MeshParams{1, 1, 3}, MeshParams{0.05, 0.05, 1}},
		{"negative", MeshParams{-1, -0.1, -2}, MeshParams{0, 0, 0}},
		{"NaN falls back", MeshParams{nan, nan, nan}, DefaultMeshParams()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Clamped(); got != tt.want {
				t.Errorf("Clamped() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRayMarchParamsClamped(t *testing.T) {
	got := RayMarchParams{Power: 0, StepSize: 0, DepthOffset: 5, OcclusionThreshold: -1, OcclusionOffset: 99}.Clamped()
	want := RayMarchParams{Power: MinRayPower, StepSize: MinRayStepSize, DepthOffset: 1, OcclusionThreshold: 0, OcclusionOffset: MaxOcclusionOffset}
	if got != want {
		t.Errorf("Clamped() = %+v, want %+v", got, want)
	}
	if d := DefaultRayMarchParams(); d.Clamped() != d {
		t.Error("defaults must already be in range")
	}
}

func TestRayMarchSteps(t *testing.T) {
	tests := []struct {
		step float32
		want int
	}{
		{1, 1},
		{0.5, 2},
		{0.3, 4},
		{0.01, 100},
		{0.0001, MaxMarchSteps},
	}
	for _, tt := range tests {
		if got := (RayMarchParams{StepSize: tt.step}).Steps(); got != tt.want {
			t.Errorf("Steps(%v) = %d, want %d", tt.step, got, tt.want)
		}
	}
}
