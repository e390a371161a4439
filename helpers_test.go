// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// near compares vectors or matrices component-wise with an absolute tolerance.
func near(a, b any, eps float32) bool {
	var x, y []float32
	switch av := a.(type) {
	case mgl32.Mat4:
		bv := b.(mgl32.Mat4)
		x, y = av[:], bv[:]
	case mgl32.Vec4:
		bv := b.(mgl32.Vec4)
		x, y = av[:], bv[:]
	case mgl32.Vec3:
		bv := b.(mgl32.Vec3)
		x, y = av[:], bv[:]
	default:
		panic(fmt.Sprintf("near: unsupported type %T", a))
	}
	for i := range x {
		d := x[i] - y[i]
		if d > eps || d < -eps || math.IsNaN(float64(d)) {
			return false
		}
	}
	return true
}
