// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import "math"

// Edge-function rasterization of warp mesh triangles. Attributes are
// interpolated linearly in screen space, which keeps an identity warp exact.

// coverageEpsilon admits pixel centers lying on a shared edge slightly outside
// a triangle due to rounding, so seams never open between adjacent quads.
const coverageEpsilon = 1e-5

type rasterVertex struct {
	x, y, z float32 // pixel coordinates, NDC depth
	u, v    float32
	gx, gy  float32 // warp grid coordinates
}

type rasterTri struct {
	v                      [3]rasterVertex
	area                   float32
	minX, maxX, minY, maxY int

	// screen-space gradient lengths of the grid coordinates, in grid units
	// per pixel
	gxRate, gyRate float32
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// setupTriangle prepares a triangle for a w×h target. It reports false for
// degenerate or fully off-screen triangles.
func setupTriangle(a, b, c rasterVertex, w, h int) (rasterTri, bool) {
	t := rasterTri{v: [3]rasterVertex{a, b, c}}
	t.area = edge(a.x, a.y, b.x, b.y, c.x, c.y)
	if math.Abs(float64(t.area)) < 1e-9 {
		return t, false
	}

	minX := min(a.x, b.x, c.x)
	maxX := max(a.x, b.x, c.x)
	minY := min(a.y, b.y, c.y)
	maxY := max(a.y, b.y, c.y)
	// Pixel centers sit at +0.5.
	t.minX = max(int(math.Floor(float64(minX-0.5))), 0)
	t.maxX = min(int(math.Ceil(float64(maxX-0.5))), w-1)
	t.minY = max(int(math.Floor(float64(minY-0.5))), 0)
	t.maxY = min(int(math.Ceil(float64(maxY-0.5))), h-1)
	if t.minX > t.maxX || t.minY > t.maxY {
		return t, false
	}

	t.gxRate = gradientLength(t, func(r rasterVertex) float32 { return r.gx })
	t.gyRate = gradientLength(t, func(r rasterVertex) float32 { return r.gy })
	return t, true
}

// gradientLength returns |∇f| over the triangle in screen space.
func gradientLength(t rasterTri, f func(rasterVertex) float32) float32 {
	a, b, c := t.v[0], t.v[1], t.v[2]
	f0, f1, f2 := f(a), f(b), f(c)
	dx := ((f1-f0)*(c.y-a.y) - (f2-f0)*(b.y-a.y)) / t.area
	dy := ((f2-f0)*(b.x-a.x) - (f1-f0)*(c.x-a.x)) / t.area
	return float32(math.Hypot(float64(dx), float64(dy)))
}

// barycentric returns the weights of pixel center (px, py), and whether the
// center is covered.
func (t *rasterTri) barycentric(px, py float32) (l0, l1, l2 float32, ok bool) {
	a, b, c := t.v[0], t.v[1], t.v[2]
	l0 = edge(b.x, b.y, c.x, c.y, px, py) / t.area
	l1 = edge(c.x, c.y, a.x, a.y, px, py) / t.area
	l2 = 1 - l0 - l1
	ok = l0 >= -coverageEpsilon && l1 >= -coverageEpsilon && l2 >= -coverageEpsilon
	return l0, l1, l2, ok
}

func interp(l0, l1, l2, a, b, c float32) float32 {
	return l0*a + l1*b + l2*c
}

// gridLine returns how strongly a pixel lies on a warp grid line: 1 within
// half a pixel of the line, fading to 0 one pixel further out.
func gridLine(g, rate float32) float32 {
	if rate <= 0 {
		return 0
	}
	f := g - float32(math.Floor(float64(g)))
	d := min(f, 1-f) / rate // distance in pixels
	return clampF(1.5-d, 0, 1)
}
