// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package demoscene renders a small analytic room on the CPU. It produces
// color and exact window depth with the same projection conventions as the
// reprojectors, so it can stand in for a GPU scene renderer in test runs.
package demoscene

import (
	"context"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/timewarp"
	"github.com/gogpu/timewarp/internal/parallel"
)

const minBandRows = 8

// Box is an axis-aligned box.
type Box struct {
	Min, Max mgl32.Vec3
	Color    timewarp.RGBA
}

// Sphere is a solid sphere.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
	Color  timewarp.RGBA
}

// Plane is an infinite plane n·p = D, visible from the side n points to.
type Plane struct {
	Normal  mgl32.Vec3
	D       float32
	Color   timewarp.RGBA
	Checker float32 // checker cell size, 0 for a solid plane
}

// Scene is a static set of primitives lit by one directional light.
type Scene struct {
	Planes  []Plane
	Boxes   []Box
	Spheres []Sphere

	Light      mgl32.Vec3 // direction towards the light
	Ambient    float64
	SkyHorizon timewarp.RGBA
	SkyZenith  timewarp.RGBA

	pool *parallel.WorkerPool
}

// Option configures a Scene.
type Option func(*Scene)

// WithWorkers sets the number of render workers. Zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Scene) {
		if s.pool != nil {
			s.pool.Close()
		}
		s.pool = parallel.NewWorkerPool(n)
	}
}

// Room returns the reference room: a checkered floor, two walls, a few boxes
// and a sphere, seen well from DefaultSweepStart.
func Room(opts ...Option) *Scene {
	s := &Scene{
		Planes: []Plane{
			{Normal: mgl32.Vec3{0, 1, 0}, D: 0, Color: timewarp.RGB(0.85, 0.85, 0.8), Checker: 0.5},
			{Normal: mgl32.Vec3{0, 0, 1}, D: -5, Color: timewarp.RGB(0.55, 0.6, 0.75)},
			{Normal: mgl32.Vec3{1, 0, 0}, D: -4, Color: timewarp.RGB(0.75, 0.55, 0.5)},
		},
		Boxes: []Box{
			{Min: mgl32.Vec3{-0.5, 0, -1.5}, Max: mgl32.Vec3{0.5, 1, -0.5}, Color: timewarp.RGB(0.8, 0.25, 0.2)},
			{Min: mgl32.Vec3{-2, 0, -3}, Max: mgl32.Vec3{-1.4, 2, -2.4}, Color: timewarp.RGB(0.2, 0.45, 0.8)},
			{Min: mgl32.Vec3{1.6, 0, -3.5}, Max: mgl32.Vec3{2.6, 0.4, -2.5}, Color: timewarp.RGB(0.9, 0.75, 0.2)},
		},
		Spheres: []Sphere{
			{Center: mgl32.Vec3{1.2, 0.5, -1.2}, Radius: 0.5, Color: timewarp.RGB(0.25, 0.7, 0.35)},
		},
		Light:      mgl32.Vec3{0.4, 1, 0.6}.Normalize(),
		Ambient:    0.25,
		SkyHorizon: timewarp.RGB(0.75, 0.85, 0.95),
		SkyZenith:  timewarp.RGB(0.25, 0.45, 0.85),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool = parallel.NewWorkerPool(0)
	}
	return s
}

// Close stops the render workers.
func (s *Scene) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// RenderScene implements timewarp.SceneRenderer. Pixels whose ray hits
// nothing before the far plane get the sky color and window depth 1.
func (s *Scene) RenderScene(ctx context.Context, pose timewarp.Pose, dst *timewarp.RenderedFrame) error {
	if dst == nil || dst.Color == nil || dst.Depth == nil {
		return timewarp.ErrNilFrame
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	proj := dst.Projection
	if err := proj.Validate(); err != nil {
		return fmt.Errorf("demoscene: %w", err)
	}
	w, h := dst.Width(), dst.Height()
	if dst.Depth.Width() != w || dst.Depth.Height() != h {
		return fmt.Errorf("demoscene: %w: depth %dx%d, color %dx%d",
			timewarp.ErrSizeMismatch, dst.Depth.Width(), dst.Depth.Height(), w, h)
	}

	pose = pose.Normalized()
	tanY := float32(math.Tan(float64(proj.FovY) / 2))
	tanX := tanY * proj.Aspect

	s.pool.Rows(h, minBandRows, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			ndcY := 1 - 2*(float32(y)+0.5)/float32(h)
			for x := 0; x < w; x++ {
				ndcX := 2*(float32(x)+0.5)/float32(w) - 1
				// Camera-space z is -1, so the hit parameter is the view-axis distance.
				dir := pose.Orientation.Rotate(mgl32.Vec3{ndcX * tanX, ndcY * tanY, -1})
				c, depth := s.shade(pose.Position, dir, proj)
				dst.Color.SetPixel(x, y, c)
				dst.Depth.Set(x, y, depth)
			}
		}
	})
	return ctx.Err()
}

// Hit is a ray intersection. T is the ray parameter of the hit point.
type Hit struct {
	T      float32
	Normal mgl32.Vec3
	Albedo timewarp.RGBA
}

func (s *Scene) shade(origin, dir mgl32.Vec3, proj timewarp.Projection) (timewarp.RGBA, float32) {
	h, ok := s.Intersect(origin, dir, proj.Near, proj.Far)
	if !ok {
		return s.sky(dir), 1
	}
	lambert := max(float64(h.Normal.Dot(s.Light)), 0)
	k := s.Ambient + (1-s.Ambient)*lambert
	c := h.Albedo.Scale(k)
	c.A = 1
	return c, proj.WindowDepth(h.T)
}

func (s *Scene) sky(dir mgl32.Vec3) timewarp.RGBA {
	up := float64(dir.Normalize().Y())
	return s.SkyHorizon.Lerp(s.SkyZenith, math.Max(0, math.Min(1, up)))
}

// Intersect returns the closest hit of origin + t·dir with t in [tMin, tMax].
func (s *Scene) Intersect(origin, dir mgl32.Vec3, tMin, tMax float32) (Hit, bool) {
	best := Hit{T: tMax}
	found := false
	try := func(h Hit, ok bool) {
		if ok && h.T >= tMin && h.T < best.T {
			best, found = h, true
		}
	}
	for _, p := range s.Planes {
		try(p.intersect(origin, dir))
	}
	for _, b := range s.Boxes {
		try(b.intersect(origin, dir, tMin))
	}
	for _, sp := range s.Spheres {
		try(sp.intersect(origin, dir, tMin))
	}
	return best, found
}

func (p Plane) intersect(o, d mgl32.Vec3) (Hit, bool) {
	denom := p.Normal.Dot(d)
	if denom >= 0 {
		return Hit{}, false
	}
	t := (p.D - p.Normal.Dot(o)) / denom
	if t <= 0 {
		return Hit{}, false
	}
	c := p.Color
	if p.Checker > 0 {
		pt := o.Add(d.Mul(t))
		u, v := tangentCoords(p.Normal, pt)
		cell := int(math.Floor(float64(u/p.Checker))) + int(math.Floor(float64(v/p.Checker)))
		if cell&1 != 0 {
			c = c.Scale(0.45)
		}
	}
	return Hit{T: t, Normal: p.Normal, Albedo: c}, true
}

// tangentCoords projects pt onto the two world axes most orthogonal to n.
func tangentCoords(n, pt mgl32.Vec3) (float32, float32) {
	ax, ay, az := abs32(n[0]), abs32(n[1]), abs32(n[2])
	switch {
	case ay >= ax && ay >= az:
		return pt[0], pt[2]
	case ax >= az:
		return pt[2], pt[1]
	default:
		return pt[0], pt[1]
	}
}

// intersect is the slab test. Rays starting inside the box see its far side.
func (b Box) intersect(o, d mgl32.Vec3, tMin float32) (Hit, bool) {
	tNear := float32(math.Inf(-1))
	tFar := float32(math.Inf(1))
	nearAxis, farAxis := 0, 0
	for i := range 3 {
		if d[i] == 0 {
			if o[i] < b.Min[i] || o[i] > b.Max[i] {
				return Hit{}, false
			}
			continue
		}
		t0 := (b.Min[i] - o[i]) / d[i]
		t1 := (b.Max[i] - o[i]) / d[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tNear {
			tNear, nearAxis = t0, i
		}
		if t1 < tFar {
			tFar, farAxis = t1, i
		}
		if tNear > tFar {
			return Hit{}, false
		}
	}
	t, axis := tNear, nearAxis
	if t < tMin {
		t, axis = tFar, farAxis
	}
	if t < tMin {
		return Hit{}, false
	}
	var n mgl32.Vec3
	if t == tNear {
		n[axis] = -sign(d[axis])
	} else {
		n[axis] = sign(d[axis])
	}
	return Hit{T: t, Normal: n, Albedo: b.Color}, true
}

func (s Sphere) intersect(o, d mgl32.Vec3, tMin float32) (Hit, bool) {
	oc := o.Sub(s.Center)
	a := d.Dot(d)
	hb := oc.Dot(d)
	c := oc.Dot(oc) - s.Radius*s.Radius
	disc := hb*hb - a*c
	if disc < 0 {
		return Hit{}, false
	}
	sq := float32(math.Sqrt(float64(disc)))
	t := (-hb - sq) / a
	if t < tMin {
		t = (-hb + sq) / a
	}
	if t < tMin {
		return Hit{}, false
	}
	n := o.Add(d.Mul(t)).Sub(s.Center).Mul(1 / s.Radius)
	return Hit{T: t, Normal: n, Albedo: s.Color}, true
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}
