// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/timewarp/internal/parallel"
)

const (
	// refineSteps bisects the last march interval after a hit.
	refineSteps = 4

	// frontTolerance is the relative slack under which a sample still
	// counts as touching the stored surface rather than lying in front.
	frontTolerance = 1e-3
)

// sampleClass is the outcome of comparing a march sample to the stored depth.
type sampleClass int

const (
	sampleInFront  sampleClass = iota // sample nearer than the stored surface
	sampleHit                         // sample within the surface thickness
	sampleOccluded                    // sample behind the stored surface
)

func (c sampleClass) String() string {
	switch c {
	case sampleInFront:
		return "in-front"
	case sampleHit:
		return "hit"
	case sampleOccluded:
		return "occluded"
	}
	return "unknown"
}

// classifySample compares the linear depth of a sample with the linear
// depth stored in the old frame. span is the linear depth covered by the
// last march step; it widens the thickness at grazing angles, where a
// single step jumps far in depth.
func classifySample(sample, stored, span float32, p RayMarchParams) sampleClass {
	surface := stored + p.DepthOffset
	diff := sample - surface
	if diff < -frontTolerance*surface {
		return sampleInFront
	}
	if diff > p.OcclusionThreshold+p.OcclusionOffset*span {
		return sampleOccluded
	}
	return sampleHit
}

// RayMarchReprojector warps a frame by marching, for every output pixel, a
// ray from the fresh near plane to the far plane through the old depth
// buffer. The first sample that lands on a stored surface supplies the
// color; a ray that never does shows the background.
//
// Sample i of N sits at t = (i·StepSize)^Power along the ray, so Power > 1
// concentrates samples near the camera.
//
// A RayMarchReprojector is safe for concurrent use.
type RayMarchReprojector struct {
	pool *parallel.WorkerPool
}

var _ Algorithm = (*RayMarchReprojector)(nil)

// NewRayMarchReprojector creates a ray-march reprojector.
func NewRayMarchReprojector(opts ...ReprojectorOption) *RayMarchReprojector {
	o := applyReprojectorOptions(opts)
	return &RayMarchReprojector{pool: parallel.NewWorkerPool(o.workers)}
}

// Name implements Algorithm.
func (r *RayMarchReprojector) Name() string { return AlgorithmRayMarch.String() }

// Close releases the worker goroutines.
func (r *RayMarchReprojector) Close() { r.pool.Close() }

// Reproject implements Algorithm.
func (r *RayMarchReprojector) Reproject(src *RenderedFrame, fresh Pose, params Params, dst *Image) error {
	if err := CheckReprojectArgs(src, dst); err != nil {
		return fmt.Errorf("ray-march reproject: %w", err)
	}
	start := time.Now()
	p := params.RayMarch.Clamped()
	w, h := dst.Width(), dst.Height()
	m := marcher{
		u:   NewRayMarchUniforms(src, fresh, p, params.Background, w, h),
		p:   p,
		src: src,
		bg:  background255(params.Background),
	}

	var hits, misses int64
	counts := make([][2]int64, h)
	r.pool.Rows(h, 4, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := range w {
				u, v := pixelUV(x, y, w, h)
				col, hit := m.march(u, v)
				if hit {
					counts[y][0]++
				} else {
					counts[y][1]++
				}
				store255(dst, x, y, col)
			}
		}
	})
	for _, c := range counts {
		hits += c[0]
		misses += c[1]
	}

	Logger().Debug("ray-march reprojection",
		"steps", p.Steps(), "hits", hits, "misses", misses, "elapsed", time.Since(start))
	return nil
}

type marcher struct {
	u   RayMarchUniforms
	p   RayMarchParams
	src *RenderedFrame
	bg  [4]float32
}

type marchSample struct {
	u, v   float32
	linear float32 // sample depth in the old view
	stored float32 // stored linear depth at u, v
	valid  bool
}

func (m *marcher) sampleAt(near, far mgl32.Vec3, t float32) marchSample {
	pt := near.Add(far.Sub(near).Mul(t))
	clip := m.u.OldViewProjection.Mul4x1(pt.Vec4(1))
	if clip[3] <= minClipW {
		return marchSample{}
	}
	u := clip[0]/clip[3]*0.5 + 0.5
	v := clip[1]/clip[3]*0.5 + 0.5
	if !inFrame(u, v) {
		return marchSample{}
	}
	proj := m.src.Projection
	return marchSample{
		u:      u,
		v:      v,
		linear: clip[3],
		stored: proj.LinearDepth(sampleDepth(m.src.Depth, u, v)),
		valid:  true,
	}
}

// march returns the color seen through the output pixel at (u, v).
func (m *marcher) march(u, v float32) ([4]float32, bool) {
	nx, ny := 2*u-1, 2*v-1
	near := unproject(m.u.FreshInverseViewProjection, nx, ny, -1)
	far := unproject(m.u.FreshInverseViewProjection, nx, ny, 1)

	steps := int(m.u.Steps)
	prevT := float32(0)
	prevLinear := float32(math.NaN())

	for i := 0; i <= steps; i++ {
		s := min(float32(i)*m.p.StepSize, 1)
		t := float32(math.Pow(float64(s), float64(m.p.Power)))

		smp := m.sampleAt(near, far, t)
		if !smp.valid {
			prevT = t
			prevLinear = float32(math.NaN())
			continue
		}
		span := float32(0)
		if !math.IsNaN(float64(prevLinear)) {
			span = float32(math.Abs(float64(smp.linear - prevLinear)))
		}
		prevLinear = smp.linear

		switch classifySample(smp.linear, smp.stored, span, m.p) {
		case sampleInFront, sampleOccluded:
			prevT = t
			continue
		}

		hit := m.refine(near, far, prevT, t, smp)
		return sampleColor(m.src.Color, hit.u, hit.v), true
	}
	return m.bg, false
}

// refine bisects [lo, hi] toward the surface crossing. hi is known to hit.
func (m *marcher) refine(near, far mgl32.Vec3, lo, hi float32, best marchSample) marchSample {
	for range refineSteps {
		mid := (lo + hi) / 2
		smp := m.sampleAt(near, far, mid)
		if !smp.valid {
			lo = mid
			continue
		}
		if classifySample(smp.linear, smp.stored, 0, m.p) == sampleInFront {
			lo = mid
			continue
		}
		hi = mid
		if classifySample(smp.linear, smp.stored, 0, m.p) == sampleHit {
			best = smp
		}
	}
	return best
}

func unproject(inv mgl32.Mat4, x, y, z float32) mgl32.Vec3 {
	p := inv.Mul4x1(mgl32.Vec4{x, y, z, 1})
	return p.Vec3().Mul(1 / p[3])
}
