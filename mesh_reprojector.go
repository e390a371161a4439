// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/timewarp/internal/parallel"
)

// minClipW rejects vertices at or behind the fresh camera plane.
const minClipW = 1e-5

// debugGridColor is the overlay color of warp grid lines.
var debugGridColor = [4]float32{0, 255, 64, 255}

// MeshReprojector warps a frame by displacing a screen-covering grid with the
// stored depth and rasterizing it from the fresh pose.
//
// Each vertex samples the old depth at its texture coordinate, is lifted to
// world space through the inverse projection and the old camera, and is
// projected with the fresh view-projection. Triangles are depth tested so
// the nearest warped surface wins where the grid folds over itself.
// Fragments whose texture coordinate leaves [0, 1] are faded toward the
// background (edge bleed mitigation).
//
// A MeshReprojector is safe for concurrent use; passes are serialized.
type MeshReprojector struct {
	mesh *WarpMesh
	pool *parallel.WorkerPool

	mu   sync.Mutex
	clip []mgl32.Vec4
	tris []rasterTri
	zbuf []float32
}

var _ Algorithm = (*MeshReprojector)(nil)

// NewMeshReprojector creates a reprojector with a gridW×gridH warp mesh.
func NewMeshReprojector(gridW, gridH int, opts ...ReprojectorOption) (*MeshReprojector, error) {
	mesh, err := NewWarpMesh(gridW, gridH)
	if err != nil {
		return nil, err
	}
	o := applyReprojectorOptions(opts)
	return &MeshReprojector{
		mesh: mesh,
		pool: parallel.NewWorkerPool(o.workers),
		clip: make([]mgl32.Vec4, len(mesh.Vertices)),
	}, nil
}

// Name implements Algorithm.
func (r *MeshReprojector) Name() string { return AlgorithmMesh.String() }

// Mesh returns the warp grid.
func (r *MeshReprojector) Mesh() *WarpMesh { return r.mesh }

// Close releases the worker goroutines.
func (r *MeshReprojector) Close() { r.pool.Close() }

// Reproject implements Algorithm.
func (r *MeshReprojector) Reproject(src *RenderedFrame, fresh Pose, params Params, dst *Image) error {
	if err := CheckReprojectArgs(src, dst); err != nil {
		return fmt.Errorf("mesh reproject: %w", err)
	}
	start := time.Now()
	p := params.Mesh.Clamped()
	bg := background255(params.Background)

	r.mu.Lock()
	defer r.mu.Unlock()

	w, h := dst.Width(), dst.Height()
	u := NewMeshUniforms(src, fresh, p, params.Background, r.mesh, w, h)
	r.displaceVertices(src.Depth, u.Reconstruct())
	r.setupTriangles(w, h)

	if cap(r.zbuf) < w*h {
		r.zbuf = make([]float32, w*h)
	}
	zbuf := r.zbuf[:w*h]

	r.pool.Rows(h, 8, func(y0, y1 int) {
		for i := y0 * w; i < y1*w; i++ {
			zbuf[i] = math.MaxFloat32
		}
		for y := y0; y < y1; y++ {
			for x := range w {
				store255(dst, x, y, bg)
			}
		}
		for i := range r.tris {
			r.rasterBand(&r.tris[i], src.Color, p, bg, dst, zbuf, y0, y1)
		}
	})

	Logger().Debug("mesh reprojection",
		"triangles", len(r.tris), "size", fmt.Sprintf("%dx%d", w, h), "elapsed", time.Since(start))
	return nil
}

// displaceVertices computes the fresh clip position of every grid vertex.
func (r *MeshReprojector) displaceVertices(depth *DepthMap, reconstruct mgl32.Mat4) {
	for i, vert := range r.mesh.Vertices {
		uv := vert.UV
		d := sampleDepth(depth, uv[0], uv[1])
		ndc := mgl32.Vec4{2*uv[0] - 1, 2*uv[1] - 1, 2*d - 1, 1}
		r.clip[i] = reconstruct.Mul4x1(ndc)
	}
}

func (r *MeshReprojector) setupTriangles(w, h int) {
	r.tris = r.tris[:0]
	fw, fh := float32(w), float32(h)
	idx := r.mesh.Indices
	var rv [3]rasterVertex
	for t := 0; t < len(idx); t += 3 {
		skip := false
		for k := range 3 {
			vi := int(idx[t+k])
			c := r.clip[vi]
			if c[3] <= minClipW {
				skip = true
				break
			}
			gx, gy := r.mesh.GridCoord(vi)
			uv := r.mesh.Vertices[vi].UV
			rv[k] = rasterVertex{
				x:  (c[0]/c[3]*0.5 + 0.5) * fw,
				y:  (0.5 - c[1]/c[3]*0.5) * fh,
				z:  c[2] / c[3],
				u:  uv[0],
				v:  uv[1],
				gx: float32(gx),
				gy: float32(gy),
			}
		}
		if skip {
			continue
		}
		if tri, ok := setupTriangle(rv[0], rv[1], rv[2], w, h); ok {
			r.tris = append(r.tris, tri)
		}
	}
}

func (r *MeshReprojector) rasterBand(t *rasterTri, src *Image, p MeshParams, bg [4]float32, dst *Image, zbuf []float32, y0, y1 int) {
	ya := max(t.minY, y0)
	yb := min(t.maxY, y1-1)
	w := dst.Width()
	a, b, c := t.v[0], t.v[1], t.v[2]

	for y := ya; y <= yb; y++ {
		py := float32(y) + 0.5
		for x := t.minX; x <= t.maxX; x++ {
			l0, l1, l2, ok := t.barycentric(float32(x)+0.5, py)
			if !ok {
				continue
			}
			z := interp(l0, l1, l2, a.z, b.z, c.z)
			zi := y*w + x
			if z >= zbuf[zi] {
				continue
			}
			zbuf[zi] = z

			u := interp(l0, l1, l2, a.u, b.u, c.u)
			v := interp(l0, l1, l2, a.v, b.v, c.v)
			col := sampleColor(src, u, v)
			col = blend255(col, bg, bleedFactor(u, v, p.BleedRadius, p.BleedTolerance))

			if p.DebugOverlayOpacity > 0 {
				gx := interp(l0, l1, l2, a.gx, b.gx, c.gx)
				gy := interp(l0, l1, l2, a.gy, b.gy, c.gy)
				line := max(gridLine(gx, t.gxRate), gridLine(gy, t.gyRate))
				col = blend255(col, debugGridColor, line*p.DebugOverlayOpacity)
			}
			store255(dst, x, y, col)
		}
	}
}

// bleedFactor returns how far a fragment at uv is blended toward the
// background. The signed distance outside [0,1]² is o; fragments with
// o <= -tolerance are untouched, o >= radius is pure background and the
// band in between ramps linearly.
func bleedFactor(u, v, radius, tolerance float32) float32 {
	o := max(-u, u-1, -v, v-1)
	switch {
	case o <= -tolerance:
		return 0
	case o >= radius:
		return 1
	}
	return (o + tolerance) / (radius + tolerance)
}
