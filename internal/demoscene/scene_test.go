// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package demoscene

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/timewarp"
)

func newFrame(w, h int) *timewarp.RenderedFrame {
	return timewarp.NewRenderedFrame(w, h, timewarp.DefaultProjection().WithAspect(w, h))
}

func TestFloorDepthIsExact(t *testing.T) {
	s := Room(WithWorkers(2))
	defer s.Close()
	s.Planes = s.Planes[:1]
	s.Boxes, s.Spheres = nil, nil

	// Two units above the floor, looking straight down: the floor is parallel
	// to the image plane, so every pixel sees it at view distance 2.
	pose := timewarp.NewPose(mgl32.Vec3{0, 2, 0}, mgl32.QuatRotate(-math.Pi/2, mgl32.Vec3{1, 0, 0}))
	dst := newFrame(32, 18)
	dst.SetPose(pose)
	if err := s.RenderScene(context.Background(), pose, dst); err != nil {
		t.Fatalf("RenderScene: %v", err)
	}

	proj := dst.Projection
	colors := map[[4]uint8]bool{}
	for y := range dst.Height() {
		for x := range dst.Width() {
			lin := proj.LinearDepth(dst.Depth.At(x, y))
			if math.Abs(float64(lin-2)) > 1e-3 {
				t.Fatalf("linear depth at (%d,%d) = %v, want 2", x, y, lin)
			}
			r, g, b, a := dst.Color.RGBA8(x, y)
			if a != 255 {
				t.Fatalf("alpha at (%d,%d) = %d", x, y, a)
			}
			colors[[4]uint8{r, g, b, a}] = true
		}
	}
	if len(colors) != 2 {
		t.Errorf("checker floor has %d colors, want 2", len(colors))
	}
}

func TestSkyHasFarDepth(t *testing.T) {
	s := Room()
	defer s.Close()
	s.Planes = s.Planes[:1]
	s.Boxes, s.Spheres = nil, nil

	// Looking straight up nothing is hit.
	pose := timewarp.NewPose(mgl32.Vec3{0, 1, 0}, mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{1, 0, 0}))
	dst := newFrame(16, 16)
	if err := s.RenderScene(context.Background(), pose, dst); err != nil {
		t.Fatalf("RenderScene: %v", err)
	}
	for _, d := range dst.Depth.Data() {
		if d != 1 {
			t.Fatalf("sky depth = %v, want 1", d)
		}
	}
}

func TestIntersect(t *testing.T) {
	s := Room()
	defer s.Close()

	tests := []struct {
		name   string
		origin mgl32.Vec3
		dir    mgl32.Vec3
		wantT  float32
		wantN  mgl32.Vec3
	}{
		{"box front face", mgl32.Vec3{0, 0.5, 5}, mgl32.Vec3{0, 0, -1}, 5.5, mgl32.Vec3{0, 0, 1}},
		{"sphere", mgl32.Vec3{1.2, 0.5, 5}, mgl32.Vec3{0, 0, -1}, 5.7, mgl32.Vec3{0, 0, 1}},
		{"floor", mgl32.Vec3{3, 2, 0}, mgl32.Vec3{0, -1, 0}, 2, mgl32.Vec3{0, 1, 0}},
		{"back wall", mgl32.Vec3{3, 3, 0}, mgl32.Vec3{0, 0, -1}, 5, mgl32.Vec3{0, 0, 1}},
		{"left wall", mgl32.Vec3{0, 3, 0}, mgl32.Vec3{-1, 0, 0}, 4, mgl32.Vec3{1, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := s.Intersect(tt.origin, tt.dir, 0.01, 100)
			if !ok {
				t.Fatal("no hit")
			}
			if math.Abs(float64(h.T-tt.wantT)) > 1e-4 {
				t.Errorf("T = %v, want %v", h.T, tt.wantT)
			}
			if h.Normal.Sub(tt.wantN).Len() > 1e-4 {
				t.Errorf("Normal = %v, want %v", h.Normal, tt.wantN)
			}
		})
	}

	if _, ok := s.Intersect(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 1, 0}, 0.01, 100); ok {
		t.Error("upward ray hit something")
	}
	if _, ok := s.Intersect(mgl32.Vec3{0, 0.5, 5}, mgl32.Vec3{0, 0, -1}, 0.01, 5); ok {
		t.Error("hit beyond tMax reported")
	}
}

func TestIdentityReprojectionOfRoom(t *testing.T) {
	s := Room()
	defer s.Close()

	pose := timewarp.DefaultSweepStart()
	src := newFrame(64, 36)
	src.SetPose(pose)
	if err := s.RenderScene(context.Background(), pose, src); err != nil {
		t.Fatalf("RenderScene: %v", err)
	}

	r, err := timewarp.NewMeshReprojector(32, 18)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	dst := timewarp.NewImage(64, 36)
	if err := r.Reproject(src, pose, timewarp.DefaultParams(), dst); err != nil {
		t.Fatalf("Reproject: %v", err)
	}
	for y := range 36 {
		for x := range 64 {
			r0, g0, b0, _ := src.Color.RGBA8(x, y)
			r1, g1, b1, _ := dst.RGBA8(x, y)
			if diff8(r0, r1) > 1 || diff8(g0, g1) > 1 || diff8(b0, b1) > 1 {
				t.Fatalf("pixel (%d,%d) = %d,%d,%d, want %d,%d,%d", x, y, r1, g1, b1, r0, g0, b0)
			}
		}
	}
}

func TestRenderErrors(t *testing.T) {
	s := Room()
	defer s.Close()

	if err := s.RenderScene(context.Background(), timewarp.IdentityPose(), nil); !errors.Is(err, timewarp.ErrNilFrame) {
		t.Errorf("nil frame: err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.RenderScene(ctx, timewarp.IdentityPose(), newFrame(8, 8)); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled: err = %v", err)
	}

	bad := newFrame(8, 8)
	bad.Depth = timewarp.NewDepthMap(4, 4)
	if err := s.RenderScene(context.Background(), timewarp.IdentityPose(), bad); !errors.Is(err, timewarp.ErrSizeMismatch) {
		t.Errorf("mismatch: err = %v", err)
	}
}

func diff8(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
