// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// flatRenderer paints every frame a flat color at depth 5 and records poses.
type flatRenderer struct {
	mu    sync.Mutex
	poses []Pose
	err   error
}

func (r *flatRenderer) RenderScene(_ context.Context, pose Pose, dst *RenderedFrame) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	r.poses = append(r.poses, pose)
	n := len(r.poses)
	r.mu.Unlock()
	dst.Color.Clear(RGB(float64(n%7)/7, 0.5, 0.25))
	dst.Depth.Fill(dst.Projection.WindowDepth(5))
	return nil
}

// recordingAlgorithm copies the source color and records its inputs.
type recordingAlgorithm struct {
	name  string
	calls []Pose
	seqs  []uint64
	src   []Pose
}

func (a *recordingAlgorithm) Name() string { return a.name }

func (a *recordingAlgorithm) Reproject(src *RenderedFrame, fresh Pose, _ Params, dst *Image) error {
	a.calls = append(a.calls, fresh)
	a.seqs = append(a.seqs, src.Seq)
	a.src = append(a.src, src.Pose)
	return dst.CopyFrom(src.Color)
}

type countingPresenter struct{ n int }

func (p *countingPresenter) Present(context.Context, *Image) error {
	p.n++
	return nil
}

func newTestScheduler(t *testing.T, poses PoseSource, opts ...SchedulerOption) (*Scheduler, *flatRenderer, *countingPresenter, *ManualClock) {
	t.Helper()
	clock := NewManualClock(time.Unix(1000, 0))
	r := &flatRenderer{}
	p := &countingPresenter{}
	store := NewFrameStore(8, 8, DefaultProjection().WithAspect(8, 8))
	opts = append([]SchedulerOption{WithClock(clock)}, opts...)
	s, err := NewScheduler(r, p, poses, store, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s, r, p, clock
}

func TestSchedulerCadence(t *testing.T) {
	mesh := &recordingAlgorithm{name: "mesh"}
	s, r, p, clock := newTestScheduler(t, IdentityPose,
		WithRenderInterval(time.Second/15), WithAlgorithm(AlgorithmMesh, mesh))

	ctx := context.Background()
	for range 90 {
		if _, err := s.Tick(ctx); err != nil {
			t.Fatal(err)
		}
		clock.Advance(time.Second / 90)
	}

	renders := len(r.poses)
	if renders < 14 || renders > 16 {
		t.Errorf("renders = %d, want about 15", renders)
	}
	if p.n != 90 || len(mesh.calls) != 90 {
		t.Errorf("presents = %d, reprojections = %d, want 90 each", p.n, len(mesh.calls))
	}
	st := s.Stats()
	if st.Ticks != 90 || st.Presents != 90 || int(st.Renders) != renders {
		t.Errorf("stats = %+v", st)
	}
}

func TestSchedulerRenderLogLevel(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	for _, tt := range []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelInfo, false},
		{slog.LevelDebug, true},
	} {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: tt.level})))
			s, r, _, clock := newTestScheduler(t, IdentityPose, WithRenderInterval(time.Second/15))
			for range 30 {
				if _, err := s.Tick(context.Background()); err != nil {
					t.Fatal(err)
				}
				clock.Advance(time.Second / 90)
			}
			if len(r.poses) < 2 {
				t.Fatalf("renders = %d", len(r.poses))
			}
			if got := strings.Contains(buf.String(), "scene rendered"); got != tt.want {
				t.Errorf("render logged at %v = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestSchedulerFirstTickRenders(t *testing.T) {
	s, r, _, _ := newTestScheduler(t, IdentityPose, WithRenderInterval(time.Hour))
	res, err := s.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Rendered || res.Seq != 1 || len(r.poses) != 1 {
		t.Errorf("first tick = %+v, renders %d", res, len(r.poses))
	}
	res, err = s.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Rendered || res.Seq != 1 {
		t.Errorf("second tick = %+v, want reprojection of frame 1 only", res)
	}
}

func TestSchedulerCatchUp(t *testing.T) {
	s, r, _, clock := newTestScheduler(t, IdentityPose, WithRenderInterval(100*time.Millisecond))
	ctx := context.Background()
	if _, err := s.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	// A long stall must produce one render, not a burst replaying every
	// missed interval.
	clock.Advance(time.Second)
	for range 3 {
		if _, err := s.Tick(ctx); err != nil {
			t.Fatal(err)
		}
		clock.Advance(10 * time.Millisecond)
	}
	if len(r.poses) != 2 {
		t.Errorf("renders = %d, want 2", len(r.poses))
	}
}

func TestSchedulerReprojectionToggle(t *testing.T) {
	mesh := &recordingAlgorithm{name: "mesh"}
	ray := &recordingAlgorithm{name: "raymarch"}
	x := float32(0)
	poses := func() Pose {
		x += 0.1
		return NewPose(mgl32.Vec3{x, 0, 0}, mgl32.QuatIdent())
	}
	s, _, _, _ := newTestScheduler(t, poses, WithRenderInterval(time.Hour),
		WithAlgorithm(AlgorithmMesh, mesh), WithAlgorithm(AlgorithmRayMarch, ray))
	ctx := context.Background()

	if _, err := s.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	res, err := s.Tick(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fresh.ApproxEqual(mesh.src[1], 1e-6) {
		t.Error("with reprojection on, the fresh pose should differ from the stored pose")
	}

	s.Controls().SetReproject(false)
	s.Controls().SetAlgorithm(AlgorithmRayMarch)
	res, err = s.Tick(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ray.calls) != 1 || len(mesh.calls) != 2 {
		t.Fatalf("algorithm switch not applied: mesh %d, ray %d", len(mesh.calls), len(ray.calls))
	}
	if !res.Fresh.ApproxEqual(ray.src[0], 1e-6) || res.Algorithm != AlgorithmRayMarch {
		t.Errorf("reprojection off: fresh %v, stored %v", res.Fresh, ray.src[0])
	}
}

func TestSchedulerRenderError(t *testing.T) {
	s, r, p, _ := newTestScheduler(t, IdentityPose)
	boom := errors.New("device lost")
	r.err = boom
	if _, err := s.Tick(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Tick err = %v, want wrapped render error", err)
	}
	if p.n != 0 {
		t.Error("nothing should be presented when the first render fails")
	}
}

func TestSchedulerPassthroughWithBuiltins(t *testing.T) {
	for _, kind := range []AlgorithmKind{AlgorithmMesh, AlgorithmRayMarch} {
		t.Run(kind.String(), func(t *testing.T) {
			s, _, _, _ := newTestScheduler(t, IdentityPose)
			s.Controls().SetAlgorithm(kind)
			s.Controls().SetReproject(false)
			if _, err := s.Tick(context.Background()); err != nil {
				t.Fatal(err)
			}
			front, release, err := s.Store().Acquire()
			if err != nil {
				t.Fatal(err)
			}
			defer release()
			if d, x, y := maxDiff(front.Color, s.Output()); d > 1 {
				t.Errorf("passthrough differs by %d at (%d,%d)", d, x, y)
			}
		})
	}
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	s, _, p, _ := newTestScheduler(t, IdentityPose, WithAlgorithm(AlgorithmMesh, &recordingAlgorithm{name: "mesh"}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Millisecond) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	if p.n == 0 {
		t.Error("Run presented nothing")
	}
}

func TestNewSchedulerValidation(t *testing.T) {
	store := NewFrameStore(4, 4, DefaultProjection())
	if _, err := NewScheduler(nil, &countingPresenter{}, IdentityPose, store); err == nil {
		t.Error("nil renderer accepted")
	}
	if _, err := NewScheduler(&flatRenderer{}, &countingPresenter{}, IdentityPose, store, WithRenderInterval(0)); err == nil {
		t.Error("zero interval accepted")
	}
}
