// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Default warp grid resolution of the built-in mesh reprojector.
const (
	DefaultMeshGridWidth  = 64
	DefaultMeshGridHeight = 36
)

// SceneRenderer renders the scene as seen from pose into dst, filling its
// color and depth images. The scheduler sets dst's pose and projection
// before the call.
type SceneRenderer interface {
	RenderScene(ctx context.Context, pose Pose, dst *RenderedFrame) error
}

// Presenter displays a finished image. The image is reused on the next tick
// and must be copied if retained.
type Presenter interface {
	Present(ctx context.Context, img *Image) error
}

// PoseSource returns the latest camera pose, typically a closure over the
// input handler's state.
type PoseSource func() Pose

// TickResult describes one scheduler iteration.
type TickResult struct {
	Rendered  bool          // a scene render happened this tick
	Seq       uint64        // sequence of the frame that was reprojected
	Algorithm AlgorithmKind // algorithm used for the reprojection
	Fresh     Pose          // pose the output was warped to
	Age       time.Duration // time since the reprojected frame was rendered
}

// SchedulerStats counts scheduler activity.
type SchedulerStats struct {
	Ticks    uint64
	Renders  uint64
	Presents uint64
}

// Scheduler runs the render and presentation clocks.
//
// Every Tick reprojects the latest stored frame to the current pose and
// presents it. The scene is rendered only when the render interval has
// elapsed, and always on the first tick so the store is never empty when
// read.
//
// Scheduler methods must be called from one goroutine; Controls may be
// changed from any goroutine and take effect on the next tick.
type Scheduler struct {
	renderer  SceneRenderer
	presenter Presenter
	poses     PoseSource
	store     *FrameStore
	controls  *Controls
	clock     Clock
	interval  time.Duration

	algorithms map[AlgorithmKind]Algorithm
	owned      []interface{ Close() }
	output     *Image

	started    bool
	nextRender time.Time

	ticks    atomic.Uint64
	renders  atomic.Uint64
	presents atomic.Uint64
}

// NewScheduler wires the collaborators. Algorithms not registered with
// WithAlgorithm default to the CPU reprojectors.
func NewScheduler(renderer SceneRenderer, presenter Presenter, poses PoseSource, store *FrameStore, opts ...SchedulerOption) (*Scheduler, error) {
	if renderer == nil || presenter == nil || poses == nil || store == nil {
		return nil, errors.New("timewarp: scheduler needs a renderer, presenter, pose source and frame store")
	}
	o := defaultSchedulerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.renderInterval <= 0 {
		return nil, fmt.Errorf("timewarp: render interval must be positive, got %v", o.renderInterval)
	}
	if o.controls == nil {
		o.controls = NewControls(DefaultSettings())
	}

	s := &Scheduler{
		renderer:   renderer,
		presenter:  presenter,
		poses:      poses,
		store:      store,
		controls:   o.controls,
		clock:      o.clock,
		interval:   o.renderInterval,
		algorithms: o.algorithms,
		output:     NewImage(store.Width(), store.Height()),
	}
	if _, ok := s.algorithms[AlgorithmMesh]; !ok {
		m, err := NewMeshReprojector(DefaultMeshGridWidth, DefaultMeshGridHeight)
		if err != nil {
			return nil, err
		}
		s.algorithms[AlgorithmMesh] = m
		s.owned = append(s.owned, m)
	}
	if _, ok := s.algorithms[AlgorithmRayMarch]; !ok {
		r := NewRayMarchReprojector()
		s.algorithms[AlgorithmRayMarch] = r
		s.owned = append(s.owned, r)
	}
	return s, nil
}

// Controls returns the shared settings.
func (s *Scheduler) Controls() *Controls { return s.controls }

// Store returns the frame store.
func (s *Scheduler) Store() *FrameStore { return s.store }

// Output returns the most recently presented image.
func (s *Scheduler) Output() *Image { return s.output }

// Stats returns activity counters.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Ticks:    s.ticks.Load(),
		Renders:  s.renders.Load(),
		Presents: s.presents.Load(),
	}
}

// Close releases the reprojectors created by NewScheduler.
func (s *Scheduler) Close() {
	for _, c := range s.owned {
		c.Close()
	}
	s.owned = nil
}

// Tick runs one loop iteration: maybe render, then reproject and present.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	settings := s.controls.Snapshot()
	now := s.clock.Now()
	fresh := s.poses()
	s.ticks.Add(1)

	var res TickResult
	if !s.started || !now.Before(s.nextRender) {
		if err := s.render(ctx, fresh, now); err != nil {
			return res, err
		}
		res.Rendered = true
		s.advanceRenderClock(now)
	}

	frame, release, err := s.store.Acquire()
	if err != nil {
		return res, err
	}
	defer release()

	if !settings.Reproject {
		fresh = frame.Pose
	}
	alg, ok := s.algorithms[settings.Algorithm]
	if !ok || alg == nil {
		return res, fmt.Errorf("%w: %v", ErrUnknownAlgorithm, settings.Algorithm)
	}
	if err := alg.Reproject(frame, fresh, settings.Params, s.output); err != nil {
		return res, fmt.Errorf("reproject frame %d: %w", frame.Seq, err)
	}
	if err := s.presenter.Present(ctx, s.output); err != nil {
		return res, fmt.Errorf("present: %w", err)
	}
	s.presents.Add(1)

	res.Seq = frame.Seq
	res.Algorithm = settings.Algorithm
	res.Fresh = fresh
	res.Age = now.Sub(frame.RenderedAt)
	return res, nil
}

func (s *Scheduler) render(ctx context.Context, pose Pose, now time.Time) error {
	back := s.store.Back()
	back.SetPose(pose)
	back.Projection = s.store.Projection()
	back.RenderedAt = now
	if err := s.renderer.RenderScene(ctx, pose, back); err != nil {
		return fmt.Errorf("render scene: %w", err)
	}
	seq := s.store.Publish()
	s.renders.Add(1)
	Logger().Debug("scene rendered", "seq", seq, "pose", pose.String())
	return nil
}

// advanceRenderClock schedules the next render one interval after the
// previous deadline. If the loop fell more than an interval behind, missed
// renders are dropped and the clock re-anchors at now.
func (s *Scheduler) advanceRenderClock(now time.Time) {
	if !s.started {
		s.started = true
		s.nextRender = now.Add(s.interval)
		return
	}
	s.nextRender = s.nextRender.Add(s.interval)
	if !s.nextRender.After(now) {
		Logger().Warn("render clock behind, skipping missed renders", "behind", now.Sub(s.nextRender))
		s.nextRender = now.Add(s.interval)
	}
}

// Run ticks until ctx is cancelled, waiting period between ticks when
// period > 0. A tick in progress always completes. Run returns nil on
// cancellation and the first tick error otherwise.
func (s *Scheduler) Run(ctx context.Context, period time.Duration) error {
	var ticker *time.Ticker
	if period > 0 {
		ticker = time.NewTicker(period)
		defer ticker.Stop()
	}
	tickCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if _, err := s.Tick(tickCtx); err != nil {
			return err
		}
		if ticker == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
