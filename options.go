// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import "time"

// ReprojectorOption configures a CPU reprojector.
//
// Example:
//
//	r, err := timewarp.NewMeshReprojector(64, 36, timewarp.WithWorkers(4))
type ReprojectorOption func(*reprojectorOptions)

type reprojectorOptions struct {
	workers int
}

// WithWorkers sets the number of goroutines used for a pass.
// 0 (the default) uses GOMAXPROCS.
func WithWorkers(n int) ReprojectorOption {
	return func(o *reprojectorOptions) {
		o.workers = n
	}
}

func applyReprojectorOptions(opts []ReprojectorOption) reprojectorOptions {
	var o reprojectorOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	clock          Clock
	renderInterval time.Duration
	controls       *Controls
	algorithms     map[AlgorithmKind]Algorithm
}

// DefaultRenderInterval renders the scene 15 times per second.
const DefaultRenderInterval = time.Second / 15

func defaultSchedulerOptions() schedulerOptions {
	return schedulerOptions{
		clock:          SystemClock{},
		renderInterval: DefaultRenderInterval,
		algorithms:     map[AlgorithmKind]Algorithm{},
	}
}

// WithClock injects the time source, typically a *ManualClock in tests.
func WithClock(c Clock) SchedulerOption {
	return func(o *schedulerOptions) {
		o.clock = c
	}
}

// WithRenderInterval sets the scene render period.
func WithRenderInterval(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		o.renderInterval = d
	}
}

// WithControls shares a Controls instance, for example with a UI.
func WithControls(c *Controls) SchedulerOption {
	return func(o *schedulerOptions) {
		o.controls = c
	}
}

// WithAlgorithm registers the implementation used for kind, replacing the
// built-in CPU reprojector.
func WithAlgorithm(kind AlgorithmKind, a Algorithm) SchedulerOption {
	return func(o *schedulerOptions) {
		o.algorithms[kind] = a
	}
}
