// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"testing"
	"time"
)

func TestApplyReprojectorOptions(t *testing.T) {
	if o := applyReprojectorOptions(nil); o.workers != 0 {
		t.Errorf("default workers = %d, want 0", o.workers)
	}
	o := applyReprojectorOptions([]ReprojectorOption{WithWorkers(2), WithWorkers(5)})
	if o.workers != 5 {
		t.Errorf("workers = %d, want last option to win (5)", o.workers)
	}
}

func TestSchedulerOptions(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	controls := NewControls(DefaultSettings())
	ray := NewRayMarchReprojector(WithWorkers(1))
	defer ray.Close()

	o := defaultSchedulerOptions()
	if o.renderInterval != DefaultRenderInterval {
		t.Errorf("default interval = %v, want %v", o.renderInterval, DefaultRenderInterval)
	}
	if _, ok := o.clock.(SystemClock); !ok {
		t.Errorf("default clock = %T, want SystemClock", o.clock)
	}

	for _, opt := range []SchedulerOption{
		WithClock(clock),
		WithRenderInterval(50 * time.Millisecond),
		WithControls(controls),
		WithAlgorithm(AlgorithmRayMarch, ray),
	} {
		opt(&o)
	}
	if o.clock != clock {
		t.Error("WithClock not applied")
	}
	if o.renderInterval != 50*time.Millisecond {
		t.Errorf("interval = %v, want 50ms", o.renderInterval)
	}
	if o.controls != controls {
		t.Error("WithControls not applied")
	}
	if o.algorithms[AlgorithmRayMarch] != ray {
		t.Error("WithAlgorithm not applied")
	}
	if _, ok := o.algorithms[AlgorithmMesh]; ok {
		t.Error("mesh algorithm registered without WithAlgorithm")
	}
}
