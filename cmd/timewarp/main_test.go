package main

import (
	"flag"
	"testing"
	"time"

	"github.com/gogpu/timewarp"
)

func TestGlobalFlagsOverrides(t *testing.T) {
	var g globalFlags
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	g.register(fs)
	args := []string{"-algorithm", "raymarch", "-out", t.TempDir(), "-db", ":memory:", "-workers", "3"}
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	cfg, err := g.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Algorithm != "raymarch" || cfg.Database != ":memory:" || cfg.Workers != 3 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Settings().Algorithm != timewarp.AlgorithmRayMarch {
		t.Errorf("Settings().Algorithm = %v", cfg.Settings().Algorithm)
	}

	bad := globalFlags{algorithm: "bogus", workers: -1}
	if _, err := bad.load(); err == nil {
		t.Error("unknown algorithm should fail validation")
	}
}

func TestNewAlgorithm(t *testing.T) {
	var g globalFlags
	g.workers = 1
	cfg, err := g.load()
	if err != nil {
		t.Fatal(err)
	}
	for _, kind := range []timewarp.AlgorithmKind{timewarp.AlgorithmMesh, timewarp.AlgorithmRayMarch} {
		t.Run(kind.String(), func(t *testing.T) {
			alg, closeFn, err := newAlgorithm(cfg, kind, false)
			if err != nil {
				t.Fatalf("newAlgorithm: %v", err)
			}
			defer closeFn()
			if alg.Name() != kind.String() {
				t.Errorf("Name() = %q, want %q", alg.Name(), kind.String())
			}
		})
	}
}

func TestSwayPose(t *testing.T) {
	origin := timewarp.DefaultSweepStart()
	if got := swayPose(origin, 0); !got.ApproxEqual(origin, 1e-5) {
		t.Errorf("swayPose(0) = %v, want %v", got, origin)
	}
	quarter := swayPose(origin, swayPeriod/4)
	if d := quarter.Position.Sub(origin.Position).Len(); d < swayAmplitude-1e-4 || d > swayAmplitude+1e-4 {
		t.Errorf("displacement at quarter period = %v, want %v", d, swayAmplitude)
	}
	if got := swayPose(origin, swayPeriod); !got.ApproxEqual(origin, 1e-4) {
		t.Errorf("swayPose(period) = %v, want %v", got, origin)
	}
}

func TestPerSecond(t *testing.T) {
	if got := perSecond(30, 2*time.Second); got != 15 {
		t.Errorf("perSecond = %v, want 15", got)
	}
	if got := perSecond(5, 0); got != 0 {
		t.Errorf("perSecond with zero duration = %v", got)
	}
}
