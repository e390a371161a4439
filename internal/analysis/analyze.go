// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/timewarp"
)

// Options configures Analyze.
type Options struct {
	Workers int // concurrent comparisons; zero uses GOMAXPROCS
	SSIM    SSIMOptions
}

// DefaultOptions returns default analysis options.
func DefaultOptions() Options {
	return Options{SSIM: DefaultSSIMOptions()}
}

// Result is the comparison for one sweep pose.
type Result struct {
	Name         string     // image file name
	Position     mgl32.Vec3 // world position parsed from Name
	Displacement mgl32.Vec3 // Position minus the run origin
	Metrics
}

// Analyze compares every ground-truth image of the run in dir with the
// warped image of the same name. Results are ordered by displacement.
func Analyze(ctx context.Context, dir string, opts Options) (*Report, error) {
	info, err := ReadRunInfo(filepath.Join(dir, RunInfoFile))
	if err != nil {
		return nil, err
	}
	if info.ID == "" {
		info.ID = filepath.Base(dir)
	}

	entries, err := os.ReadDir(filepath.Join(dir, GroundTruthDir))
	if err != nil {
		return nil, fmt.Errorf("listing ground truth: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("analysis: no ground-truth images in %s", dir)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	start := time.Now()
	results := make([]Result, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := compareFiles(dir, name, info.Origin, opts.SSIM)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b Result) int {
		for i := range 3 {
			if a.Displacement[i] != b.Displacement[i] {
				if a.Displacement[i] < b.Displacement[i] {
					return -1
				}
				return 1
			}
		}
		return strings.Compare(a.Name, b.Name)
	})
	timewarp.Logger().Info("analysis finished", "run", info.ID, "poses", len(results),
		"elapsed", time.Since(start))
	return NewReport(info, results), nil
}

func compareFiles(dir, name string, origin mgl32.Vec3, opts SSIMOptions) (Result, error) {
	pos, err := timewarp.ParsePosition(name)
	if err != nil {
		return Result{}, err
	}
	truth, err := timewarp.LoadPNG(filepath.Join(dir, GroundTruthDir, name))
	if err != nil {
		return Result{}, err
	}
	warped, err := timewarp.LoadPNG(filepath.Join(dir, WarpedDir, name))
	if err != nil {
		return Result{}, fmt.Errorf("warped image for %s: %w", name, err)
	}
	m, err := Compare(truth, warped, opts)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", name, err)
	}
	return Result{Name: name, Position: pos, Displacement: pos.Sub(origin), Metrics: m}, nil
}

// LatestRun returns the most recently modified run directory under root.
func LatestRun(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", err
	}
	var best string
	var bestTime time.Time
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), RunInfoFile)); err != nil {
			continue
		}
		if best == "" || fi.ModTime().After(bestTime) {
			best, bestTime = e.Name(), fi.ModTime()
		}
	}
	if best == "" {
		return "", fmt.Errorf("analysis: no runs in %s", root)
	}
	return filepath.Join(root, best), nil
}
