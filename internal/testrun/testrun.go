// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package testrun renders a pose sweep twice, once directly and once by
// reprojecting a single start frame, and writes both image sets to disk for
// analysis.
package testrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/gogpu/timewarp"
	"github.com/gogpu/timewarp/internal/analysis"
	"github.com/gogpu/timewarp/internal/framecodec"
)

// Options configures a test run.
type Options struct {
	OutputDir  string // runs are written to OutputDir/<ID>
	ID         string // empty generates a random UUID
	Width      int
	Height     int
	Projection timewarp.Projection
	Sweep      timewarp.Sweep
	Params     timewarp.Params

	// Snapshot also stores the start frame as CBOR.
	Snapshot bool

	// Progress receives a progress bar. Nil disables it.
	Progress io.Writer
}

// Result describes a finished run.
type Result struct {
	ID      string
	Dir     string
	Info    analysis.RunInfo
	Poses   int
	Elapsed time.Duration
}

// Run renders the start frame of opts.Sweep once, then for every sweep pose
// writes the direct render to ground_truth/ and the reprojection of the start
// frame to warped/, both named after the pose position.
func Run(ctx context.Context, renderer timewarp.SceneRenderer, alg timewarp.Algorithm, opts Options) (*Result, error) {
	if renderer == nil || alg == nil {
		return nil, errors.New("testrun: renderer and algorithm are required")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("testrun: invalid size %dx%d", opts.Width, opts.Height)
	}
	if err := opts.Projection.Validate(); err != nil {
		return nil, err
	}
	poses, err := opts.Sweep.Poses()
	if err != nil {
		return nil, err
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	dir := filepath.Join(opts.OutputDir, id)
	for _, sub := range []string{analysis.GroundTruthDir, analysis.WarpedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create run directory: %w", err)
		}
	}

	log := timewarp.Logger().With("run", id)
	start := time.Now()
	startPose := opts.Sweep.Start.Normalized()

	src := timewarp.NewRenderedFrame(opts.Width, opts.Height, opts.Projection)
	src.SetPose(startPose)
	if err := renderer.RenderScene(ctx, startPose, src); err != nil {
		return nil, fmt.Errorf("render start frame: %w", err)
	}
	src.Seq = 1
	src.RenderedAt = time.Now()

	if opts.Snapshot {
		if err := framecodec.WriteFile(filepath.Join(dir, analysis.SnapshotFile), src); err != nil {
			return nil, fmt.Errorf("write snapshot: %w", err)
		}
	}

	info := analysis.RunInfo{
		ID:           id,
		Origin:       startPose.Position,
		Algorithm:    alg.Name(),
		Mode:         opts.Sweep.Mode.String(),
		Displacement: opts.Sweep.Displacement,
		Step:         opts.Sweep.Step,
	}
	if err := info.WriteFile(filepath.Join(dir, analysis.RunInfoFile)); err != nil {
		return nil, err
	}
	log.Info("test run started", "dir", dir, "poses", len(poses), "algorithm", info.Algorithm, "mode", info.Mode)

	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(len(poses),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("sweep"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Close()

	truth := timewarp.NewRenderedFrame(opts.Width, opts.Height, opts.Projection)
	warped := timewarp.NewImage(opts.Width, opts.Height)
	for _, sp := range poses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := sp.FileName()

		truth.SetPose(sp.Pose)
		if err := renderer.RenderScene(ctx, sp.Pose, truth); err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		if err := truth.Color.SavePNG(filepath.Join(dir, analysis.GroundTruthDir, name)); err != nil {
			return nil, err
		}

		if err := alg.Reproject(src, sp.Pose, opts.Params, warped); err != nil {
			return nil, fmt.Errorf("reproject %s: %w", name, err)
		}
		if err := warped.SavePNG(filepath.Join(dir, analysis.WarpedDir, name)); err != nil {
			return nil, err
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	res := &Result{ID: id, Dir: dir, Info: info, Poses: len(poses), Elapsed: time.Since(start)}
	log.Info("test run finished", "poses", res.Poses, "elapsed", res.Elapsed)
	return res, nil
}
