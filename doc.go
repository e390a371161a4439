// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package timewarp implements asynchronous time-warp reprojection.
//
// # Overview
//
// A scene is rendered at a low cadence into a [FrameStore]. Every presented
// frame is produced by reprojecting the most recent rendered color and depth
// images from the pose they were rendered at to a fresher camera pose, without
// rendering the scene again.
//
// Two interchangeable [Algorithm] implementations are provided:
//   - [MeshReprojector]: a depth-displaced warp mesh rasterized from the new
//     viewpoint, with edge-bleed mitigation for revealed content.
//   - [RayMarchReprojector]: a per-pixel ray march through the old depth
//     buffer with occlusion classification.
//
// The [Scheduler] ties them together: it renders when the render interval
// elapses and reprojects on every presentation tick.
//
// # Conventions
//
// Matrices are [mgl32.Mat4] values in column-major order using column vectors
// (clip = P × V × world). Clip space follows OpenGL: NDC z is in [-1, 1] and
// window depth is z·0.5+0.5, so 1.0 marks the far plane and empty background.
// Texture coordinates put v=0 at the bottom row of an image and v=1 at the top.
//
// # Quick Start
//
//	proj, _ := timewarp.NewProjection(mgl32.DegToRad(60), 16.0/9, 0.1, 100)
//	store := timewarp.NewFrameStore(1280, 720, proj)
//	sched, _ := timewarp.NewScheduler(renderer, presenter, poses, store,
//	    timewarp.WithRenderInterval(time.Second/15))
//	err := sched.Run(ctx, 0)
//
// # Logging
//
// The package is silent by default. Use [SetLogger] to route diagnostics to a
// [log/slog] logger.
package timewarp
