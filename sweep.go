// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// SweepMode selects how displaced poses are generated around a start pose.
type SweepMode int

const (
	// SweepGrid visits every (x, y, z) offset of the displacement cube.
	SweepGrid SweepMode = iota
	// SweepAxis displaces along one local axis at a time.
	SweepAxis
)

// String returns "grid" or "axis".
func (m SweepMode) String() string {
	if m == SweepAxis {
		return "axis"
	}
	return "grid"
}

// ParseSweepMode parses "grid" or "axis".
func ParseSweepMode(s string) (SweepMode, error) {
	switch strings.ToLower(s) {
	case "grid", "":
		return SweepGrid, nil
	case "axis":
		return SweepAxis, nil
	}
	return 0, fmt.Errorf("timewarp: unknown sweep mode %q", s)
}

// Sweep describes a deterministic set of test poses.
type Sweep struct {
	Start        Pose
	Displacement float32 // maximum offset along each axis
	Step         float32 // spacing between offsets
	Mode         SweepMode
}

// SweepPose is one generated pose and the local offset that produced it.
type SweepPose struct {
	Offset mgl32.Vec3
	Pose   Pose
}

// FileName returns the output image name of sp.
func (sp SweepPose) FileName() string {
	return SweepFileName(sp.Pose.Position)
}

// DefaultSweepStart is the start pose of the reference test scene: slightly
// above and beside the origin, turned π/8 left and pitched π/10 down.
func DefaultSweepStart() Pose {
	yaw := mgl32.QuatRotate(math.Pi/8, mgl32.Vec3{0, 1, 0})
	pitch := mgl32.QuatRotate(-math.Pi/10, mgl32.Vec3{1, 0, 0})
	return NewPose(mgl32.Vec3{1.3, 1.5, 2.2}, yaw.Mul(pitch))
}

// AxisOffsets returns the offsets -d, -d+s, ..., d. Counts are derived from
// round(d/s) so accumulated float error never drops the last offset.
func AxisOffsets(displacement, step float32) ([]float32, error) {
	if !(step > 0) || displacement < 0 {
		return nil, errors.New("timewarp: sweep step must be positive and displacement non-negative")
	}
	n := int(math.Round(float64(displacement / step)))
	offsets := make([]float32, 0, 2*n+1)
	for i := -n; i <= n; i++ {
		offsets = append(offsets, float32(i)*step)
	}
	return offsets, nil
}

// Poses generates the sweep. Offsets are applied in the start pose's local
// frame and the orientation is kept. Grid mode yields (2n+1)³ poses; axis
// mode yields the start pose followed by 2n poses per axis, 1+6n in total,
// with n = round(Displacement/Step).
func (s Sweep) Poses() ([]SweepPose, error) {
	offsets, err := AxisOffsets(s.Displacement, s.Step)
	if err != nil {
		return nil, err
	}
	start := s.Start.Normalized()
	mk := func(o mgl32.Vec3) SweepPose {
		return SweepPose{Offset: o, Pose: start.Displaced(o)}
	}

	var out []SweepPose
	switch s.Mode {
	case SweepAxis:
		out = make([]SweepPose, 0, 1+3*(len(offsets)-1))
		out = append(out, mk(mgl32.Vec3{}))
		for axis := range 3 {
			for _, d := range offsets {
				if d == 0 {
					continue
				}
				var o mgl32.Vec3
				o[axis] = d
				out = append(out, mk(o))
			}
		}
	default:
		out = make([]SweepPose, 0, len(offsets)*len(offsets)*len(offsets))
		for _, x := range offsets {
			for _, y := range offsets {
				for _, z := range offsets {
					out = append(out, mk(mgl32.Vec3{x, y, z}))
				}
			}
		}
	}
	return out, nil
}

// SweepFileName names an output image after a world position: "x_y_z.png".
func SweepFileName(p mgl32.Vec3) string {
	return FormatPosition(p) + ".png"
}

// FormatPosition formats p as "x_y_z" with four decimals.
func FormatPosition(p mgl32.Vec3) string {
	return fmt.Sprintf("%.4f_%.4f_%.4f", p[0], p[1], p[2])
}

// ParsePosition parses "x_y_z", optionally with a ".png" suffix.
func ParsePosition(s string) (mgl32.Vec3, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".png")
	parts := strings.Split(s, "_")
	if len(parts) != 3 {
		return mgl32.Vec3{}, fmt.Errorf("timewarp: position %q: want x_y_z", s)
	}
	var p mgl32.Vec3
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 32)
		if err != nil {
			return mgl32.Vec3{}, fmt.Errorf("timewarp: position %q: %w", s, err)
		}
		p[i] = float32(v)
	}
	return p, nil
}
