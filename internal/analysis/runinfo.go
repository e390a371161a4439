// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package analysis

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/timewarp"
)

// Layout of a test-run directory.
const (
	RunInfoFile    = "run_info.txt"
	GroundTruthDir = "ground_truth"
	WarpedDir      = "warped"
	SnapshotFile   = "start_frame.cbor"
)

// RunInfo describes a test run. The first line of run_info.txt is the start
// position as "x_y_z"; the remaining lines are key=value pairs.
type RunInfo struct {
	ID           string
	Origin       mgl32.Vec3
	Algorithm    string
	Mode         string
	Displacement float32
	Step         float32
}

// WriteFile writes ri to path.
func (ri RunInfo) WriteFile(path string) error {
	var b bytes.Buffer
	fmt.Fprintln(&b, timewarp.FormatPosition(ri.Origin))
	fmt.Fprintf(&b, "id=%s\n", ri.ID)
	fmt.Fprintf(&b, "algorithm=%s\n", ri.Algorithm)
	fmt.Fprintf(&b, "mode=%s\n", ri.Mode)
	fmt.Fprintf(&b, "displacement=%g\n", ri.Displacement)
	fmt.Fprintf(&b, "step=%g\n", ri.Step)
	return os.WriteFile(path, b.Bytes(), 0o644) //nolint:gosec // run metadata is not secret
}

// ReadRunInfo parses run_info.txt. Only the origin line is required.
func ReadRunInfo(path string) (RunInfo, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided
	if err != nil {
		return RunInfo{}, fmt.Errorf("reading run info: %w", err)
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	if !sc.Scan() {
		return RunInfo{}, fmt.Errorf("%s: %w", path, errors.New("missing origin line"))
	}
	var ri RunInfo
	ri.Origin, err = timewarp.ParsePosition(sc.Text())
	if err != nil {
		return RunInfo{}, fmt.Errorf("%s: origin: %w", path, err)
	}
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "id":
			ri.ID = value
		case "algorithm":
			ri.Algorithm = value
		case "mode":
			ri.Mode = value
		case "displacement", "step":
			f, err := strconv.ParseFloat(value, 32)
			if err != nil {
				return RunInfo{}, fmt.Errorf("%s: %s: %w", path, key, err)
			}
			if key == "step" {
				ri.Step = float32(f)
			} else {
				ri.Displacement = float32(f)
			}
		}
	}
	return ri, sc.Err()
}
