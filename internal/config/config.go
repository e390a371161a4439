// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads timewarp session settings from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/timewarp"
)

// Config is a complete session description.
type Config struct {
	Width           int              `yaml:"width"`
	Height          int              `yaml:"height"`
	Projection      ProjectionConfig `yaml:"projection"`
	MeshGrid        GridConfig       `yaml:"mesh_grid"`
	RenderInterval  Duration         `yaml:"render_interval"`
	PresentInterval Duration         `yaml:"present_interval"`
	Algorithm       string           `yaml:"algorithm"`
	Reproject       bool             `yaml:"reproject"`
	Background      string           `yaml:"background"`
	Mesh            MeshConfig       `yaml:"mesh"`
	RayMarch        RayMarchConfig   `yaml:"ray_march"`
	Sweep           SweepConfig      `yaml:"sweep"`
	OutputDir       string           `yaml:"output_dir"`
	Database        string           `yaml:"database"`
	Workers         int              `yaml:"workers"`
	Snapshot        bool             `yaml:"snapshot"`
}

// ProjectionConfig describes the session frustum. The aspect ratio follows
// Width/Height.
type ProjectionConfig struct {
	FovYDegrees float32 `yaml:"fov_y_degrees"`
	Near        float32 `yaml:"near"`
	Far         float32 `yaml:"far"`
}

// GridConfig is the warp mesh resolution in quads.
type GridConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// MeshConfig mirrors timewarp.MeshParams.
type MeshConfig struct {
	BleedRadius         float32 `yaml:"bleed_radius"`
	BleedTolerance      float32 `yaml:"bleed_tolerance"`
	DebugOverlayOpacity float32 `yaml:"debug_overlay_opacity"`
}

// RayMarchConfig mirrors timewarp.RayMarchParams.
type RayMarchConfig struct {
	Power              float32 `yaml:"power"`
	StepSize           float32 `yaml:"step_size"`
	DepthOffset        float32 `yaml:"depth_offset"`
	OcclusionThreshold float32 `yaml:"occlusion_threshold"`
	OcclusionOffset    float32 `yaml:"occlusion_offset"`
}

// SweepConfig describes the test-run pose sweep.
type SweepConfig struct {
	Displacement float32    `yaml:"displacement"`
	Step         float32    `yaml:"step"`
	Mode         string     `yaml:"mode"`
	Start        PoseConfig `yaml:"start"`
}

// PoseConfig is a position plus yaw (about +Y) then pitch (about +X), in degrees.
type PoseConfig struct {
	Position     [3]float32 `yaml:"position,flow"`
	YawDegrees   float32    `yaml:"yaw_degrees"`
	PitchDegrees float32    `yaml:"pitch_degrees"`
}

// Duration wraps time.Duration for YAML, written as "66ms" or "1.5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in session: 640×360, 15 Hz scene renders,
// 90 Hz presentation and the reference sweep.
func Default() *Config {
	mp := timewarp.DefaultMeshParams()
	rp := timewarp.DefaultRayMarchParams()
	return &Config{
		Width:  640,
		Height: 360,
		Projection: ProjectionConfig{
			FovYDegrees: 70,
			Near:        0.1,
			Far:         100,
		},
		MeshGrid:        GridConfig{Width: timewarp.DefaultMeshGridWidth, Height: timewarp.DefaultMeshGridHeight},
		RenderInterval:  Duration(timewarp.DefaultRenderInterval),
		PresentInterval: Duration(time.Second / 90),
		Algorithm:       timewarp.AlgorithmMesh.String(),
		Reproject:       true,
		Background:      "#000000ff",
		Mesh: MeshConfig{
			BleedRadius:         mp.BleedRadius,
			BleedTolerance:      mp.BleedTolerance,
			DebugOverlayOpacity: mp.DebugOverlayOpacity,
		},
		RayMarch: RayMarchConfig{
			Power:              rp.Power,
			StepSize:           rp.StepSize,
			DepthOffset:        rp.DepthOffset,
			OcclusionThreshold: rp.OcclusionThreshold,
			OcclusionOffset:    rp.OcclusionOffset,
		},
		Sweep: SweepConfig{
			Displacement: 0.3,
			Step:         0.1,
			Mode:         timewarp.SweepAxis.String(),
			Start: PoseConfig{
				Position:     [3]float32{1.3, 1.5, 2.2},
				YawDegrees:   180.0 / 8,
				PitchDegrees: -180.0 / 10,
			},
		},
		OutputDir: "output",
		Database:  "output/analysis.db",
	}
}

// Load reads path and overlays it on Default. Keys missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("width and height must be positive, got %dx%d", c.Width, c.Height))
	}
	if c.MeshGrid.Width < 1 || c.MeshGrid.Height < 1 {
		errs = append(errs, fmt.Errorf("mesh_grid: %w", timewarp.ErrInvalidMeshSize))
	}
	if c.RenderInterval <= 0 {
		errs = append(errs, errors.New("render_interval must be positive"))
	}
	if c.PresentInterval < 0 {
		errs = append(errs, errors.New("present_interval must not be negative"))
	}
	if _, err := timewarp.ParseAlgorithmKind(c.Algorithm); err != nil {
		errs = append(errs, err)
	}
	if _, err := timewarp.ParseHex(c.Background); err != nil {
		errs = append(errs, fmt.Errorf("background: %w", err))
	}
	if c.Width > 0 && c.Height > 0 {
		if _, err := c.TimewarpProjection(); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := timewarp.ParseSweepMode(c.Sweep.Mode); err != nil {
		errs = append(errs, err)
	}
	if !(c.Sweep.Step > 0) || c.Sweep.Displacement < 0 {
		errs = append(errs, fmt.Errorf("sweep: step must be positive and displacement non-negative"))
	}
	return errors.Join(errs...)
}

// TimewarpProjection builds the session projection.
func (c *Config) TimewarpProjection() (timewarp.Projection, error) {
	return timewarp.NewProjection(
		mgl32.DegToRad(c.Projection.FovYDegrees),
		float32(c.Width)/float32(c.Height),
		c.Projection.Near, c.Projection.Far)
}

// Settings builds the initial reprojection settings. Call Validate first.
func (c *Config) Settings() timewarp.Settings {
	kind, _ := timewarp.ParseAlgorithmKind(c.Algorithm)
	bg, err := timewarp.ParseHex(c.Background)
	if err != nil {
		bg = timewarp.Black
	}
	return timewarp.Settings{
		Algorithm: kind,
		Reproject: c.Reproject,
		Params: timewarp.Params{
			Mesh: timewarp.MeshParams{
				BleedRadius:         c.Mesh.BleedRadius,
				BleedTolerance:      c.Mesh.BleedTolerance,
				DebugOverlayOpacity: c.Mesh.DebugOverlayOpacity,
			},
			RayMarch: timewarp.RayMarchParams{
				Power:              c.RayMarch.Power,
				StepSize:           c.RayMarch.StepSize,
				DepthOffset:        c.RayMarch.DepthOffset,
				OcclusionThreshold: c.RayMarch.OcclusionThreshold,
				OcclusionOffset:    c.RayMarch.OcclusionOffset,
			},
			Background: bg,
		}.Clamped(),
	}
}

// StartPose converts the sweep start pose.
func (p PoseConfig) StartPose() timewarp.Pose {
	yaw := mgl32.QuatRotate(mgl32.DegToRad(p.YawDegrees), mgl32.Vec3{0, 1, 0})
	pitch := mgl32.QuatRotate(mgl32.DegToRad(p.PitchDegrees), mgl32.Vec3{1, 0, 0})
	return timewarp.NewPose(mgl32.Vec3(p.Position), yaw.Mul(pitch))
}

// TimewarpSweep builds the pose sweep. Call Validate first.
func (c *Config) TimewarpSweep() timewarp.Sweep {
	mode, _ := timewarp.ParseSweepMode(c.Sweep.Mode)
	return timewarp.Sweep{
		Start:        c.Sweep.Start.StartPose(),
		Displacement: c.Sweep.Displacement,
		Step:         c.Sweep.Step,
		Mode:         mode,
	}
}

