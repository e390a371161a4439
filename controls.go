// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import "sync"

// Settings is the set of tunables read by the scheduler on every tick.
type Settings struct {
	Algorithm AlgorithmKind
	Reproject bool
	Params    Params
}

// DefaultSettings enables mesh reprojection with default parameters.
func DefaultSettings() Settings {
	return Settings{
		Algorithm: AlgorithmMesh,
		Reproject: true,
		Params:    DefaultParams(),
	}
}

// Controls holds settings shared between a configuration surface (a UI,
// a CLI, a test) and the frame loop. Writers use the setters, which clamp
// to documented ranges; the scheduler copies a Snapshot once per tick, so a
// change is observed whole on the next tick.
type Controls struct {
	mu sync.RWMutex
	s  Settings
}

// NewControls creates controls holding s, clamped.
func NewControls(s Settings) *Controls {
	s.Params = s.Params.Clamped()
	return &Controls{s: s}
}

// Snapshot returns a copy of the current settings.
func (c *Controls) Snapshot() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s
}

// SetAlgorithm selects the reprojection algorithm.
func (c *Controls) SetAlgorithm(k AlgorithmKind) {
	c.mu.Lock()
	c.s.Algorithm = k
	c.mu.Unlock()
}

// SetReproject toggles reprojection. When off, frames are presented as
// rendered.
func (c *Controls) SetReproject(on bool) {
	c.mu.Lock()
	c.s.Reproject = on
	c.mu.Unlock()
}

// SetMeshParams replaces the mesh parameters, clamped.
func (c *Controls) SetMeshParams(p MeshParams) {
	cl := p.Clamped()
	if cl != p {
		Logger().Warn("mesh parameters clamped", "requested", p, "applied", cl)
	}
	c.mu.Lock()
	c.s.Params.Mesh = cl
	c.mu.Unlock()
}

// SetRayMarchParams replaces the ray-march parameters, clamped.
func (c *Controls) SetRayMarchParams(p RayMarchParams) {
	cl := p.Clamped()
	if cl != p {
		Logger().Warn("ray-march parameters clamped", "requested", p, "applied", cl)
	}
	c.mu.Lock()
	c.s.Params.RayMarch = cl
	c.mu.Unlock()
}

// SetBackground sets the color shown where no stored content applies.
func (c *Controls) SetBackground(bg RGBA) {
	c.mu.Lock()
	c.s.Params.Background = bg
	c.mu.Unlock()
}

// Update applies fn to a copy of the settings and stores the clamped result
// atomically.
func (c *Controls) Update(fn func(*Settings)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.s
	fn(&s)
	s.Params = s.Params.Clamped()
	c.s = s
}
