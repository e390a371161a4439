// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

var _ image.Image = (*Image)(nil)

func TestImagePNG(t *testing.T) {
	img := NewImage(5, 3)
	img.SetRGBA8(4, 2, 10, 20, 30, 255)
	img.SetRGBA8(9, 9, 1, 1, 1, 1) // ignored
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := img.SavePNG(path); err != nil {
		t.Fatal(err)
	}
	back, err := LoadPNG(path)
	if err != nil {
		t.Fatal(err)
	}
	if d, x, y := maxDiff(img, back); d != 0 {
		t.Errorf("PNG round trip differs by %d at (%d,%d)", d, x, y)
	}
}

func TestImageFromGeneric(t *testing.T) {
	src := image.NewGray(image.Rect(2, 2, 4, 3))
	src.SetGray(3, 2, color.Gray{Y: 200})
	img := ImageFrom(src)
	if img.Width() != 2 || img.Height() != 1 {
		t.Fatalf("size = %dx%d", img.Width(), img.Height())
	}
	if r, g, b, a := img.RGBA8(1, 0); r != 200 || g != 200 || b != 200 || a != 255 {
		t.Errorf("pixel = %d %d %d %d", r, g, b, a)
	}
}

func TestImageCopyMismatch(t *testing.T) {
	if err := NewImage(2, 2).CopyFrom(NewImage(3, 2)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("err = %v", err)
	}
	if err := NewDepthMap(2, 2).CopyFrom(NewDepthMap(2, 3)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("depth err = %v", err)
	}
}

func TestDepthMap(t *testing.T) {
	d := NewDepthMap(3, 2)
	if d.At(1, 1) != 1 {
		t.Error("new depth map must be at the far plane")
	}
	d.Set(2, 0, 0.25)
	if d.At(5, -3) != 0.25 {
		t.Error("At must clamp to the edge")
	}
	vis := d.Visualize(DefaultProjection())
	if r, _, _, _ := vis.RGBA8(0, 0); r != 0 {
		t.Errorf("far plane shade = %d, want 0", r)
	}
	if r, _, _, _ := vis.RGBA8(2, 0); r == 0 {
		t.Error("near sample should be lit")
	}
}

func TestDepthMapBytes(t *testing.T) {
	d := NewDepthMap(3, 2)
	for i := range d.Data() {
		d.Data()[i] = 0.125 * float32(i)
	}
	b := d.Bytes()
	if len(b) != 6*4 {
		t.Fatalf("len = %d, want 24", len(b))
	}
	// 0.125 is 0x3e000000, stored little endian.
	if b[4] != 0 || b[7] != 0x3e {
		t.Errorf("second value bytes = % x", b[4:8])
	}
	got := NewDepthMap(3, 2)
	if err := got.SetBytes(b); err != nil {
		t.Fatal(err)
	}
	for i, v := range got.Data() {
		if v != d.Data()[i] {
			t.Fatalf("value %d = %v, want %v", i, v, d.Data()[i])
		}
	}
	if err := got.SetBytes(b[:20]); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("short SetBytes err = %v, want ErrSizeMismatch", err)
	}
}

func TestCheckReprojectArgs(t *testing.T) {
	src := NewRenderedFrame(4, 4, DefaultProjection().WithAspect(4, 4))
	tests := []struct {
		name string
		src  *RenderedFrame
		dst  *Image
		want error
	}{
		{"ok", src, NewImage(4, 4), nil},
		{"nil source", nil, NewImage(4, 4), ErrNilFrame},
		{"nil destination", src, nil, ErrNilFrame},
		{"empty destination", src, NewImage(0, 0), ErrSizeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckReprojectArgs(tt.src, tt.dst)
			if tt.want == nil && err != nil || tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("CheckReprojectArgs err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSampleHelpers(t *testing.T) {
	img := NewImage(2, 2)
	img.SetRGBA8(0, 0, 0, 0, 0, 255)
	img.SetRGBA8(1, 0, 100, 0, 0, 255)
	img.SetRGBA8(0, 1, 0, 0, 0, 255)
	img.SetRGBA8(1, 1, 100, 0, 0, 255)

	u, v := pixelUV(1, 0, 2, 2)
	if u != 0.75 || v != 0.75 {
		t.Fatalf("pixelUV = %v,%v", u, v)
	}
	if c := sampleColor(img, u, v); c[0] != 100 {
		t.Errorf("texel center red = %v", c[0])
	}
	if c := sampleColor(img, 0.5, 0.5); c[0] != 50 {
		t.Errorf("midpoint red = %v, want 50", c[0])
	}
	if c := sampleColor(img, -3, 0.5); c[0] != 0 {
		t.Errorf("clamped red = %v", c[0])
	}

	d := NewDepthMap(2, 2)
	d.Set(0, 0, 0.1) // top-left
	if got := sampleDepth(d, 0.25, 0.75); got != 0.1 {
		t.Errorf("sampleDepth top-left = %v", got)
	}
}

func TestUniformLayouts(t *testing.T) {
	src := NewRenderedFrame(16, 8, DefaultProjection())
	mesh, err := NewWarpMesh(4, 2)
	if err != nil {
		t.Fatal(err)
	}
	mu := NewMeshUniforms(src, IdentityPose(), DefaultMeshParams(), testBackground, mesh, 32, 16)
	if b := mu.Bytes(); len(b) != MeshUniformSize || len(b)%16 != 0 {
		t.Errorf("mesh uniform size = %d", len(b))
	}
	if !near(mu.Reconstruct(), mgl32.Ident4(), 1e-4) {
		t.Errorf("identity reconstruct = %v", mu.Reconstruct())
	}
	ru := NewRayMarchUniforms(src, IdentityPose(), DefaultRayMarchParams(), testBackground, 32, 16)
	if b := ru.Bytes(); len(b) != RayMarchUniformSize || len(b)%16 != 0 {
		t.Errorf("ray uniform size = %d", len(b))
	}
	if ru.Steps != 100 || ru.SourceWidth != 16 || ru.OutputHeight != 16 {
		t.Errorf("ray uniforms = %+v", ru)
	}
}
