// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
)

// Image is an 8-bit straight-alpha RGBA pixel buffer. Row 0 is the top row.
type Image struct {
	width  int
	height int
	pix    []uint8
}

// NewImage creates a zeroed image.
func NewImage(width, height int) *Image {
	return &Image{
		width:  width,
		height: height,
		pix:    make([]uint8, width*height*4),
	}
}

// Width returns the image width in pixels.
func (m *Image) Width() int { return m.width }

// Height returns the image height in pixels.
func (m *Image) Height() int { return m.height }

// Pix returns the raw RGBA bytes, 4 per pixel, rows top to bottom.
func (m *Image) Pix() []uint8 { return m.pix }

// SetRGBA8 stores raw channels at (x, y). Out-of-bounds writes are ignored.
func (m *Image) SetRGBA8(x, y int, r, g, b, a uint8) {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return
	}
	i := (y*m.width + x) * 4
	m.pix[i+0] = r
	m.pix[i+1] = g
	m.pix[i+2] = b
	m.pix[i+3] = a
}

// RGBA8 returns the raw channels at (x, y), or zeros when out of bounds.
func (m *Image) RGBA8(x, y int) (r, g, b, a uint8) {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return 0, 0, 0, 0
	}
	i := (y*m.width + x) * 4
	return m.pix[i+0], m.pix[i+1], m.pix[i+2], m.pix[i+3]
}

// SetPixel stores c at (x, y).
func (m *Image) SetPixel(x, y int, c RGBA) {
	r, g, b, a := c.Bytes()
	m.SetRGBA8(x, y, r, g, b, a)
}

// Pixel returns the color at (x, y).
func (m *Image) Pixel(x, y int) RGBA {
	return FromBytes(m.RGBA8(x, y))
}

// Clear fills the whole image with c.
func (m *Image) Clear(c RGBA) {
	r, g, b, a := c.Bytes()
	for i := 0; i < len(m.pix); i += 4 {
		m.pix[i+0] = r
		m.pix[i+1] = g
		m.pix[i+2] = b
		m.pix[i+3] = a
	}
}

// CopyFrom copies src into m. Both images must share dimensions.
func (m *Image) CopyFrom(src *Image) error {
	if src.width != m.width || src.height != m.height {
		return fmt.Errorf("%w: %dx%d into %dx%d", ErrSizeMismatch, src.width, src.height, m.width, m.height)
	}
	copy(m.pix, src.pix)
	return nil
}

// Clone returns a deep copy of m.
func (m *Image) Clone() *Image {
	c := NewImage(m.width, m.height)
	copy(c.pix, m.pix)
	return c
}

// ToNRGBA converts m to an *image.NRGBA sharing no memory with m.
func (m *Image) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, m.width, m.height))
	copy(img.Pix, m.pix)
	return img
}

// ImageFrom converts any image.Image to an Image.
func ImageFrom(src image.Image) *Image {
	b := src.Bounds()
	m := NewImage(b.Dx(), b.Dy())
	if n, ok := src.(*image.NRGBA); ok && n.Stride == b.Dx()*4 && b.Min == (image.Point{}) {
		copy(m.pix, n.Pix)
		return m
	}
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			m.SetRGBA8(x, y, c.R, c.G, c.B, c.A)
		}
	}
	return m
}

// SavePNG writes m to path as a PNG file.
func (m *Image) SavePNG(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is caller-provided
	if err != nil {
		return err
	}
	if err := png.Encode(f, m.ToNRGBA()); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// LoadPNG reads a PNG file into an Image.
func LoadPNG(path string) (*Image, error) {
	f, err := os.Open(path) //nolint:gosec // path is caller-provided
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return ImageFrom(img), nil
}

// At implements image.Image.
func (m *Image) At(x, y int) color.Color {
	r, g, b, a := m.RGBA8(x, y)
	return color.NRGBA{R: r, G: g, B: b, A: a}
}

// Bounds implements image.Image.
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// ColorModel implements image.Image.
func (m *Image) ColorModel() color.Model {
	return color.NRGBAModel
}

// DepthMap stores window-space depth in [0, 1] per pixel, 1 meaning the far
// plane (nothing rendered). Row 0 is the top row.
type DepthMap struct {
	width  int
	height int
	data   []float32
}

// NewDepthMap creates a depth map cleared to the far plane.
func NewDepthMap(width, height int) *DepthMap {
	d := &DepthMap{
		width:  width,
		height: height,
		data:   make([]float32, width*height),
	}
	d.Fill(1)
	return d
}

// Width returns the map width.
func (d *DepthMap) Width() int { return d.width }

// Height returns the map height.
func (d *DepthMap) Height() int { return d.height }

// Data returns the raw depth values, rows top to bottom.
func (d *DepthMap) Data() []float32 { return d.data }

// At returns the depth at (x, y), clamping coordinates to the map.
func (d *DepthMap) At(x, y int) float32 {
	x = clampInt(x, 0, d.width-1)
	y = clampInt(y, 0, d.height-1)
	return d.data[y*d.width+x]
}

// Set stores the depth at (x, y). Out-of-bounds writes are ignored.
func (d *DepthMap) Set(x, y int, v float32) {
	if x < 0 || x >= d.width || y < 0 || y >= d.height {
		return
	}
	d.data[y*d.width+x] = v
}

// Bytes returns the depth values as little-endian float32s.
func (d *DepthMap) Bytes() []byte {
	out := make([]byte, len(d.data)*4)
	for i, v := range d.data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// SetBytes loads little-endian float32 depth values produced by Bytes.
func (d *DepthMap) SetBytes(b []byte) error {
	if len(b) != len(d.data)*4 {
		return fmt.Errorf("%w: %d depth bytes for %dx%d", ErrSizeMismatch, len(b), d.width, d.height)
	}
	for i := range d.data {
		d.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return nil
}

// Fill sets every value to v.
func (d *DepthMap) Fill(v float32) {
	for i := range d.data {
		d.data[i] = v
	}
}

// CopyFrom copies src into d. Both maps must share dimensions.
func (d *DepthMap) CopyFrom(src *DepthMap) error {
	if src.width != d.width || src.height != d.height {
		return fmt.Errorf("%w: depth %dx%d into %dx%d", ErrSizeMismatch, src.width, src.height, d.width, d.height)
	}
	copy(d.data, src.data)
	return nil
}

// Visualize renders the depth map as a grayscale image, near=white.
// Linear depth is used when proj is valid so that the gradient is readable.
func (d *DepthMap) Visualize(proj Projection) *Image {
	img := NewImage(d.width, d.height)
	span := proj.Far - proj.Near
	for i, v := range d.data {
		shade := float32(0)
		if v < 1 && span > 0 {
			shade = 1 - (proj.LinearDepth(v)-proj.Near)/span
		}
		g := to8(float64(shade))
		img.pix[i*4+0] = g
		img.pix[i*4+1] = g
		img.pix[i*4+2] = g
		img.pix[i*4+3] = 255
	}
	return img
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
