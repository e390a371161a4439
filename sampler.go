// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import "math"

// pixelUV returns the texture coordinate of the center of pixel (x, y) in a
// w×h target. v is 1 at the top row.
func pixelUV(x, y, w, h int) (u, v float32) {
	return (float32(x) + 0.5) / float32(w), 1 - (float32(y)+0.5)/float32(h)
}

// sampleDepth fetches the nearest depth texel, clamping to the map edge.
func sampleDepth(d *DepthMap, u, v float32) float32 {
	x := int(math.Floor(float64(u * float32(d.width))))
	y := int(math.Floor(float64((1 - v) * float32(d.height))))
	return d.At(x, y)
}

// inFrame reports whether uv lies inside the [0, 1] texture square.
func inFrame(u, v float32) bool {
	return u >= 0 && u <= 1 && v >= 0 && v <= 1
}

// sampleColor fetches img at uv with bilinear filtering and edge clamping.
// Channels are returned in [0, 255].
func sampleColor(img *Image, u, v float32) [4]float32 {
	w, h := img.width, img.height
	fx := float64(u*float32(w)) - 0.5
	fy := float64((1-v)*float32(h)) - 0.5

	x0f, y0f := math.Floor(fx), math.Floor(fy)
	tx, ty := float32(fx-x0f), float32(fy-y0f)
	x0 := clampInt(int(x0f), 0, w-1)
	y0 := clampInt(int(y0f), 0, h-1)
	x1 := clampInt(int(x0f)+1, 0, w-1)
	y1 := clampInt(int(y0f)+1, 0, h-1)

	p := img.pix
	i00 := (y0*w + x0) * 4
	i10 := (y0*w + x1) * 4
	i01 := (y1*w + x0) * 4
	i11 := (y1*w + x1) * 4

	var out [4]float32
	for c := range 4 {
		top := float32(p[i00+c])*(1-tx) + float32(p[i10+c])*tx
		bot := float32(p[i01+c])*(1-tx) + float32(p[i11+c])*tx
		out[c] = top*(1-ty) + bot*ty
	}
	return out
}

// blend255 mixes a [0,255] color toward bg by t in [0, 1].
func blend255(c [4]float32, bg [4]float32, t float32) [4]float32 {
	if t <= 0 {
		return c
	}
	if t >= 1 {
		return bg
	}
	for i := range c {
		c[i] += (bg[i] - c[i]) * t
	}
	return c
}

// background255 returns bg scaled to [0, 255].
func background255(bg RGBA) [4]float32 {
	v := bg.Vec4()
	return [4]float32{v[0] * 255, v[1] * 255, v[2] * 255, v[3] * 255}
}

// store255 writes a [0,255] color to dst with rounding.
func store255(dst *Image, x, y int, c [4]float32) {
	i := (y*dst.width + x) * 4
	for k := range 4 {
		dst.pix[i+k] = uint8(clampF(c[k]+0.5, 0, 255))
	}
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
