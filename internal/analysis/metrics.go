// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package analysis measures reprojection quality of a test run by comparing
// every warped image against the ground-truth render of the same pose.
package analysis

import (
	"fmt"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/timewarp"
)

// SSIMOptions configures the structural similarity index.
type SSIMOptions struct {
	Radius int // window half-size; the window is 2·Radius+1 wide
	K1, K2 float64

	// Gaussian weights the window with standard deviation Sigma instead of
	// averaging it uniformly.
	Gaussian bool
	Sigma    float64

	// SampleCovariance scales variances and covariance by N/(N-1), N being
	// the number of pixels in the window.
	SampleCovariance bool

	// DataRange is the dynamic range of the inputs. Zero derives it from the
	// warped image (max - min over its color channels).
	DataRange float64
}

// DefaultSSIMOptions returns a uniform 7×7 window with sample covariance,
// matching the defaults of scikit-image's structural_similarity.
func DefaultSSIMOptions() SSIMOptions {
	return SSIMOptions{Radius: 3, K1: 0.01, K2: 0.03, SampleCovariance: true}
}

// GaussianSSIMOptions returns the 11×11 Gaussian window with σ = 1.5 of
// Wang et al.
func GaussianSSIMOptions() SSIMOptions {
	return SSIMOptions{Radius: 5, K1: 0.01, K2: 0.03, Gaussian: true, Sigma: 1.5, SampleCovariance: true}
}

// Metrics is the comparison of one warped image with its ground truth.
type Metrics struct {
	SSIM float64
	MSE  float64
}

// Compare computes SSIM and MSE of warped against truth. A warped image of a
// different size is scaled to the ground-truth size first.
func Compare(truth, warped *timewarp.Image, opts SSIMOptions) (Metrics, error) {
	if truth.Width() != warped.Width() || truth.Height() != warped.Height() {
		warped = resize(warped, truth.Width(), truth.Height())
	}
	s, err := SSIM(truth, warped, opts)
	if err != nil {
		return Metrics{}, err
	}
	m, err := MSE(truth, warped)
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{SSIM: s, MSE: m}, nil
}

func resize(src *timewarp.Image, w, h int) *timewarp.Image {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return timewarp.ImageFrom(dst)
}

// MSE returns the mean squared error over the color channels, with channel
// values scaled to [0, 1]. Alpha is ignored.
func MSE(a, b *timewarp.Image) (float64, error) {
	if err := checkSizes(a, b); err != nil {
		return 0, err
	}
	pa, pb := a.Pix(), b.Pix()
	var sum float64
	for i := 0; i < len(pa); i += 4 {
		for c := range 3 {
			d := (float64(pa[i+c]) - float64(pb[i+c])) / 255
			sum += d * d
		}
	}
	return sum / float64(len(pa)/4*3), nil
}

// SSIM returns the mean structural similarity of the color channels of a and
// b. Only window positions fully inside the image contribute; the window
// shrinks for images smaller than it.
func SSIM(a, b *timewarp.Image, opts SSIMOptions) (float64, error) {
	if err := checkSizes(a, b); err != nil {
		return 0, err
	}
	w, h := a.Width(), a.Height()
	r := max(min(opts.Radius, (min(w, h)-1)/2), 0)
	kernel := uniformKernel(r)
	if opts.Gaussian {
		kernel = gaussianKernel(r, opts.Sigma)
	}
	covNorm := 1.0
	if np := float64((2*r + 1) * (2*r + 1)); opts.SampleCovariance && np > 1 {
		covNorm = np / (np - 1)
	}

	L := opts.DataRange
	if L <= 0 {
		L = colorRange(b)
	}
	c1 := (opts.K1 * L) * (opts.K1 * L)
	c2 := (opts.K2 * L) * (opts.K2 * L)

	n := w * h
	x, y := make([]float64, n), make([]float64, n)
	xx, yy, xy := make([]float64, n), make([]float64, n), make([]float64, n)
	var total float64
	for c := range 3 {
		channel(a, c, x)
		channel(b, c, y)
		for i := range n {
			xx[i] = x[i] * x[i]
			yy[i] = y[i] * y[i]
			xy[i] = x[i] * y[i]
		}
		mx := filterValid(x, w, h, kernel)
		my := filterValid(y, w, h, kernel)
		exx := filterValid(xx, w, h, kernel)
		eyy := filterValid(yy, w, h, kernel)
		exy := filterValid(xy, w, h, kernel)

		var sum float64
		for i := range mx {
			vx := covNorm * (exx[i] - mx[i]*mx[i])
			vy := covNorm * (eyy[i] - my[i]*my[i])
			cov := covNorm * (exy[i] - mx[i]*my[i])
			num := (2*mx[i]*my[i] + c1) * (2*cov + c2)
			den := (mx[i]*mx[i] + my[i]*my[i] + c1) * (vx + vy + c2)
			sum += num / den
		}
		total += sum / float64(len(mx))
	}
	return total / 3, nil
}

func checkSizes(a, b *timewarp.Image) error {
	if a == nil || b == nil {
		return fmt.Errorf("analysis: %w", timewarp.ErrNilFrame)
	}
	if a.Width() != b.Width() || a.Height() != b.Height() {
		return fmt.Errorf("analysis: %w: %dx%d vs %dx%d", timewarp.ErrSizeMismatch,
			a.Width(), a.Height(), b.Width(), b.Height())
	}
	if a.Width() == 0 || a.Height() == 0 {
		return fmt.Errorf("analysis: %w: empty image", timewarp.ErrSizeMismatch)
	}
	return nil
}

// colorRange returns max - min over the color channels in [0, 1], or 1 for
// a flat image.
func colorRange(m *timewarp.Image) float64 {
	lo, hi := uint8(255), uint8(0)
	pix := m.Pix()
	for i := 0; i < len(pix); i += 4 {
		for c := range 3 {
			lo = min(lo, pix[i+c])
			hi = max(hi, pix[i+c])
		}
	}
	if hi <= lo {
		return 1
	}
	return float64(hi-lo) / 255
}

func channel(m *timewarp.Image, c int, dst []float64) {
	pix := m.Pix()
	for i := range dst {
		dst[i] = float64(pix[i*4+c]) / 255
	}
}

func uniformKernel(radius int) []float64 {
	k := make([]float64, 2*radius+1)
	for i := range k {
		k[i] = 1 / float64(len(k))
	}
	return k
}

func gaussianKernel(radius int, sigma float64) []float64 {
	k := make([]float64, 2*radius+1)
	if sigma <= 0 {
		sigma = 1.5
	}
	var sum float64
	for i := range k {
		d := float64(i - radius)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// filterValid convolves src with the separable kernel and returns only the
// (w-2r)×(h-2r) positions where the window fits.
func filterValid(src []float64, w, h int, kernel []float64) []float64 {
	r := len(kernel) / 2
	ow, oh := w-2*r, h-2*r
	tmp := make([]float64, ow*h)
	for y := range h {
		row := src[y*w:]
		for x := range ow {
			var s float64
			for i, kv := range kernel {
				s += kv * row[x+i]
			}
			tmp[y*ow+x] = s
		}
	}
	out := make([]float64, ow*oh)
	for y := range oh {
		for x := range ow {
			var s float64
			for i, kv := range kernel {
				s += kv * tmp[(y+i)*ow+x]
			}
			out[y*ow+x] = s
		}
	}
	return out
}
