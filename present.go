// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"context"
	"image"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// ImagePresenter keeps a copy of the last presented image, optionally
// rescaled to a display size. It stands in for a swapchain in headless runs.
type ImagePresenter struct {
	width, height int
	scaler        xdraw.Scaler

	mu    sync.Mutex
	last  *Image
	count int
	hook  func(*Image)
}

// NewImagePresenter creates a presenter. A zero width or height keeps the
// source size.
func NewImagePresenter(width, height int) *ImagePresenter {
	return &ImagePresenter{width: width, height: height, scaler: xdraw.ApproxBiLinear}
}

// OnPresent registers fn to be called with every presented copy.
func (p *ImagePresenter) OnPresent(fn func(*Image)) {
	p.mu.Lock()
	p.hook = fn
	p.mu.Unlock()
}

// Present implements Presenter.
func (p *ImagePresenter) Present(_ context.Context, img *Image) error {
	var out *Image
	if p.width == 0 || p.height == 0 || (p.width == img.Width() && p.height == img.Height()) {
		out = img.Clone()
	} else {
		dst := image.NewNRGBA(image.Rect(0, 0, p.width, p.height))
		p.scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		out = ImageFrom(dst)
	}

	p.mu.Lock()
	p.last = out
	p.count++
	hook := p.hook
	p.mu.Unlock()

	if hook != nil {
		hook(out)
	}
	return nil
}

// Last returns the most recent presented image, or nil.
func (p *ImagePresenter) Last() *Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Count returns how many images were presented.
func (p *ImagePresenter) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}
