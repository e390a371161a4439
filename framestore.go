// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"sync"
	"sync/atomic"
)

type frameSlot struct {
	frame   *RenderedFrame
	readers int
	read    bool
}

// FrameStore double-buffers rendered frames between the scene renderer and
// the reprojectors.
//
// The writer renders into the frame returned by Back and makes it current
// with Publish. Readers call Acquire and must call the returned release
// function when done. A slot that still has readers is never handed back to
// the writer; when both slots are busy a third one is allocated.
//
// FrameStore is safe for concurrent use by one writer and any number of
// readers.
type FrameStore struct {
	width, height int
	proj          Projection

	mu    sync.Mutex
	slots []*frameSlot
	front *frameSlot
	back  *frameSlot

	seq       atomic.Uint64
	published atomic.Uint64
	unread    atomic.Uint64
}

// FrameStoreStats reports publish activity.
type FrameStoreStats struct {
	Published uint64 // frames made current
	Unread    uint64 // frames replaced before any reader acquired them
	Slots     int    // allocated buffers, 2 unless readers held frames long
}

// NewFrameStore creates a store of width×height frames.
func NewFrameStore(width, height int, proj Projection) *FrameStore {
	s := &FrameStore{width: width, height: height, proj: proj}
	for range 2 {
		s.slots = append(s.slots, &frameSlot{frame: NewRenderedFrame(width, height, proj)})
	}
	return s
}

// Width returns the frame width.
func (s *FrameStore) Width() int { return s.width }

// Height returns the frame height.
func (s *FrameStore) Height() int { return s.height }

// Projection returns the session projection.
func (s *FrameStore) Projection() Projection { return s.proj }

// Back returns the frame the writer should render into next. Calling Back
// again before Publish returns the same frame.
func (s *FrameStore) Back() *RenderedFrame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.back != nil {
		return s.back.frame
	}
	for _, slot := range s.slots {
		if slot != s.front && slot.readers == 0 {
			s.back = slot
			return slot.frame
		}
	}
	slot := &frameSlot{frame: NewRenderedFrame(s.width, s.height, s.proj)}
	s.slots = append(s.slots, slot)
	s.back = slot
	Logger().Debug("frame store grew", "slots", len(s.slots))
	return slot.frame
}

// Publish makes the back frame current and returns its sequence number.
// It returns 0 if Back was not called since the last Publish.
func (s *FrameStore) Publish() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.back == nil {
		return 0
	}
	if s.front != nil && !s.front.read {
		s.unread.Add(1)
	}

	seq := s.seq.Add(1)
	s.back.frame.Seq = seq
	s.back.read = false
	s.front = s.back
	s.back = nil
	s.published.Add(1)
	return seq
}

// Acquire returns the current frame and a release function. The frame must
// not be modified and must not be used after release is called.
// It returns ErrEmptyFrameStore before the first Publish.
func (s *FrameStore) Acquire() (*RenderedFrame, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.front
	if slot == nil {
		return nil, func() {}, ErrEmptyFrameStore
	}
	slot.readers++
	slot.read = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			slot.readers--
			s.mu.Unlock()
		})
	}
	return slot.frame, release, nil
}

// Seq returns the sequence number of the current frame, 0 if none.
func (s *FrameStore) Seq() uint64 {
	return s.seq.Load()
}

// Stats returns publish counters.
func (s *FrameStore) Stats() FrameStoreStats {
	s.mu.Lock()
	n := len(s.slots)
	s.mu.Unlock()
	return FrameStoreStats{
		Published: s.published.Load(),
		Unread:    s.unread.Load(),
		Slots:     n,
	}
}
