// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"errors"
	"sync"
	"testing"
)

func TestFrameStoreEmpty(t *testing.T) {
	s := NewFrameStore(4, 4, DefaultProjection())
	f, release, err := s.Acquire()
	defer release()
	if !errors.Is(err, ErrEmptyFrameStore) || f != nil {
		t.Fatalf("Acquire on empty store = %v, %v", f, err)
	}
	if s.Publish() != 0 {
		t.Error("Publish without Back should be a no-op")
	}
}

func TestFrameStoreDoubleBuffer(t *testing.T) {
	s := NewFrameStore(2, 2, DefaultProjection())

	a := s.Back()
	if s.Back() != a {
		t.Fatal("Back must be stable until Publish")
	}
	a.Color.Clear(White)
	if seq := s.Publish(); seq != 1 {
		t.Fatalf("first seq = %d", seq)
	}

	b := s.Back()
	if b == a {
		t.Fatal("writer must not receive the front frame")
	}
	s.Publish()

	front, release, err := s.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	if front != b || front.Seq != 2 {
		t.Errorf("front = seq %d, want frame b seq 2", front.Seq)
	}
	release()
	release() // idempotent

	if c := s.Back(); c != a {
		t.Error("with no readers the writer should reuse the old front")
	}
	st := s.Stats()
	if st.Slots != 2 || st.Published != 2 || st.Unread != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestFrameStoreHeldFrameNotReused(t *testing.T) {
	s := NewFrameStore(2, 2, DefaultProjection())
	s.Back()
	s.Publish()

	held, release, err := s.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	s.Back()
	s.Publish() // held is no longer front but still leased

	next := s.Back()
	if next == held {
		t.Fatal("leased frame handed to writer")
	}
	if s.Stats().Slots != 3 {
		t.Errorf("slots = %d, want 3", s.Stats().Slots)
	}
}

func TestFrameStoreConcurrent(t *testing.T) {
	s := NewFrameStore(8, 8, DefaultProjection())
	s.Back().Color.SetRGBA8(0, 0, 1, 0, 0, 255)
	s.Publish()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				f, release, err := s.Acquire()
				if err != nil {
					t.Error(err)
					return
				}
				seq := f.Seq
				r, _, _, _ := f.Color.RGBA8(0, 0)
				if uint64(r) != seq%256 {
					t.Errorf("frame %d modified while leased: r=%d", seq, r)
				}
				release()
			}
		}()
	}
	for i := 2; i < 200; i++ {
		b := s.Back()
		b.Color.SetRGBA8(0, 0, uint8(i%256), 0, 0, 255)
		s.Publish()
	}
	close(stop)
	wg.Wait()
}
