// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package framecodec serializes rendered frames as CBOR.
//
// Color and depth are stored as RFC 8746 multi-dimensional typed arrays:
// tag 40 wrapping the dimensions and a tag 64 (uint8) or tag 85 (float32,
// little endian) byte string. Any CBOR tool that understands typed arrays
// can read the buffers back.
package framecodec

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/timewarp"
)

// Version is written into every snapshot.
const Version = 1

const (
	tagMultiDimArray = 40
	tagUint8         = 64
	tagFloat32LE     = 85
)

// cameraTolerance bounds the per-element difference between the stored
// camera matrix and the one rebuilt from the stored pose.
const cameraTolerance = 1e-4

// ErrMalformed is returned when a snapshot does not have the expected shape.
var ErrMalformed = errors.New("framecodec: malformed snapshot")

type snapshot struct {
	Version     int         `cbor:"version"`
	Seq         uint64      `cbor:"seq"`
	RenderedAt  int64       `cbor:"rendered_at_ns,omitempty"`
	Position    [3]float32  `cbor:"position"`
	Orientation [4]float32  `cbor:"orientation"` // w, x, y, z
	Camera      [16]float32 `cbor:"camera"`
	Projection  [4]float32  `cbor:"projection"` // fovY, aspect, near, far
	Color       any         `cbor:"color"`
	Depth       any         `cbor:"depth"`
}

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// Marshal encodes f.
func Marshal(f *timewarp.RenderedFrame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return encMode.Marshal(toSnapshot(f))
}

// Unmarshal decodes a snapshot produced by Marshal.
func Unmarshal(data []byte) (*timewarp.RenderedFrame, error) {
	var s snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("framecodec: %w", err)
	}
	return fromSnapshot(&s)
}

// Encode writes f to w.
func Encode(w io.Writer, f *timewarp.RenderedFrame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return encMode.NewEncoder(w).Encode(toSnapshot(f))
}

// Decode reads one snapshot from r. The decoder may buffer past the end of
// the snapshot.
func Decode(r io.Reader) (*timewarp.RenderedFrame, error) {
	var s snapshot
	if err := cbor.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("framecodec: %w", err)
	}
	return fromSnapshot(&s)
}

// WriteFile encodes f into the file at path.
func WriteFile(path string, f *timewarp.RenderedFrame) error {
	data, err := Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644) //nolint:gosec // snapshots are not secret
}

// ReadFile decodes the snapshot stored at path.
func ReadFile(path string) (*timewarp.RenderedFrame, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

func toSnapshot(f *timewarp.RenderedFrame) snapshot {
	q := f.Pose.Orientation
	s := snapshot{
		Version:     Version,
		Seq:         f.Seq,
		Position:    [3]float32(f.Pose.Position),
		Orientation: [4]float32{q.W, q.V[0], q.V[1], q.V[2]},
		Camera:      [16]float32(f.Camera),
		Projection:  [4]float32{f.Projection.FovY, f.Projection.Aspect, f.Projection.Near, f.Projection.Far},
		Color:       multiDimArray(tagUint8, f.Color.Pix(), f.Height(), f.Width(), 4),
		Depth:       multiDimArray(tagFloat32LE, f.Depth.Bytes(), f.Height(), f.Width()),
	}
	if !f.RenderedAt.IsZero() {
		s.RenderedAt = f.RenderedAt.UnixNano()
	}
	return s
}

func fromSnapshot(s *snapshot) (*timewarp.RenderedFrame, error) {
	if s.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, s.Version)
	}
	proj := timewarp.Projection{FovY: s.Projection[0], Aspect: s.Projection[1], Near: s.Projection[2], Far: s.Projection[3]}
	if err := proj.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	colorDims, pix, err := decodeMultiDimArray(s.Color, tagUint8)
	if err != nil {
		return nil, fmt.Errorf("%w: color: %w", ErrMalformed, err)
	}
	if len(colorDims) != 3 || colorDims[2] != 4 {
		return nil, fmt.Errorf("%w: color dimensions %v", ErrMalformed, colorDims)
	}
	h, w := colorDims[0], colorDims[1]
	if len(pix) != w*h*4 {
		return nil, fmt.Errorf("%w: color has %d bytes for %dx%d", ErrMalformed, len(pix), w, h)
	}

	depthDims, raw, err := decodeMultiDimArray(s.Depth, tagFloat32LE)
	if err != nil {
		return nil, fmt.Errorf("%w: depth: %w", ErrMalformed, err)
	}
	if len(depthDims) != 2 || depthDims[0] != h || depthDims[1] != w || len(raw) != w*h*4 {
		return nil, fmt.Errorf("%w: depth dimensions %v for %dx%d color", ErrMalformed, depthDims, w, h)
	}

	q := mgl32.Quat{W: s.Orientation[0], V: mgl32.Vec3{s.Orientation[1], s.Orientation[2], s.Orientation[3]}}
	if !(q.Len() > 0) {
		return nil, fmt.Errorf("%w: orientation %v", ErrMalformed, s.Orientation)
	}
	pose := timewarp.NewPose(mgl32.Vec3(s.Position), q)
	camera := pose.CameraMatrix()
	if !camera.ApproxEqualThreshold(mgl32.Mat4(s.Camera), cameraTolerance) {
		return nil, fmt.Errorf("%w: camera matrix does not match pose %s", ErrMalformed, pose)
	}

	f := timewarp.NewRenderedFrame(w, h, proj)
	copy(f.Color.Pix(), pix)
	if err := f.Depth.SetBytes(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	f.SetPose(pose)
	f.Seq = s.Seq
	if s.RenderedAt != 0 {
		f.RenderedAt = time.Unix(0, s.RenderedAt)
	}
	return f, nil
}

func multiDimArray(typeTag uint64, data []byte, dims ...int) cbor.Tag {
	d := make([]any, len(dims))
	for i, v := range dims {
		d[i] = v
	}
	return cbor.Tag{
		Number:  tagMultiDimArray,
		Content: []any{d, cbor.Tag{Number: typeTag, Content: data}},
	}
}

func decodeMultiDimArray(value any, typeTag uint64) ([]int, []byte, error) {
	tag, ok := value.(cbor.Tag)
	if !ok || tag.Number != tagMultiDimArray {
		return nil, nil, errors.New("expected multidim tag 40")
	}
	items, ok := tag.Content.([]any)
	if !ok || len(items) != 2 {
		return nil, nil, errors.New("invalid multidim array content")
	}
	dimsRaw, ok := items[0].([]any)
	if !ok {
		return nil, nil, errors.New("invalid multidim dimensions")
	}
	dims := make([]int, len(dimsRaw))
	for i, v := range dimsRaw {
		n, err := toInt(v)
		if err != nil {
			return nil, nil, err
		}
		dims[i] = n
	}
	typed, ok := items[1].(cbor.Tag)
	if !ok || typed.Number != typeTag {
		return nil, nil, fmt.Errorf("expected typed array tag %d", typeTag)
	}
	data, ok := typed.Content.([]byte)
	if !ok {
		return nil, nil, fmt.Errorf("unsupported typed array content %T", typed.Content)
	}
	return dims, data, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case uint64:
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("dimension %d out of range", n)
		}
		return int(n), nil
	case int64:
		if n < 0 || n > math.MaxInt32 {
			return 0, fmt.Errorf("dimension %d out of range", n)
		}
		return int(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("dimension %d out of range", n)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported dimension type %T", v)
	}
}
