// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Border texture coordinates. Border vertices are pushed half a frame past
// the image so fragments revealed by a camera move can detect that they lie
// outside the rendered frame.
const (
	borderLow  = -0.5
	borderHigh = 1.5
)

// WarpVertexStride is the size of one packed WarpVertex in bytes.
const WarpVertexStride = 20

// WarpVertex is one grid vertex of the warp mesh.
type WarpVertex struct {
	Position [3]float32 // NDC plane position, z = 0
	UV       [2]float32 // texture coordinate, v = 0 at the bottom row
}

// WarpMesh is a regular grid of Width×Height quads covering the screen.
type WarpMesh struct {
	Width    int
	Height   int
	Vertices []WarpVertex
	Indices  []uint32
}

// NewWarpMesh builds the warp grid. Interior vertex (x, y) gets
// UV (x/width, (height-y)/height); the outermost ring gets u = -0.5 on the
// left, 1.5 on the right, v = 1.5 on the top and -0.5 on the bottom.
func NewWarpMesh(width, height int) (*WarpMesh, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrInvalidMeshSize, width, height)
	}

	m := &WarpMesh{
		Width:    width,
		Height:   height,
		Vertices: make([]WarpVertex, 0, (width+1)*(height+1)),
		Indices:  make([]uint32, 0, 6*width*height),
	}

	fw, fh := float32(width), float32(height)
	for y := 0; y <= height; y++ {
		for x := 0; x <= width; x++ {
			u := float32(x) / fw
			v := float32(height-y) / fh
			switch x {
			case 0:
				u = borderLow
			case width:
				u = borderHigh
			}
			switch y {
			case 0:
				v = borderHigh
			case height:
				v = borderLow
			}
			m.Vertices = append(m.Vertices, WarpVertex{
				Position: [3]float32{2*float32(x)/fw - 1, 1 - 2*float32(y)/fh, 0},
				UV:       [2]float32{u, v},
			})
		}
	}

	row := uint32(width + 1)
	for y := range uint32(height) {
		for x := range uint32(width) {
			i0 := y*row + x
			i1 := (y+1)*row + x
			i2 := y*row + x + 1
			i3 := (y+1)*row + x + 1
			m.Indices = append(m.Indices, i0, i1, i2, i2, i1, i3)
		}
	}

	Logger().Debug("warp mesh built", "width", width, "height", height,
		"vertices", len(m.Vertices), "indices", len(m.Indices))
	return m, nil
}

// GridCoord returns the grid position of vertex i.
func (m *WarpMesh) GridCoord(i int) (x, y int) {
	return i % (m.Width + 1), i / (m.Width + 1)
}

// VertexBytes packs the vertices as little-endian float32s, WarpVertexStride
// bytes per vertex: position xyz followed by uv.
func (m *WarpMesh) VertexBytes() []byte {
	buf := make([]byte, len(m.Vertices)*WarpVertexStride)
	for i, v := range m.Vertices {
		off := i * WarpVertexStride
		for j, f := range [5]float32{v.Position[0], v.Position[1], v.Position[2], v.UV[0], v.UV[1]} {
			binary.LittleEndian.PutUint32(buf[off+j*4:], math.Float32bits(f))
		}
	}
	return buf
}

// IndexBytes packs the indices as little-endian uint32s.
func (m *WarpMesh) IndexBytes() []byte {
	buf := make([]byte, len(m.Indices)*4)
	for i, idx := range m.Indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}
