// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestNewWarpMeshCounts(t *testing.T) {
	tests := []struct {
		w, h              int
		vertices, indices int
	}{
		{1, 1, 4, 6},
		{4, 4, 25, 96},
		{16, 9, 170, 864},
		{3, 1, 8, 18},
	}
	for _, tt := range tests {
		m, err := NewWarpMesh(tt.w, tt.h)
		if err != nil {
			t.Fatalf("NewWarpMesh(%d,%d): %v", tt.w, tt.h, err)
		}
		if len(m.Vertices) != tt.vertices || len(m.Indices) != tt.indices {
			t.Errorf("%dx%d: got %d vertices / %d indices, want %d / %d",
				tt.w, tt.h, len(m.Vertices), len(m.Indices), tt.vertices, tt.indices)
		}
		for _, idx := range m.Indices {
			if int(idx) >= len(m.Vertices) {
				t.Fatalf("%dx%d: index %d out of range", tt.w, tt.h, idx)
			}
		}
	}
}

func TestNewWarpMeshRejectsZero(t *testing.T) {
	for _, sz := range [][2]int{{0, 4}, {4, 0}, {0, 0}, {-1, 3}} {
		if _, err := NewWarpMesh(sz[0], sz[1]); !errors.Is(err, ErrInvalidMeshSize) {
			t.Errorf("NewWarpMesh(%d,%d) err = %v, want ErrInvalidMeshSize", sz[0], sz[1], err)
		}
	}
}

func TestWarpMeshUV(t *testing.T) {
	m, err := NewWarpMesh(4, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range m.Vertices {
		x, y := m.GridCoord(i)
		interior := x > 0 && x < 4 && y > 0 && y < 4
		u, vv := v.UV[0], v.UV[1]
		if interior {
			if u != float32(x)/4 || vv != float32(4-y)/4 {
				t.Errorf("vertex (%d,%d) uv = (%v,%v)", x, y, u, vv)
			}
			if u < 0 || u > 1 || vv < 0 || vv > 1 {
				t.Errorf("interior uv out of [0,1]: (%v,%v)", u, vv)
			}
		}
		if x == 0 && u != -0.5 {
			t.Errorf("left border u = %v", u)
		}
		if x == 4 && u != 1.5 {
			t.Errorf("right border u = %v", u)
		}
		if y == 0 && vv != 1.5 {
			t.Errorf("top border v = %v", vv)
		}
		if y == 4 && vv != -0.5 {
			t.Errorf("bottom border v = %v", vv)
		}
	}
	// Corner vertex carries both extrapolations.
	if c := m.Vertices[0].UV; c != [2]float32{-0.5, 1.5} {
		t.Errorf("top-left corner uv = %v", c)
	}
}

func TestWarpMeshTriangulation(t *testing.T) {
	m, err := NewWarpMesh(4, 4)
	if err != nil {
		t.Fatal(err)
	}
	// Quad (1, 2) is quad number 2*4+1.
	q := (2*4 + 1) * 6
	want := []uint32{2*5 + 1, 3*5 + 1, 2*5 + 2, 2*5 + 2, 3*5 + 1, 3*5 + 2}
	for i, w := range want {
		if m.Indices[q+i] != w {
			t.Fatalf("quad (1,2) indices = %v, want %v", m.Indices[q:q+6], want)
		}
	}
	// Every triangle has the same winding in NDC.
	for i := 0; i < len(m.Indices); i += 3 {
		a := m.Vertices[m.Indices[i]].Position
		b := m.Vertices[m.Indices[i+1]].Position
		c := m.Vertices[m.Indices[i+2]].Position
		area := (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
		if area <= 0 {
			t.Fatalf("triangle %d has area %v, want counter-clockwise winding", i/3, area)
		}
	}
}

func TestWarpMeshBytes(t *testing.T) {
	m, err := NewWarpMesh(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	vb := m.VertexBytes()
	if len(vb) != 9*WarpVertexStride {
		t.Fatalf("vertex bytes = %d", len(vb))
	}
	u := math.Float32frombits(binary.LittleEndian.Uint32(vb[12:]))
	if u != -0.5 {
		t.Errorf("first vertex u = %v", u)
	}
	ib := m.IndexBytes()
	if len(ib) != 24*4 || binary.LittleEndian.Uint32(ib[4:]) != 3 {
		t.Errorf("index bytes wrong: len %d second %d", len(ib), binary.LittleEndian.Uint32(ib[4:]))
	}
}
