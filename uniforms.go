// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package timewarp

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Uniform block sizes in bytes. Both are multiples of 16 as required for
// uniform buffers.
const (
	MeshUniformSize     = 240
	RayMarchUniformSize = 208
)

// MeshUniforms is the uniform block of the mesh warp. Its byte layout is:
//
//	0   old_inverse_view      mat4x4<f32>  camera-to-world of the stored frame
//	64  inverse_projection    mat4x4<f32>
//	128 fresh_view_projection mat4x4<f32>
//	192 bleed                 vec4<f32>    radius, tolerance, debug opacity, 0
//	208 grid                  vec4<f32>    mesh w, mesh h, output w, output h
//	224 background            vec4<f32>
type MeshUniforms struct {
	OldInverseView      mgl32.Mat4
	InverseProjection   mgl32.Mat4
	FreshViewProjection mgl32.Mat4
	BleedRadius         float32
	BleedTolerance      float32
	DebugOpacity        float32
	MeshWidth           float32
	MeshHeight          float32
	OutputWidth         float32
	OutputHeight        float32
	Background          [4]float32
}

// NewMeshUniforms derives the mesh uniform block for warping src to fresh.
func NewMeshUniforms(src *RenderedFrame, fresh Pose, p MeshParams, background RGBA, mesh *WarpMesh, outW, outH int) MeshUniforms {
	proj := src.Projection
	return MeshUniforms{
		OldInverseView:      src.Camera,
		InverseProjection:   proj.Inverse(),
		FreshViewProjection: proj.Matrix().Mul4(fresh.ViewMatrix()),
		BleedRadius:         p.BleedRadius,
		BleedTolerance:      p.BleedTolerance,
		DebugOpacity:        p.DebugOverlayOpacity,
		MeshWidth:           float32(mesh.Width),
		MeshHeight:          float32(mesh.Height),
		OutputWidth:         float32(outW),
		OutputHeight:        float32(outH),
		Background:          background.Vec4(),
	}
}

// Reconstruct returns the matrix taking old NDC to fresh clip space.
func (u MeshUniforms) Reconstruct() mgl32.Mat4 {
	return u.FreshViewProjection.Mul4(u.OldInverseView).Mul4(u.InverseProjection)
}

// Bytes packs u in the layout documented on MeshUniforms.
func (u MeshUniforms) Bytes() []byte {
	w := uniformWriter{buf: make([]byte, MeshUniformSize)}
	w.mat4(u.OldInverseView)
	w.mat4(u.InverseProjection)
	w.mat4(u.FreshViewProjection)
	w.vec4(u.BleedRadius, u.BleedTolerance, u.DebugOpacity, 0)
	w.vec4(u.MeshWidth, u.MeshHeight, u.OutputWidth, u.OutputHeight)
	w.vec4(u.Background[0], u.Background[1], u.Background[2], u.Background[3])
	return w.buf
}

// RayMarchUniforms is the uniform block of the ray-march warp:
//
//	0   old_view_projection            mat4x4<f32>
//	64  fresh_inverse_view_projection  mat4x4<f32>
//	128 camera_position                vec4<f32>  xyz, 1
//	144 march                          vec4<f32>  power, step size, depth offset, occlusion threshold
//	160 occlusion                      vec4<f32>  occlusion offset, near, far, step count
//	176 target                         vec4<f32>  source w, source h, output w, output h
//	192 background                     vec4<f32>
type RayMarchUniforms struct {
	OldViewProjection          mgl32.Mat4
	FreshInverseViewProjection mgl32.Mat4
	FreshCameraPosition        mgl32.Vec3
	Power                      float32
	StepSize                   float32
	DepthOffset                float32
	OcclusionThreshold         float32
	OcclusionOffset            float32
	Near                       float32
	Far                        float32
	Steps                      float32
	SourceWidth                float32
	SourceHeight               float32
	OutputWidth                float32
	OutputHeight               float32
	Background                 [4]float32
}

// NewRayMarchUniforms derives the ray-march uniform block for warping src to
// fresh.
func NewRayMarchUniforms(src *RenderedFrame, fresh Pose, p RayMarchParams, background RGBA, outW, outH int) RayMarchUniforms {
	proj := src.Projection
	return RayMarchUniforms{
		OldViewProjection:          proj.Matrix().Mul4(InverseAffine(src.Camera)),
		FreshInverseViewProjection: fresh.CameraMatrix().Mul4(proj.Inverse()),
		FreshCameraPosition:        fresh.Position,
		Power:                      p.Power,
		StepSize:                   p.StepSize,
		DepthOffset:                p.DepthOffset,
		OcclusionThreshold:         p.OcclusionThreshold,
		OcclusionOffset:            p.OcclusionOffset,
		Near:                       proj.Near,
		Far:                        proj.Far,
		Steps:                      float32(p.Steps()),
		SourceWidth:                float32(src.Width()),
		SourceHeight:               float32(src.Height()),
		OutputWidth:                float32(outW),
		OutputHeight:               float32(outH),
		Background:                 background.Vec4(),
	}
}

// Bytes packs u in the layout documented on RayMarchUniforms.
func (u RayMarchUniforms) Bytes() []byte {
	w := uniformWriter{buf: make([]byte, RayMarchUniformSize)}
	w.mat4(u.OldViewProjection)
	w.mat4(u.FreshInverseViewProjection)
	w.vec4(u.FreshCameraPosition[0], u.FreshCameraPosition[1], u.FreshCameraPosition[2], 1)
	w.vec4(u.Power, u.StepSize, u.DepthOffset, u.OcclusionThreshold)
	w.vec4(u.OcclusionOffset, u.Near, u.Far, u.Steps)
	w.vec4(u.SourceWidth, u.SourceHeight, u.OutputWidth, u.OutputHeight)
	w.vec4(u.Background[0], u.Background[1], u.Background[2], u.Background[3])
	return w.buf
}

type uniformWriter struct {
	buf []byte
	off int
}

func (w *uniformWriter) f32(v float32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], math.Float32bits(v))
	w.off += 4
}

// mat4 writes m column by column, which is the mat4x4<f32> storage order.
func (w *uniformWriter) mat4(m mgl32.Mat4) {
	for _, v := range m {
		w.f32(v)
	}
}

func (w *uniformWriter) vec4(x, y, z, a float32) {
	w.f32(x)
	w.f32(y)
	w.f32(z)
	w.f32(a)
}
