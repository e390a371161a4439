//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/timewarp"
)

const (
	// meshVertexStride is uv (2 x f32) followed by the grid coordinate
	// (2 x f32).
	meshVertexStride = 16

	sourceInfoSize     = 16
	workgroupSize      = 8
	copyPitchAlignment = 256
	fenceTimeout       = 5 * time.Second
)

// ErrClosed is returned by Reproject after Close.
var ErrClosed = errors.New("gpu: reprojector closed")

type options struct {
	gridW, gridH int
}

// Option configures a Reprojector.
type Option func(*options)

// WithMeshGrid sets the warp grid resolution of the mesh algorithm. The
// default is timewarp.DefaultMeshGridWidth × DefaultMeshGridHeight.
func WithMeshGrid(width, height int) Option {
	return func(o *options) {
		o.gridW, o.gridH = width, height
	}
}

// Reprojector runs one reprojection algorithm on a hal device. It
// implements timewarp.Algorithm and is safe for concurrent use; passes are
// serialized.
type Reprojector struct {
	mu sync.Mutex

	kind   timewarp.AlgorithmKind
	device hal.Device
	queue  hal.Queue
	owned  *device // non-nil when the reprojector opened its own device

	mesh            *timewarp.WarpMesh
	meshVertexCount uint32
	vertexBuf       hal.Buffer

	shader          hal.ShaderModule
	bindLayout      hal.BindGroupLayout
	pipeLayout      hal.PipelineLayout
	renderPipeline  hal.RenderPipeline
	computePipeline hal.ComputePipeline

	targets targetSet
	closed  bool
}

var _ timewarp.Algorithm = (*Reprojector)(nil)

// NewReprojector creates the pipelines of kind on device. The caller keeps
// ownership of device and queue.
func NewReprojector(device hal.Device, queue hal.Queue, kind timewarp.AlgorithmKind, opts ...Option) (*Reprojector, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("%w: nil device or queue", ErrNoDevice)
	}
	o := options{gridW: timewarp.DefaultMeshGridWidth, gridH: timewarp.DefaultMeshGridHeight}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Reprojector{kind: kind, device: device, queue: queue}
	var err error
	switch kind {
	case timewarp.AlgorithmMesh:
		r.mesh, err = timewarp.NewWarpMesh(o.gridW, o.gridH)
		if err == nil {
			err = r.createMeshPipeline()
		}
	case timewarp.AlgorithmRayMarch:
		err = r.createRayPipeline()
	default:
		err = fmt.Errorf("%w: %v", timewarp.ErrUnknownAlgorithm, kind)
	}
	if err != nil {
		r.destroyPipelines()
		return nil, err
	}
	return r, nil
}

// NewReprojectorFromProvider creates a reprojector on the device of an
// external provider such as a gogpu application. The provider must also
// expose HalDevice() any and HalQueue() any returning hal.Device and
// hal.Queue. The shared device is not destroyed by Close.
func NewReprojectorFromProvider(provider gpucontext.DeviceProvider, kind timewarp.AlgorithmKind, opts ...Option) (*Reprojector, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}
	return NewReprojector(device, queue, kind, opts...)
}

// Name implements timewarp.Algorithm.
func (r *Reprojector) Name() string { return "gpu-" + r.kind.String() }

// Kind returns the algorithm the reprojector runs.
func (r *Reprojector) Kind() timewarp.AlgorithmKind { return r.kind }

// Close releases the pipelines and, for reprojectors created by Open, the
// device.
func (r *Reprojector) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.targets.destroy(r.device)
	r.destroyPipelines()
	if r.owned != nil {
		r.owned.destroy()
		r.owned = nil
	}
	r.device = nil
	r.queue = nil
}

// Reproject implements timewarp.Algorithm.
func (r *Reprojector) Reproject(src *timewarp.RenderedFrame, fresh timewarp.Pose, params timewarp.Params, dst *timewarp.Image) error {
	if err := timewarp.CheckReprojectArgs(src, dst); err != nil {
		return fmt.Errorf("%s reproject: %w", r.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	start := time.Now()
	var err error
	if r.kind == timewarp.AlgorithmMesh {
		err = r.reprojectMesh(src, fresh, params, dst)
	} else {
		err = r.reprojectRay(src, fresh, params, dst)
	}
	if err != nil {
		return fmt.Errorf("%s reproject: %w", r.Name(), err)
	}
	timewarp.Logger().Debug("gpu reprojection", "algorithm", r.Name(),
		"size", fmt.Sprintf("%dx%d", dst.Width(), dst.Height()), "elapsed", time.Since(start))
	return nil
}

// sourceBuffers uploads the stored frame. Image bytes are already the
// little-endian r | g<<8 | b<<16 | a<<24 packing the shaders unpack.
type sourceBuffers struct {
	color, depth         hal.Buffer
	colorSize, depthSize uint64
}

func (r *Reprojector) uploadSource(src *timewarp.RenderedFrame) (*sourceBuffers, error) {
	colorBytes := src.Color.Pix()
	depthBytes := src.Depth.Bytes()
	sb := &sourceBuffers{colorSize: uint64(len(colorBytes)), depthSize: uint64(len(depthBytes))}

	var err error
	sb.color, err = r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "timewarp_source_color", Size: sb.colorSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create color buffer: %w", err)
	}
	sb.depth, err = r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "timewarp_source_depth", Size: sb.depthSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		r.device.DestroyBuffer(sb.color)
		return nil, fmt.Errorf("create depth buffer: %w", err)
	}
	r.queue.WriteBuffer(sb.color, 0, colorBytes)
	r.queue.WriteBuffer(sb.depth, 0, depthBytes)
	return sb, nil
}

func (r *Reprojector) releaseSource(sb *sourceBuffers) {
	r.device.DestroyBuffer(sb.color)
	r.device.DestroyBuffer(sb.depth)
}

func (r *Reprojector) uniformBuffer(label string, data []byte) (hal.Buffer, error) {
	buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label, Size: uint64(len(data)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	r.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

func (r *Reprojector) reprojectMesh(src *timewarp.RenderedFrame, fresh timewarp.Pose, params timewarp.Params, dst *timewarp.Image) error {
	w, h := uint32(dst.Width()), uint32(dst.Height()) //nolint:gosec // image dimensions fit uint32
	if err := r.targets.ensure(r.device, w, h); err != nil {
		return err
	}

	sb, err := r.uploadSource(src)
	if err != nil {
		return err
	}
	defer r.releaseSource(sb)

	u := timewarp.NewMeshUniforms(src, fresh, params.Mesh.Clamped(), params.Background, r.mesh, dst.Width(), dst.Height())
	uniformBuf, err := r.uniformBuffer("timewarp_mesh_uniforms", u.Bytes())
	if err != nil {
		return err
	}
	defer r.device.DestroyBuffer(uniformBuf)

	infoBuf, err := r.uniformBuffer("timewarp_source_info", vec4Bytes(float32(src.Width()), float32(src.Height()), 0, 0))
	if err != nil {
		return err
	}
	defer r.device.DestroyBuffer(infoBuf)

	bg, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "timewarp_mesh_bind", Layout: r.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: timewarp.MeshUniformSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: sb.color.NativeHandle(), Offset: 0, Size: sb.colorSize}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: sb.depth.NativeHandle(), Offset: 0, Size: sb.depthSize}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: infoBuf.NativeHandle(), Offset: 0, Size: sourceInfoSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	defer r.device.DestroyBindGroup(bg)

	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)
	stagingBuf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "timewarp_mesh_staging", Size: stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer r.device.DestroyBuffer(stagingBuf)

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "timewarp_mesh_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("timewarp_mesh"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	bgColor := params.Background
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "timewarp_mesh_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       r.targets.colorView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: bgColor.R, G: bgColor.G, B: bgColor.B, A: bgColor.A},
		}},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:              r.targets.depthView,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpDiscard,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		},
	})
	rp.SetPipeline(r.renderPipeline)
	rp.SetBindGroup(0, bg, nil)
	rp.SetVertexBuffer(0, r.vertexBuf, 0)
	rp.Draw(r.meshVertexCount, 1, 0, 0)
	rp.End()

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: r.targets.colorTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(r.targets.colorTex, stagingBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: r.targets.colorTex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: r.targets.colorTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	readback, err := r.submitAndRead(encoder, stagingBuf, stagingSize)
	if err != nil {
		return err
	}
	copyRows(dst.Pix(), readback, int(bytesPerRow), int(alignedBytesPerRow), int(h))
	return nil
}

func (r *Reprojector) reprojectRay(src *timewarp.RenderedFrame, fresh timewarp.Pose, params timewarp.Params, dst *timewarp.Image) error {
	w, h := uint32(dst.Width()), uint32(dst.Height()) //nolint:gosec // image dimensions fit uint32
	outSize := uint64(w) * uint64(h) * 4

	sb, err := r.uploadSource(src)
	if err != nil {
		return err
	}
	defer r.releaseSource(sb)

	u := timewarp.NewRayMarchUniforms(src, fresh, params.RayMarch.Clamped(), params.Background, dst.Width(), dst.Height())
	uniformBuf, err := r.uniformBuffer("timewarp_ray_uniforms", u.Bytes())
	if err != nil {
		return err
	}
	defer r.device.DestroyBuffer(uniformBuf)

	outBuf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "timewarp_ray_output", Size: outSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create output buffer: %w", err)
	}
	defer r.device.DestroyBuffer(outBuf)

	stagingBuf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "timewarp_ray_staging", Size: outSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer r.device.DestroyBuffer(stagingBuf)

	bg, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "timewarp_ray_bind", Layout: r.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: timewarp.RayMarchUniformSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: sb.color.NativeHandle(), Offset: 0, Size: sb.colorSize}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: sb.depth.NativeHandle(), Offset: 0, Size: sb.depthSize}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: outBuf.NativeHandle(), Offset: 0, Size: outSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	defer r.device.DestroyBindGroup(bg)

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "timewarp_ray_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("timewarp_ray"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "timewarp_ray_pass"})
	pass.SetPipeline(r.computePipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch((w+workgroupSize-1)/workgroupSize, (h+workgroupSize-1)/workgroupSize, 1)
	pass.End()
	encoder.CopyBufferToBuffer(outBuf, stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: outSize},
	})

	readback, err := r.submitAndRead(encoder, stagingBuf, outSize)
	if err != nil {
		return err
	}
	copy(dst.Pix(), readback)
	return nil
}

// submitAndRead finishes encoder, waits for the GPU and reads size bytes
// from staging.
func (r *Reprojector) submitAndRead(encoder hal.CommandEncoder, staging hal.Buffer, size uint64) ([]byte, error) {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer r.device.FreeCommandBuffer(cmdBuf)

	fence, err := r.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer r.device.DestroyFence(fence)

	if err := r.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := r.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !fenceOK {
		return nil, fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	readback := make([]byte, size)
	if err := r.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	return readback, nil
}

// copyRows strips the per-row padding of an aligned texture copy.
func copyRows(dst, src []byte, rowBytes, pitch, rows int) {
	if rowBytes == pitch {
		copy(dst, src[:rowBytes*rows])
		return
	}
	for y := range rows {
		copy(dst[y*rowBytes:(y+1)*rowBytes], src[y*pitch:y*pitch+rowBytes])
	}
}

// meshVertexBytes expands the indexed grid into a triangle list of
// (u, v, grid x, grid y) vertices.
func meshVertexBytes(m *timewarp.WarpMesh) []byte {
	buf := make([]byte, len(m.Indices)*meshVertexStride)
	for i, idx := range m.Indices {
		v := m.Vertices[idx]
		gx, gy := m.GridCoord(int(idx))
		off := i * meshVertexStride
		for j, f := range [4]float32{v.UV[0], v.UV[1], float32(gx), float32(gy)} {
			binary.LittleEndian.PutUint32(buf[off+j*4:], math.Float32bits(f))
		}
	}
	return buf
}

func vec4Bytes(x, y, z, w float32) []byte {
	buf := make([]byte, 16)
	for i, f := range [4]float32{x, y, z, w} {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
