//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/timewarp"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func testFrame(w, h int) *timewarp.RenderedFrame {
	proj := timewarp.DefaultProjection().WithAspect(w, h)
	f := timewarp.NewRenderedFrame(w, h, proj)
	f.Color.Clear(timewarp.RGB(0.2, 0.4, 0.6))
	f.Depth.Fill(0.9)
	f.SetPose(timewarp.DefaultSweepStart())
	return f
}

var kinds = []timewarp.AlgorithmKind{timewarp.AlgorithmMesh, timewarp.AlgorithmRayMarch}

func TestReprojectorNoopDevice(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			r, err := NewReprojector(device, queue, kind, WithMeshGrid(8, 6))
			if err != nil {
				t.Fatalf("NewReprojector: %v", err)
			}
			defer r.Close()

			if got, want := r.Name(), "gpu-"+kind.String(); got != want {
				t.Errorf("Name() = %q, want %q", got, want)
			}
			if r.Kind() != kind {
				t.Errorf("Kind() = %v, want %v", r.Kind(), kind)
			}

			src := testFrame(40, 30)
			// Output sizes with and without row padding in the texture copy.
			for _, size := range [][2]int{{64, 32}, {50, 20}} {
				dst := timewarp.NewImage(size[0], size[1])
				if err := r.Reproject(src, src.Pose, timewarp.DefaultParams(), dst); err != nil {
					t.Fatalf("Reproject %dx%d: %v", size[0], size[1], err)
				}
			}
		})
	}
}

func TestReprojectorMeshVertexCount(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	r, err := NewReprojector(device, queue, timewarp.AlgorithmMesh, WithMeshGrid(4, 4))
	if err != nil {
		t.Fatalf("NewReprojector: %v", err)
	}
	defer r.Close()
	if r.meshVertexCount != 96 {
		t.Errorf("meshVertexCount = %d, want 96", r.meshVertexCount)
	}
	if r.renderPipeline == nil || r.vertexBuf == nil {
		t.Error("mesh pipeline resources not created")
	}
	if r.computePipeline != nil {
		t.Error("mesh reprojector should not create a compute pipeline")
	}
}

func TestReprojectorErrors(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	if _, err := NewReprojector(nil, queue, timewarp.AlgorithmMesh); !errors.Is(err, ErrNoDevice) {
		t.Errorf("nil device: err = %v, want ErrNoDevice", err)
	}
	if _, err := NewReprojector(device, queue, timewarp.AlgorithmKind(7)); !errors.Is(err, timewarp.ErrUnknownAlgorithm) {
		t.Errorf("unknown kind: err = %v, want ErrUnknownAlgorithm", err)
	}
	if _, err := NewReprojector(device, queue, timewarp.AlgorithmMesh, WithMeshGrid(0, 4)); !errors.Is(err, timewarp.ErrInvalidMeshSize) {
		t.Errorf("zero grid: err = %v, want ErrInvalidMeshSize", err)
	}

	r, err := NewReprojector(device, queue, timewarp.AlgorithmRayMarch)
	if err != nil {
		t.Fatalf("NewReprojector: %v", err)
	}
	src := testFrame(8, 8)
	params := timewarp.DefaultParams()

	tests := []struct {
		name string
		src  *timewarp.RenderedFrame
		dst  *timewarp.Image
		want error
	}{
		{"nil source", nil, timewarp.NewImage(8, 8), timewarp.ErrNilFrame},
		{"nil destination", src, nil, timewarp.ErrNilFrame},
		{"empty destination", src, timewarp.NewImage(0, 0), timewarp.ErrSizeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Reproject(tt.src, src.Pose, params, tt.dst); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	r.Close()
	r.Close() // idempotent
	if err := r.Reproject(src, src.Pose, params, timewarp.NewImage(8, 8)); !errors.Is(err, ErrClosed) {
		t.Errorf("after Close: err = %v, want ErrClosed", err)
	}
}

type mockDevice struct{}

func (m *mockDevice) Poll(wait bool) {}
func (m *mockDevice) Destroy()       {}

type mockQueue struct{}

type mockAdapter struct{}

// mockProvider implements gpucontext.DeviceProvider without HAL access.
type mockProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (m *mockProvider) Device() gpucontext.Device             { return &mockDevice{} }
func (m *mockProvider) Queue() gpucontext.Queue               { return &mockQueue{} }
func (m *mockProvider) Adapter() gpucontext.Adapter           { return &mockAdapter{} }
func (m *mockProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }

// mockHalProvider also exposes the hal device like a gogpu application does.
type mockHalProvider struct {
	mockProvider
}

func (m *mockHalProvider) HalDevice() any { return m.device }
func (m *mockHalProvider) HalQueue() any  { return m.queue }

func TestNewReprojectorFromProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	if _, err := NewReprojectorFromProvider(&mockProvider{}, timewarp.AlgorithmMesh); err == nil {
		t.Error("provider without HAL access should fail")
	}

	hp := &mockHalProvider{mockProvider{device: device, queue: queue}}
	r, err := NewReprojectorFromProvider(hp, timewarp.AlgorithmRayMarch)
	if err != nil {
		t.Fatalf("NewReprojectorFromProvider: %v", err)
	}
	r.Close()

	// The shared device survives Close.
	again, err := NewReprojector(device, queue, timewarp.AlgorithmMesh, WithMeshGrid(2, 2))
	if err != nil {
		t.Fatalf("device unusable after Close: %v", err)
	}
	again.Close()
}

func TestMeshVertexBytes(t *testing.T) {
	m, err := timewarp.NewWarpMesh(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	buf := meshVertexBytes(m)
	if got, want := len(buf), len(m.Indices)*meshVertexStride; got != want {
		t.Fatalf("len = %d, want %d", got, want)
	}
	f := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])) }
	for i, idx := range m.Indices {
		v := m.Vertices[idx]
		gx, gy := m.GridCoord(int(idx))
		got := [4]float32{f(i*4 + 0), f(i*4 + 1), f(i*4 + 2), f(i*4 + 3)}
		want := [4]float32{v.UV[0], v.UV[1], float32(gx), float32(gy)}
		if got != want {
			t.Errorf("vertex %d = %v, want %v", i, got, want)
		}
	}
}

func TestCopyRows(t *testing.T) {
	tests := []struct {
		name            string
		rowBytes, pitch int
	}{
		{"tight", 8, 8},
		{"padded", 8, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const rows = 3
			src := make([]byte, tt.pitch*rows)
			for y := range rows {
				for x := range tt.rowBytes {
					src[y*tt.pitch+x] = byte(y*16 + x)
				}
			}
			dst := make([]byte, tt.rowBytes*rows)
			copyRows(dst, src, tt.rowBytes, tt.pitch, rows)
			for y := range rows {
				for x := range tt.rowBytes {
					if got := dst[y*tt.rowBytes+x]; got != byte(y*16+x) {
						t.Fatalf("dst[%d,%d] = %d, want %d", x, y, got, y*16+x)
					}
				}
			}
		})
	}
}

// TestShaderUniformLayout checks that the WGSL uniform structs declare their
// members in the order the Go side packs them.
func TestShaderUniformLayout(t *testing.T) {
	tests := []struct {
		kind   timewarp.AlgorithmKind
		fields []string
	}{
		{timewarp.AlgorithmMesh, []string{
			"old_inverse_view: mat4x4<f32>",
			"inverse_projection: mat4x4<f32>",
			"fresh_view_projection: mat4x4<f32>",
			"bleed: vec4<f32>",
			"grid: vec4<f32>",
			"background: vec4<f32>",
		}},
		{timewarp.AlgorithmRayMarch, []string{
			"old_view_projection: mat4x4<f32>",
			"fresh_inverse_view_projection: mat4x4<f32>",
			"camera_position: vec4<f32>",
			"march: vec4<f32>",
			"occlusion: vec4<f32>",
			"target_size: vec4<f32>",
			"background: vec4<f32>",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			src, err := ShaderSource(tt.kind)
			if err != nil {
				t.Fatal(err)
			}
			pos := 0
			for _, f := range tt.fields {
				i := strings.Index(src[pos:], f)
				if i < 0 {
					t.Fatalf("field %q missing or out of order", f)
				}
				pos += i + len(f)
			}
		})
	}

	if _, err := ShaderSource(timewarp.AlgorithmKind(9)); !errors.Is(err, timewarp.ErrUnknownAlgorithm) {
		t.Errorf("unknown kind: err = %v", err)
	}
}

func TestCompileShaders(t *testing.T) {
	shaders, err := CompileShaders()
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "not yet implemented") || strings.Contains(errStr, "not supported") {
			t.Skipf("Skipping: naga feature not yet implemented: %v", err)
		}
		if strings.Contains(errStr, "lowering error") {
			t.Skipf("Skipping: naga lowering limitation: %v", err)
		}
		t.Fatalf("CompileShaders: %v", err)
	}
	if len(shaders) != 2 {
		t.Fatalf("got %d shaders, want 2", len(shaders))
	}
	for _, s := range shaders {
		if len(s.SPIRV) < 20 {
			t.Errorf("%s: SPIR-V too short (%d bytes)", s.Kind, len(s.SPIRV))
			continue
		}
		// SPIR-V magic number.
		if magic := binary.LittleEndian.Uint32(s.SPIRV); magic != 0x07230203 {
			t.Errorf("%s: magic = %#x, want 0x07230203", s.Kind, magic)
		}
	}
}
