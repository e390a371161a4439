//go:build !nogpu

// Package gpu runs the timewarp reprojection algorithms on a wgpu/hal device.
//
// The mesh warp is a render pipeline that draws the depth-displaced grid
// with a depth test; the ray march is a compute pipeline with one invocation
// per output pixel. Both read the stored frame from storage buffers and
// write an RGBA8 image that is read back into a [timewarp.Image].
//
// A [Reprojector] implements [timewarp.Algorithm], so it can be registered
// with the cadence scheduler in place of the CPU reprojectors:
//
//	r, err := gpu.Open(timewarp.AlgorithmRayMarch)
//	if err != nil {
//		// no Vulkan device, fall back to the CPU reprojector
//	}
//	defer r.Close()
//
// Build with the nogpu tag to leave the package out entirely.
package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/timewarp"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// ErrNoDevice is returned when no usable GPU adapter is found.
var ErrNoDevice = errors.New("gpu: no usable device")

// device is an opened hal device together with the instance that owns it.
type device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string
}

func (d *device) destroy() {
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.queue = nil
}

// openVulkan opens the first discrete or integrated adapter of the Vulkan
// backend, or the first adapter when neither is present.
func openVulkan() (*device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoDevice)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no adapters", ErrNoDevice)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}
	return &device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		name:     selected.Info.Name,
	}, nil
}

// Open creates a reprojector on its own Vulkan device. Close releases the
// device.
func Open(kind timewarp.AlgorithmKind, opts ...Option) (*Reprojector, error) {
	dev, err := openVulkan()
	if err != nil {
		return nil, err
	}
	r, err := NewReprojector(dev.device, dev.queue, kind, opts...)
	if err != nil {
		dev.destroy()
		return nil, err
	}
	r.owned = dev
	timewarp.Logger().Info("gpu reprojector ready", "algorithm", kind, "adapter", dev.name)
	return r, nil
}
