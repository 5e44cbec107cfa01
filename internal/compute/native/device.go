// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

// Package native is the GPU compute backend built on gogpu/wgpu/hal.
//
// Surfaces are storage buffers of packed RGBA8 texels, one u32 per texel,
// so kernels index them as array<u32> with row pitch width. Kernels bind
// the params uniform at 0, the source surface at 1 and the destination
// surface at 2.
package native

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pixelsort/internal/compute"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Name is the registry name of the backend.
const Name = "vulkan"

// Priority places the backend ahead of CPU backends.
const Priority = 100

func init() {
	compute.Register(Name, Priority, true, func() (compute.Device, error) {
		return Open()
	}, available)
}

func available() bool {
	_, ok := hal.GetBackend(gputypes.BackendVulkan)
	return ok
}

// copyAlignment is the size and offset alignment of buffer copies.
const copyAlignment = 4

// Device implements compute.Device on a hal device.
type Device struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	info     compute.AdapterInfo

	// external is true when the device belongs to a host application
	// and must not be destroyed here.
	external  bool
	destroyed bool
}

var _ compute.Device = (*Device)(nil)

// Open creates a Vulkan instance and opens the first discrete or
// integrated GPU, falling back to the first adapter of any kind.
func Open() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("native: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("native: no GPU adapters found")
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open device: %w", err)
	}

	d := &Device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		info: compute.AdapterInfo{
			Name:     selected.Info.Name,
			Backend:  Name,
			Hardware: true,
		},
	}
	compute.Logger().Info("native: GPU initialized", "adapter", selected.Info.Name)
	return d, nil
}

// Wrap uses an existing hal device and queue. The device is not
// destroyed by Destroy.
func Wrap(device hal.Device, queue hal.Queue, name string) *Device {
	return &Device{
		device:   device,
		queue:    queue,
		external: true,
		info: compute.AdapterInfo{
			Name:     name,
			Backend:  Name,
			Hardware: true,
		},
	}
}

// Info describes the adapter.
func (d *Device) Info() compute.AdapterInfo { return d.info }

// CopyPitchAlignment returns the buffer copy alignment. Surface rows are
// always a multiple of four bytes, so staging rows stay tight.
func (d *Device) CopyPitchAlignment() uint32 { return copyAlignment }

// errDestroyed is returned by fences waited on after Destroy.
var errDestroyed = errors.New("native: device destroyed")

// live returns the hal device, or nil once the Device is destroyed.
// Resource releases go through it since they may outlive the Device.
func (d *Device) live() hal.Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.device
}

// Destroy releases the device and instance unless they are external.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.destroyed {
		return
	}
	d.destroyed = true
	if d.external {
		d.device = nil
		d.queue = nil
		return
	}
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
