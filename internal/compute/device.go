// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compute

import (
	"context"
	"sync"
)

// Device is the contract a compute backend implements. All handles it
// returns are opaque to this package and are only ever passed back to the
// Device that created them.
//
// Surfaces hold tightly packed RGBA8 texels, row pitch width*4, in the
// layout the kernels index: texel (x, y) starts at byte (y*width+x)*4.
type Device interface {
	// Info describes the adapter behind the device.
	Info() AdapterInfo

	// CreateSurface allocates an uninitialized 2D surface.
	CreateSurface(desc *SurfaceDescriptor) (Surface, error)

	// WriteSurface replaces the full contents of dst. len(data) is
	// bytesPerRow*height; the caller has validated it.
	WriteSurface(dst Surface, data []byte, bytesPerRow uint32) error

	// CreateStagingBuffer allocates host-visible memory for readback.
	CreateStagingBuffer(label string, size uint64) (Buffer, error)

	// ReadBuffer copies the start of a staging buffer into dst.
	// It must only be called after the work writing the buffer completed.
	ReadBuffer(src Buffer, dst []byte) error

	// CreateModule builds a backend module from validated kernel source.
	// entryPoints lists the compute entry points the source declares.
	CreateModule(label, source string, entryPoints []string) (Module, error)

	// CreatePipeline creates an executable pipeline for one entry point.
	CreatePipeline(m Module, entryPoint string) (Pipeline, error)

	// CopyPitchAlignment is the byte alignment the device requires for
	// the row pitch of surface-to-buffer copies. 1 means tight rows.
	CopyPitchAlignment() uint32

	// Submit hands a recorded sequence to the device queue and returns
	// without waiting for it to execute.
	Submit(seq *CommandSequence) (Fence, error)

	// Destroy releases the device. Handles must be destroyed first.
	Destroy()
}

// Surface is a backend 2D texel surface.
type Surface interface{ Destroy() }

// Buffer is a backend host-visible staging buffer.
type Buffer interface{ Destroy() }

// Module is a backend kernel module.
type Module interface{ Destroy() }

// Pipeline is a backend pipeline bound to one entry point.
type Pipeline interface{ Destroy() }

// Fence signals completion of one submitted sequence.
type Fence interface {
	// Wait blocks until the sequence has executed or ctx is done.
	Wait(ctx context.Context) error
	Destroy()
}

// AdapterInfo describes the device selected by a backend.
type AdapterInfo struct {
	Name     string
	Backend  string
	Hardware bool
}

// SurfaceDescriptor describes a surface to create.
type SurfaceDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	Format TextureFormat
	Usage  TextureUsage
}

// DeviceContext owns an acquired device for the duration of a run.
//
// DeviceContext is safe for concurrent use; resource bookkeeping is mutex
// protected. Whether jobs may run concurrently on one device is up to the
// backend.
type DeviceContext struct {
	mu     sync.Mutex
	dev    Device
	info   AdapterInfo
	owned  bool
	closed bool
	mem    memoryTracker
}

// Acquire opens a device through the global backend registry.
// An empty name selects the highest-priority available hardware backend.
// When nothing can be opened the error is a *NoDeviceError (or a
// *BackendNotFoundError for an unknown name) and nothing is allocated.
func Acquire(name string) (*DeviceContext, error) {
	return globalRegistry.Acquire(name)
}

// AcquireDevice wraps a device owned by someone else. Close releases the
// resources created through the context but never destroys dev.
func AcquireDevice(dev Device) *DeviceContext {
	return newDeviceContext(dev, false)
}

func newDeviceContext(dev Device, owned bool) *DeviceContext {
	dc := &DeviceContext{
		dev:   dev,
		info:  dev.Info(),
		owned: owned,
	}
	dc.mem.init(0)
	slogger().Info("compute: device acquired",
		"adapter", dc.info.Name, "backend", dc.info.Backend, "hardware", dc.info.Hardware)
	return dc
}

// Info returns the adapter description.
func (dc *DeviceContext) Info() AdapterInfo { return dc.info }

// NewQueue returns the command queue of the device.
func (dc *DeviceContext) NewQueue() *CommandQueue {
	return &CommandQueue{dc: dc}
}

// SetMemoryBudget limits the bytes of live surfaces and staging buffers.
// Zero removes the limit.
func (dc *DeviceContext) SetMemoryBudget(bytes uint64) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.mem.budget = bytes
}

// MemoryStats returns a snapshot of live allocations.
func (dc *DeviceContext) MemoryStats() MemoryStats {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.mem.stats()
}

// Close releases the device if the context owns it.
// Close is safe to call multiple times.
func (dc *DeviceContext) Close() {
	dc.mu.Lock()
	if dc.closed {
		dc.mu.Unlock()
		return
	}
	dc.closed = true
	live := dc.mem.stats()
	dc.mu.Unlock()

	if live.Surfaces > 0 || live.Buffers > 0 {
		slogger().Warn("compute: closing device with live resources",
			"surfaces", live.Surfaces, "buffers", live.Buffers)
	}
	if dc.owned {
		dc.dev.Destroy()
	}
}

// reserve accounts for an allocation before it is made.
func (dc *DeviceContext) reserve(kind resourceKind, bytes uint64) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.closed {
		return ErrDeviceClosed
	}
	return dc.mem.alloc(kind, bytes)
}

func (dc *DeviceContext) unreserve(kind resourceKind, bytes uint64) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.mem.free(kind, bytes)
}

func (dc *DeviceContext) device() (Device, error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.closed {
		return nil, ErrDeviceClosed
	}
	return dc.dev, nil
}
