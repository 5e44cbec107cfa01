// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pixelsort/internal/compute"
)

type surface struct {
	d      *Device
	buf    hal.Buffer
	width  uint32
	height uint32
	size   uint64
}

func (s *surface) Destroy() {
	if dev := s.d.live(); dev != nil {
		dev.DestroyBuffer(s.buf)
	}
}

type stagingBuffer struct {
	d    *Device
	buf  hal.Buffer
	size uint64
}

func (b *stagingBuffer) Destroy() {
	if dev := b.d.live(); dev != nil {
		dev.DestroyBuffer(b.buf)
	}
}

// module is a shader module with the bind group and pipeline layouts
// every kernel entry point shares.
type module struct {
	d          *Device
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
}

func (m *module) Destroy() {
	dev := m.d.live()
	if dev == nil {
		return
	}
	if m.pipeLayout != nil {
		dev.DestroyPipelineLayout(m.pipeLayout)
	}
	if m.bindLayout != nil {
		dev.DestroyBindGroupLayout(m.bindLayout)
	}
	if m.shader != nil {
		dev.DestroyShaderModule(m.shader)
	}
}

type pipeline struct {
	d        *Device
	module   *module
	pipeline hal.ComputePipeline
	entry    string
}

func (p *pipeline) Destroy() {
	if dev := p.d.live(); dev != nil {
		dev.DestroyComputePipeline(p.pipeline)
	}
}

// CreateSurface allocates a storage buffer holding width*height texels.
func (d *Device) CreateSurface(desc *compute.SurfaceDescriptor) (compute.Surface, error) {
	size := uint64(desc.Width) * uint64(desc.Height) * uint64(desc.Format.BytesPerPixel())
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: surfaceUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("native: create surface buffer: %w", err)
	}
	return &surface{d: d, buf: buf, width: desc.Width, height: desc.Height, size: size}, nil
}

// surfaceUsage maps surface usage onto buffer usage. Kernel access of
// either kind needs a storage binding.
func surfaceUsage(u compute.TextureUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if u&(compute.UsageKernelRead|compute.UsageKernelWrite) != 0 {
		out |= gputypes.BufferUsageStorage
	}
	if u.Has(compute.UsageCopySrc) {
		out |= gputypes.BufferUsageCopySrc
	}
	if u.Has(compute.UsageCopyDst) {
		out |= gputypes.BufferUsageCopyDst
	}
	return out
}

// WriteSurface uploads data through the queue. Rows with padding are
// packed first so the surface stays tight.
func (d *Device) WriteSurface(dst compute.Surface, data []byte, bytesPerRow uint32) error {
	s, ok := dst.(*surface)
	if !ok {
		return fmt.Errorf("native: foreign surface %T", dst)
	}
	rowBytes := s.width * 4
	if bytesPerRow != rowBytes {
		packed := make([]byte, 0, s.size)
		for y := 0; y < int(s.height); y++ {
			off := y * int(bytesPerRow)
			packed = append(packed, data[off:off+int(rowBytes)]...)
		}
		data = packed
	}
	d.queue.WriteBuffer(s.buf, 0, data)
	return nil
}

// CreateStagingBuffer allocates a mappable readback buffer.
func (d *Device) CreateStagingBuffer(label string, size uint64) (compute.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create staging buffer: %w", err)
	}
	return &stagingBuffer{d: d, buf: buf, size: size}, nil
}

// ReadBuffer reads a staging buffer after its copy has completed.
func (d *Device) ReadBuffer(src compute.Buffer, dst []byte) error {
	b, ok := src.(*stagingBuffer)
	if !ok {
		return fmt.Errorf("native: foreign buffer %T", src)
	}
	if uint64(len(dst)) > b.size {
		return fmt.Errorf("native: read of %d bytes from %d byte buffer", len(dst), b.size)
	}
	return d.queue.ReadBuffer(b.buf, 0, dst)
}

// CreateModule compiles the WGSL source into a shader module and creates
// the shared kernel layout: uniform params, read-only source, writable
// destination.
func (d *Device) CreateModule(label, source string, _ []string) (compute.Module, error) {
	m := &module{d: d}

	shader, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: source},
	})
	if err != nil {
		return nil, fmt.Errorf("native: compile shader: %w", err)
	}
	m.shader = shader

	bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label + "_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		m.Destroy()
		return nil, fmt.Errorf("native: create bind group layout: %w", err)
	}
	m.bindLayout = bindLayout

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		m.Destroy()
		return nil, fmt.Errorf("native: create pipeline layout: %w", err)
	}
	m.pipeLayout = pipeLayout

	return m, nil
}

// CreatePipeline creates a compute pipeline for one entry point.
func (d *Device) CreatePipeline(m compute.Module, entryPoint string) (compute.Pipeline, error) {
	mod, ok := m.(*module)
	if !ok {
		return nil, fmt.Errorf("native: foreign module %T", m)
	}
	p, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   entryPoint,
		Layout:  mod.pipeLayout,
		Compute: hal.ComputeState{Module: mod.shader, EntryPoint: entryPoint},
	})
	if err != nil {
		return nil, fmt.Errorf("native: create compute pipeline %q: %w", entryPoint, err)
	}
	return &pipeline{d: d, module: mod, pipeline: p, entry: entryPoint}, nil
}
