// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package native

import (
	"context"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pixelsort/internal/compute"
)

// pollInterval bounds each fence wait so cancellation is noticed.
const pollInterval = 10 * time.Millisecond

// fence tracks one submission and the transient resources it uses.
type fence struct {
	d        *Device
	fence    hal.Fence
	cmd      hal.CommandBuffer
	uniforms []hal.Buffer
	groups   []hal.BindGroup
}

// Wait polls the fence until it signals or ctx is done.
func (f *fence) Wait(ctx context.Context) error {
	for {
		dev := f.d.live()
		if dev == nil {
			return errDestroyed
		}
		ok, err := dev.Wait(f.fence, 1, pollInterval)
		if err != nil {
			return fmt.Errorf("native: wait for GPU: %w", err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Destroy frees the fence, command buffer and per-dispatch bindings.
func (f *fence) Destroy() {
	dev := f.d.live()
	if dev == nil {
		return
	}
	releaseTransient(dev, f.uniforms, f.groups)
	if f.cmd != nil {
		dev.FreeCommandBuffer(f.cmd)
	}
	if f.fence != nil {
		dev.DestroyFence(f.fence)
	}
}

func releaseTransient(dev hal.Device, uniforms []hal.Buffer, groups []hal.BindGroup) {
	for _, bg := range groups {
		if bg != nil {
			dev.DestroyBindGroup(bg)
		}
	}
	for _, ub := range uniforms {
		if ub != nil {
			dev.DestroyBuffer(ub)
		}
	}
}

// Submit encodes seq into one command buffer, one compute pass per
// dispatch, and submits it with a fence. Storage buffer writes of a pass
// are visible to the next pass.
func (d *Device) Submit(seq *compute.CommandSequence) (compute.Fence, error) {
	f := &fence{d: d}

	// Bindings first: each dispatch gets its own params uniform.
	for _, c := range seq.Commands {
		cmd, ok := c.(*compute.DispatchCommand)
		if !ok {
			continue
		}
		if err := d.prepareDispatch(f, cmd); err != nil {
			f.Destroy()
			return nil, err
		}
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: seq.Label})
	if err != nil {
		f.Destroy()
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(seq.Label); err != nil {
		f.Destroy()
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}

	dispatch := 0
	for i, c := range seq.Commands {
		switch cmd := c.(type) {
		case *compute.DispatchCommand:
			p := cmd.Pipeline.(*pipeline)
			pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: cmd.Label})
			pass.SetPipeline(p.pipeline)
			pass.SetBindGroup(0, f.groups[dispatch], nil)
			pass.Dispatch(cmd.Geometry.GroupCount.X, cmd.Geometry.GroupCount.Y, cmd.Geometry.GroupCount.Z)
			pass.End()
			dispatch++
		case *compute.CopyCommand:
			if err := encodeCopy(encoder, cmd); err != nil {
				encoder.DiscardEncoding()
				f.Destroy()
				return nil, fmt.Errorf("native: command %d: %w", i, err)
			}
		default:
			encoder.DiscardEncoding()
			f.Destroy()
			return nil, fmt.Errorf("native: unsupported command %T", c)
		}
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		f.Destroy()
		return nil, fmt.Errorf("native: end encoding: %w", err)
	}
	f.cmd = cmdBuf

	hf, err := d.device.CreateFence()
	if err != nil {
		f.Destroy()
		return nil, fmt.Errorf("native: create fence: %w", err)
	}
	f.fence = hf

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, hf, 1); err != nil {
		f.Destroy()
		return nil, fmt.Errorf("native: submit: %w", err)
	}
	compute.Logger().Debug("native: submitted", "label", seq.Label, "dispatches", dispatch)
	return f, nil
}

// prepareDispatch creates the params uniform and bind group of cmd.
func (d *Device) prepareDispatch(f *fence, cmd *compute.DispatchCommand) error {
	p, ok := cmd.Pipeline.(*pipeline)
	if !ok {
		return fmt.Errorf("native: foreign pipeline %T", cmd.Pipeline)
	}
	src, ok1 := cmd.Src.(*surface)
	dst, ok2 := cmd.Dst.(*surface)
	if !ok1 || !ok2 {
		return fmt.Errorf("native: foreign surface in dispatch %q", cmd.Label)
	}

	ub, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "params",
		Size:  compute.ParamsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: create params buffer: %w", err)
	}
	f.uniforms = append(f.uniforms, ub)
	d.queue.WriteBuffer(ub, 0, cmd.Params.Bytes())

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  cmd.Label,
		Layout: p.module.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Offset: 0, Size: compute.ParamsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: src.buf.NativeHandle(), Offset: 0, Size: src.size}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: dst.buf.NativeHandle(), Offset: 0, Size: dst.size}},
		},
	})
	if err != nil {
		return fmt.Errorf("native: create bind group: %w", err)
	}
	f.groups = append(f.groups, bg)
	return nil
}

// encodeCopy copies a surface into a staging buffer, one region when the
// pitches agree and one region per row otherwise.
func encodeCopy(encoder hal.CommandEncoder, cmd *compute.CopyCommand) error {
	src, ok := cmd.Src.(*surface)
	if !ok {
		return fmt.Errorf("foreign surface %T", cmd.Src)
	}
	dst, ok := cmd.Dst.(*stagingBuffer)
	if !ok {
		return fmt.Errorf("foreign buffer %T", cmd.Dst)
	}
	rowBytes := uint64(cmd.Width) * 4
	pitch := uint64(cmd.BytesPerRow)
	if pitch < rowBytes || pitch%copyAlignment != 0 {
		return fmt.Errorf("invalid copy pitch %d for %d byte rows", pitch, rowBytes)
	}
	if dst.size < pitch*uint64(cmd.Height-1)+rowBytes {
		return fmt.Errorf("staging buffer of %d bytes too small", dst.size)
	}

	if pitch == rowBytes {
		encoder.CopyBufferToBuffer(src.buf, dst.buf, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: rowBytes * uint64(cmd.Height)},
		})
		return nil
	}
	regions := make([]hal.BufferCopy, cmd.Height)
	for y := range regions {
		regions[y] = hal.BufferCopy{
			SrcOffset: uint64(y) * rowBytes,
			DstOffset: uint64(y) * pitch,
			Size:      rowBytes,
		}
	}
	encoder.CopyBufferToBuffer(src.buf, dst.buf, regions)
	return nil
}
