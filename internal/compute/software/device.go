// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package software is a CPU compute backend. It runs the CPU
// implementations of the built-in kernels over the exact dispatch grid a
// GPU would execute, one workgroup per work item.
package software

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/pixelsort/internal/compute"
	"github.com/gogpu/pixelsort/internal/kernels"
	"github.com/gogpu/pixelsort/internal/parallel"
)

// Name is the registry name of the backend.
const Name = "software"

// Priority places the backend below every GPU backend.
const Priority = 10

// ErrDestroyed is returned for work submitted to a destroyed device.
var ErrDestroyed = errors.New("software: device destroyed")

func init() {
	compute.Register(Name, Priority, false, func() (compute.Device, error) {
		return New(Options{}), nil
	}, nil)
}

// Options configures a software device.
type Options struct {
	// Workers is the number of CPU workers; 0 uses GOMAXPROCS.
	Workers int

	// RowPitchAlignment pads staging rows like a GPU would; 0 or 1 keeps
	// rows tight.
	RowPitchAlignment uint32
}

// Device implements compute.Device on the CPU.
//
// Submitted sequences execute in submission order on a single executor
// goroutine; workgroups within a dispatch run on a worker pool.
type Device struct {
	pool      *parallel.WorkerPool
	alignment uint32

	mu        sync.Mutex
	destroyed bool

	submits  chan submission
	quit     chan struct{}
	senders  sync.WaitGroup
	executor sync.WaitGroup
}

type submission struct {
	seq   *compute.CommandSequence
	fence *fence
}

var _ compute.Device = (*Device)(nil)

// New creates a software device.
func New(opts Options) *Device {
	d := newDevice(opts, 16)
	d.executor.Add(1)
	go d.execute()
	return d
}

func newDevice(opts Options, depth int) *Device {
	return &Device{
		pool:      parallel.NewWorkerPool(opts.Workers),
		alignment: max(opts.RowPitchAlignment, 1),
		submits:   make(chan submission, depth),
		quit:      make(chan struct{}),
	}
}

type surface struct {
	width, height uint32
	pix           []byte
}

func (*surface) Destroy() {}

type buffer struct {
	data []byte
}

func (*buffer) Destroy() {}

type module struct {
	entries []string
}

func (*module) Destroy() {}

type pipeline struct {
	name string
	fn   kernels.GroupFunc
}

func (*pipeline) Destroy() {}

type fence struct {
	done chan struct{}
	err  error
}

func (f *fence) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (*fence) Destroy() {}

// Info describes the CPU adapter.
func (d *Device) Info() compute.AdapterInfo {
	return compute.AdapterInfo{
		Name:    fmt.Sprintf("CPU (%d workers)", d.pool.Workers()),
		Backend: Name,
	}
}

// CreateSurface allocates a zeroed surface.
func (d *Device) CreateSurface(desc *compute.SurfaceDescriptor) (compute.Surface, error) {
	bpp := uint64(desc.Format.BytesPerPixel())
	return &surface{
		width:  desc.Width,
		height: desc.Height,
		pix:    make([]byte, uint64(desc.Width)*uint64(desc.Height)*bpp),
	}, nil
}

// WriteSurface copies data into dst row by row.
func (d *Device) WriteSurface(dst compute.Surface, data []byte, bytesPerRow uint32) error {
	s, ok := dst.(*surface)
	if !ok {
		return fmt.Errorf("software: foreign surface %T", dst)
	}
	rowBytes := int(s.width) * 4
	if int(bytesPerRow) < rowBytes || len(data) < int(bytesPerRow)*(int(s.height)-1)+rowBytes {
		return fmt.Errorf("software: write of %d bytes with pitch %d does not cover %dx%d", len(data), bytesPerRow, s.width, s.height)
	}
	for y := 0; y < int(s.height); y++ {
		copy(s.pix[y*rowBytes:(y+1)*rowBytes], data[y*int(bytesPerRow):])
	}
	return nil
}

// CreateStagingBuffer allocates a host buffer.
func (d *Device) CreateStagingBuffer(_ string, size uint64) (compute.Buffer, error) {
	return &buffer{data: make([]byte, size)}, nil
}

// ReadBuffer copies the start of src into dst.
func (d *Device) ReadBuffer(src compute.Buffer, dst []byte) error {
	b, ok := src.(*buffer)
	if !ok {
		return fmt.Errorf("software: foreign buffer %T", src)
	}
	if len(dst) > len(b.data) {
		return fmt.Errorf("software: read of %d bytes from %d byte buffer", len(dst), len(b.data))
	}
	copy(dst, b.data)
	return nil
}

// CreateModule records the entry points of validated source.
func (d *Device) CreateModule(_, _ string, entryPoints []string) (compute.Module, error) {
	return &module{entries: slices.Clone(entryPoints)}, nil
}

// CreatePipeline binds an entry point to its CPU implementation. Only
// the built-in kernels have one.
func (d *Device) CreatePipeline(m compute.Module, entryPoint string) (compute.Pipeline, error) {
	mod, ok := m.(*module)
	if !ok {
		return nil, fmt.Errorf("software: foreign module %T", m)
	}
	if !slices.Contains(mod.entries, entryPoint) {
		return nil, fmt.Errorf("software: module has no entry point %q", entryPoint)
	}
	fn, ok := kernels.Lookup(entryPoint)
	if !ok {
		return nil, fmt.Errorf("software: no CPU implementation for entry point %q (have %v)", entryPoint, kernels.Entries())
	}
	return &pipeline{name: entryPoint, fn: fn}, nil
}

// CopyPitchAlignment returns the configured staging row alignment.
func (d *Device) CopyPitchAlignment() uint32 { return d.alignment }

// Submit queues seq for execution. It blocks while the queue is full,
// until the executor makes room or the device is destroyed.
func (d *Device) Submit(seq *compute.CommandSequence) (compute.Fence, error) {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return nil, ErrDestroyed
	}
	d.senders.Add(1)
	d.mu.Unlock()
	defer d.senders.Done()

	f := &fence{done: make(chan struct{})}
	select {
	case d.submits <- submission{seq: seq, fence: f}:
		return f, nil
	case <-d.quit:
		return nil, ErrDestroyed
	}
}

// Destroy finishes queued work and stops the workers. Submits blocked on
// a full queue fail with ErrDestroyed.
func (d *Device) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	d.mu.Unlock()

	close(d.quit)
	d.senders.Wait()
	close(d.submits)

	d.executor.Wait()
	d.pool.Close()
}

func (d *Device) execute() {
	defer d.executor.Done()
	for s := range d.submits {
		s.fence.err = d.run(s.seq)
		close(s.fence.done)
	}
}

func (d *Device) run(seq *compute.CommandSequence) error {
	for i, c := range seq.Commands {
		var err error
		switch cmd := c.(type) {
		case *compute.DispatchCommand:
			err = d.dispatch(cmd)
		case *compute.CopyCommand:
			err = copySurface(cmd)
		default:
			err = fmt.Errorf("software: unsupported command %T", c)
		}
		if err != nil {
			return fmt.Errorf("software: %s command %d: %w", seq.Label, i, err)
		}
	}
	return nil
}

func (d *Device) dispatch(cmd *compute.DispatchCommand) error {
	p, ok := cmd.Pipeline.(*pipeline)
	if !ok {
		return fmt.Errorf("foreign pipeline %T", cmd.Pipeline)
	}
	src, ok1 := cmd.Src.(*surface)
	dst, ok2 := cmd.Dst.(*surface)
	if !ok1 || !ok2 {
		return errors.New("foreign surface in dispatch")
	}
	if src.width != cmd.Params.Width || dst.width != cmd.Params.Width ||
		src.height != cmd.Params.Height || dst.height != cmd.Params.Height {
		return fmt.Errorf("params %dx%d do not match surfaces", cmd.Params.Width, cmd.Params.Height)
	}

	grid := kernels.Grid{
		Width:      cmd.Params.Width,
		Height:     cmd.Params.Height,
		TileWidth:  cmd.Geometry.TileWidth,
		Offset:     cmd.Params.Offset,
		Descending: cmd.Params.Flags&compute.FlagDescending != 0,
	}
	groupsX := cmd.Geometry.GroupCount.X
	groupsY := min(cmd.Geometry.GroupCount.Y, grid.Height)
	n := int(groupsX) * int(groupsY)

	compute.Logger().Debug("software: dispatch", "entry", p.name, "groups", n, "geometry", cmd.Geometry.String())

	// A whole row per batch keeps tiles of one row on one worker.
	d.pool.For(n, int(groupsX), func(i int) {
		gx, gy := uint32(i)%groupsX, uint32(i)/groupsX
		p.fn(src.pix, dst.pix, grid, gx, gy)
	})
	return nil
}

func copySurface(cmd *compute.CopyCommand) error {
	src, ok := cmd.Src.(*surface)
	if !ok {
		return fmt.Errorf("foreign surface %T", cmd.Src)
	}
	dst, ok := cmd.Dst.(*buffer)
	if !ok {
		return fmt.Errorf("foreign buffer %T", cmd.Dst)
	}
	rowBytes := int(cmd.Width) * 4
	if cmd.Width != src.width || cmd.Height != src.height {
		return fmt.Errorf("copy extent %dx%d does not match surface %dx%d", cmd.Width, cmd.Height, src.width, src.height)
	}
	if int(cmd.BytesPerRow) < rowBytes || len(dst.data) < int(cmd.BytesPerRow)*(int(cmd.Height)-1)+rowBytes {
		return fmt.Errorf("buffer of %d bytes cannot hold %dx%d with pitch %d", len(dst.data), cmd.Width, cmd.Height, cmd.BytesPerRow)
	}
	for y := 0; y < int(cmd.Height); y++ {
		copy(dst.data[y*int(cmd.BytesPerRow):], src.pix[y*rowBytes:(y+1)*rowBytes])
	}
	return nil
}
