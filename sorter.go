package pixelsort

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/pixelsort/internal/compute"
)

// AdapterInfo describes the device a Sorter runs on.
type AdapterInfo = compute.AdapterInfo

// MemoryStats reports device memory held by a Sorter.
type MemoryStats = compute.MemoryStats

// Geometry is the dispatch layout of one pass.
type Geometry = compute.Geometry

// Plan returns the dispatch geometry for a width x height image with the
// given tile width. It is a pure function.
func Plan(width, height, tileWidth uint32) (Geometry, error) {
	return compute.Plan(width, height, tileWidth)
}

// Backends returns the names of the backends available on this system,
// best first.
func Backends() []string {
	return compute.Available()
}

// Sorter holds a device and a compiled kernel entry point. Runs on one
// Sorter are serialized.
type Sorter struct {
	mu       sync.Mutex
	opts     options
	dc       *compute.DeviceContext
	queue    *compute.CommandQueue
	program  *compute.KernelProgram
	pipeline *compute.KernelPipeline
	closed   bool
}

// New acquires a device and compiles the kernel. When no device can be
// acquired the error is a *NoDeviceError and nothing has been allocated.
func New(opts ...Option) (*Sorter, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	dc, err := acquire(&o)
	if err != nil {
		return nil, err
	}
	dc.SetMemoryBudget(o.memoryBudget)

	program, err := compute.Compile(dc, o.source, compute.CompileOptions{
		Label:   o.entryPoint,
		Defines: map[string]uint32{compute.TileWidthConstant: o.tileWidth},
	})
	if err != nil {
		dc.Close()
		return nil, err
	}
	pipeline, err := program.EntryPoint(o.entryPoint)
	if err != nil {
		program.Release()
		dc.Close()
		return nil, err
	}

	Logger().Info("pixelsort: ready",
		"adapter", dc.Info().Name, "backend", dc.Info().Backend,
		"entry_point", o.entryPoint, "tile_width", o.tileWidth, "passes", o.passes)

	return &Sorter{
		opts:     o,
		dc:       dc,
		queue:    dc.NewQueue(),
		program:  program,
		pipeline: pipeline,
	}, nil
}

func acquire(o *options) (*compute.DeviceContext, error) {
	if o.provider == nil {
		return compute.Acquire(o.backend)
	}
	dev, err := deviceFromProvider(o.provider)
	if err != nil {
		return nil, err
	}
	return compute.AcquireDevice(dev), nil
}

// Adapter describes the device in use.
func (s *Sorter) Adapter() AdapterInfo { return s.dc.Info() }

// TileWidth returns the tile width the kernel was compiled with.
func (s *Sorter) TileWidth() uint32 { return s.opts.tileWidth }

// Passes returns the number of passes per run.
func (s *Sorter) Passes() int { return s.opts.passes }

// EntryPoints lists the entry points of the compiled kernel.
func (s *Sorter) EntryPoints() []string { return s.program.EntryPoints() }

// MemoryStats returns the device memory currently held.
func (s *Sorter) MemoryStats() MemoryStats { return s.dc.MemoryStats() }

// Sort runs the kernel over pb and returns a new buffer; pb is not
// modified. Cancelling ctx abandons the wait for the device; resources
// are released once the device is done with them.
func (s *Sorter) Sort(ctx context.Context, pb *PixelBuffer) (*PixelBuffer, error) {
	if err := pb.Validate(); err != nil {
		return nil, err
	}
	// Staggered passes need the widest grid.
	var offset uint32
	if s.opts.passes > 1 {
		offset = s.opts.tileWidth / 2
	}
	if _, err := compute.PlanOffset(pb.Width, pb.Height, s.opts.tileWidth, offset); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	start := time.Now()

	in, err := compute.CreateTexture(s.dc, "input", pb.Width, pb.Height,
		compute.TextureFormatRGBA8Unorm, compute.UsageKernelReadWrite)
	if err != nil {
		return nil, err
	}
	defer in.Release()

	out, err := compute.CreateLike(in, "output")
	if err != nil {
		return nil, err
	}
	defer out.Release()

	if err := in.Upload(pb.Pix); err != nil {
		return nil, err
	}

	job := compute.NewJob(s.queue, s.pipeline)
	defer job.Release()

	pix, err := job.Run(ctx, in, out, compute.JobParams{
		Passes:     s.opts.passes,
		Descending: s.opts.descending,
	})
	if err != nil {
		return nil, fmt.Errorf("pixelsort: %s: %w", s.pipeline.Name(), err)
	}

	Logger().Info("pixelsort: run complete",
		"width", pb.Width, "height", pb.Height,
		"groups", job.Plans()[0].GroupCount.Total(), "elapsed", time.Since(start))

	return &PixelBuffer{Width: pb.Width, Height: pb.Height, Pix: pix}, nil
}

// Close releases the kernel and the device. Close is safe to call
// multiple times.
func (s *Sorter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.program.Release()
	s.dc.Close()
}

// SortFile decodes in, sorts it and encodes the result to out. The
// device is acquired before the input is read.
func SortFile(ctx context.Context, in, out string, opts ...Option) error {
	s, err := New(opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	pb, err := Decode(in)
	if err != nil {
		return err
	}
	res, err := s.Sort(ctx, pb)
	if err != nil {
		return err
	}
	return Encode(res, out)
}
