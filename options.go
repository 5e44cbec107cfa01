package pixelsort

import (
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/pixelsort/internal/kernels"
)

// Option configures a Sorter during creation.
//
// Example:
//
//	// First GPU, built-in sort_tile kernel, 256-pixel tiles
//	s, err := pixelsort.New()
//
//	// CPU backend, descending order, four passes
//	s, err := pixelsort.New(
//	    pixelsort.WithBackend("software"),
//	    pixelsort.WithDescending(true),
//	    pixelsort.WithPasses(4),
//	)
type Option func(*options)

// options holds the Sorter configuration.
type options struct {
	backend      string
	source       string
	entryPoint   string
	tileWidth    uint32
	passes       int
	descending   bool
	provider     gpucontext.DeviceProvider
	memoryBudget uint64
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		source:     kernels.Source,
		entryPoint: kernels.EntrySortTile,
		tileWidth:  kernels.DefaultTileWidth,
		passes:     1,
	}
}

func (o *options) validate() error {
	if !kernels.ValidTileWidth(o.tileWidth) {
		return fmt.Errorf("pixelsort: tile width %d must be a power of two between 1 and %d", o.tileWidth, kernels.MaxTileWidth)
	}
	if o.passes < 1 {
		return fmt.Errorf("pixelsort: passes must be at least 1, got %d", o.passes)
	}
	if o.entryPoint == "" {
		return fmt.Errorf("pixelsort: empty entry point name")
	}
	return nil
}

// WithBackend selects a registered backend by name, for example "vulkan"
// or "software". The default picks the best available GPU.
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithKernelSource replaces the built-in kernels with WGSL source.
// The source must not declare TILE_WIDTH; the host does.
func WithKernelSource(src string) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithEntryPoint selects the kernel entry point. The built-in kernels
// provide sort_tile (default), reverse_row and copy_row.
func WithEntryPoint(name string) Option {
	return func(o *options) {
		o.entryPoint = name
	}
}

// WithTileWidth sets the tile width in pixels, a power of two up to 256.
// It becomes the kernel's TILE_WIDTH and the dispatch tile size.
func WithTileWidth(n uint32) Option {
	return func(o *options) {
		o.tileWidth = n
	}
}

// WithPasses sets how many times the kernel runs over the image.
func WithPasses(n int) Option {
	return func(o *options) {
		o.passes = n
	}
}

// WithDescending sorts brightest first.
func WithDescending(desc bool) Option {
	return func(o *options) {
		o.descending = desc
	}
}

// WithDeviceProvider runs on the GPU device of a host application
// instead of opening one. The provider must expose its HAL device with
// HalDevice() any and HalQueue() any. The device is not destroyed by Close.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithMemoryBudget caps the device memory a run may hold, in bytes.
// Zero means no limit.
func WithMemoryBudget(bytes uint64) Option {
	return func(o *options) {
		o.memoryBudget = bytes
	}
}
