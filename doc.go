// Package pixelsort reorders the pixels of an image on the GPU.
//
// # Overview
//
// An image is decoded into a PixelBuffer, uploaded into device memory,
// run through a tile-parallel sorting kernel and read back:
//
//	ctx := context.Background()
//	if err := pixelsort.SortFile(ctx, "in.png", "out.png"); err != nil {
//	    log.Fatal(err)
//	}
//
// For repeated runs keep a Sorter, which holds the device and compiled
// kernel:
//
//	s, err := pixelsort.New(pixelsort.WithTileWidth(128), pixelsort.WithPasses(4))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	out, err := s.Sort(ctx, pb)
//
// # Tiling
//
// Rows are split into tiles of TileWidth pixels. Each tile is one
// workgroup: group X indexes tiles along a row, group Y indexes rows, and
// lane i owns column x*TileWidth+i. The built-in sort_tile kernel sorts
// each tile by luminance, so a single pass only moves pixels within their
// tile. Odd passes shift tile boundaries by half a tile, which lets
// repeated passes spread the sort across tiles.
//
// # Backends
//
// With no backend named, the highest-priority GPU backend is used and
// New fails with a NoDeviceError when none is present. The CPU backend
// "software" runs the same kernels on the CPU and is only used when
// requested with WithBackend.
//
// # Kernels
//
// Custom kernels are WGSL compute shaders taking a Params uniform at
// binding 0, the source texels (array<u32>, packed RGBA8) at binding 1 and
// the destination texels at binding 2. The host declares TILE_WIDTH ahead
// of the source; kernels use it as their workgroup size.
package pixelsort

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
