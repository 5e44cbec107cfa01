// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package kernels holds the built-in WGSL kernels and CPU implementations
// with the same dispatch semantics.
package kernels

import (
	_ "embed"
	"sort"
)

// Source is the WGSL source of the built-in kernels. It expects the host
// to declare TILE_WIDTH.
//
//go:embed pixelsort.wgsl
var Source string

// DefaultTileWidth is the tile width used unless a run asks for another.
// Kernels sort within a tile, so it bounds how far a texel can travel in
// one pass.
const DefaultTileWidth = 256

// MaxTileWidth is the largest workgroup width a device opened with the
// default WebGPU limits accepts, both as workgroup size X and as
// invocations per workgroup.
const MaxTileWidth = 256

// Built-in entry points.
const (
	EntrySortTile   = "sort_tile"
	EntryReverseRow = "reverse_row"
	EntryCopyRow    = "copy_row"
)

// ValidTileWidth reports whether tw can be used with the built-in kernels:
// a power of two no larger than MaxTileWidth.
func ValidTileWidth(tw uint32) bool {
	return tw > 0 && tw <= MaxTileWidth && tw&(tw-1) == 0
}

// Grid describes one dispatch as a kernel sees it.
type Grid struct {
	Width      uint32
	Height     uint32
	TileWidth  uint32
	Offset     uint32
	Descending bool
}

// column returns the column owned by lane of group gx, which may be
// outside [0, Width).
func (g Grid) column(gx, lane uint32) int {
	return int(gx)*int(g.TileWidth) + int(lane) - int(g.Offset)
}

// GroupFunc executes one workgroup (gx, gy) of a kernel on the CPU.
// src and dst hold packed RGBA8 texels with row pitch Width*4.
// Workgroups of one dispatch write disjoint texels of dst.
type GroupFunc func(src, dst []byte, g Grid, gx, gy uint32)

var reference = map[string]GroupFunc{
	EntrySortTile:   sortTile,
	EntryReverseRow: reverseRow,
	EntryCopyRow:    copyRow,
}

// Lookup returns the CPU implementation of a built-in entry point.
func Lookup(entry string) (GroupFunc, bool) {
	fn, ok := reference[entry]
	return fn, ok
}

// Entries returns the names of entry points with a CPU implementation.
func Entries() []string {
	names := make([]string, 0, len(reference))
	for n := range reference {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Luminance is the sort key of a texel: Rec. 709 weighted RGB, alpha ignored.
func Luminance(px []byte) float32 {
	return 0.2126*float32(px[0]) + 0.7152*float32(px[1]) + 0.0722*float32(px[2])
}

func sortTile(src, dst []byte, g Grid, gx, gy uint32) {
	start := g.column(gx, 0)
	first := max(start, 0)
	end := min(start+int(g.TileWidth), int(g.Width))
	if end <= first {
		return
	}

	rowOff := int(gy) * int(g.Width) * 4
	n := end - first
	texels := make([][4]byte, n)
	for i := range texels {
		copy(texels[i][:], src[rowOff+(first+i)*4:])
	}
	sort.SliceStable(texels, func(a, b int) bool {
		ka, kb := Luminance(texels[a][:]), Luminance(texels[b][:])
		if g.Descending {
			return ka > kb
		}
		return ka < kb
	})
	for i, px := range texels {
		copy(dst[rowOff+(first+i)*4:], px[:])
	}
}

func reverseRow(src, dst []byte, g Grid, gx, gy uint32) {
	rowOff := int(gy) * int(g.Width) * 4
	for lane := uint32(0); lane < g.TileWidth; lane++ {
		col := g.column(gx, lane)
		if col < 0 || col >= int(g.Width) {
			continue
		}
		mirror := int(g.Width) - 1 - col
		copy(dst[rowOff+mirror*4:rowOff+mirror*4+4], src[rowOff+col*4:])
	}
}

func copyRow(src, dst []byte, g Grid, gx, gy uint32) {
	rowOff := int(gy) * int(g.Width) * 4
	for lane := uint32(0); lane < g.TileWidth; lane++ {
		col := g.column(gx, lane)
		if col < 0 || col >= int(g.Width) {
			continue
		}
		off := rowOff + col*4
		copy(dst[off:off+4], src[off:])
	}
}
