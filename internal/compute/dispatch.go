// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compute

import "fmt"

// Size3 is a three-dimensional count.
type Size3 struct {
	X, Y, Z uint32
}

// Total returns X*Y*Z.
func (s Size3) Total() uint64 {
	return uint64(s.X) * uint64(s.Y) * uint64(s.Z)
}

// Geometry is the thread-group layout of one dispatch.
//
// Tiling is row-major. Group X indexes tiles along a row and group Y
// indexes rows, so lane i of group (gx, gy) owns column
// gx*TileWidth + i - Offset of row gy. Lanes whose column falls outside
// [0, width) must do nothing; the last tile of a row usually has some.
type Geometry struct {
	ThreadsPerGroup Size3
	GroupCount      Size3

	// TileWidth equals ThreadsPerGroup.X.
	TileWidth uint32

	// Offset shifts tile boundaries left by Offset columns.
	Offset uint32
}

func (g Geometry) String() string {
	return fmt.Sprintf("groups=%dx%dx%d threads=%dx%dx%d offset=%d",
		g.GroupCount.X, g.GroupCount.Y, g.GroupCount.Z,
		g.ThreadsPerGroup.X, g.ThreadsPerGroup.Y, g.ThreadsPerGroup.Z, g.Offset)
}

// Covers reports whether the tiles reach every column of a row of width.
func (g Geometry) Covers(width uint32) bool {
	return uint64(g.GroupCount.X)*uint64(g.TileWidth) >= uint64(width)+uint64(g.Offset)
}

// MaxGroupsPerDimension is the largest group count a dispatch may have
// along any axis under the default device limits.
const MaxGroupsPerDimension = 65535

func ceilDiv(a uint64, b uint32) uint32 {
	return uint32((a + uint64(b) - 1) / uint64(b))
}

// Plan computes the dispatch geometry for a width x height image: one
// group per tile of tileWidth columns, one row of groups per image row.
// Plan is a pure function of its arguments.
func Plan(width, height, tileWidth uint32) (Geometry, error) {
	return PlanOffset(width, height, tileWidth, 0)
}

// PlanOffset is Plan with tile boundaries shifted left by offset columns.
// Staggered passes use it so that tiles straddle the previous pass's
// boundaries.
func PlanOffset(width, height, tileWidth, offset uint32) (Geometry, error) {
	if width == 0 || height == 0 || tileWidth == 0 {
		return Geometry{}, fmt.Errorf("%w: plan %dx%d tile %d", ErrInvalidDimensions, width, height, tileWidth)
	}
	if offset >= tileWidth {
		return Geometry{}, fmt.Errorf("compute: plan offset %d must be less than tile width %d", offset, tileWidth)
	}
	groups := Size3{X: ceilDiv(uint64(width)+uint64(offset), tileWidth), Y: height, Z: 1}
	if groups.X > MaxGroupsPerDimension || groups.Y > MaxGroupsPerDimension {
		return Geometry{}, &GridTooLargeError{GroupCount: groups, Limit: MaxGroupsPerDimension}
	}
	return Geometry{
		ThreadsPerGroup: Size3{X: tileWidth, Y: 1, Z: 1},
		GroupCount:      groups,
		TileWidth:       tileWidth,
		Offset:          offset,
	}, nil
}
