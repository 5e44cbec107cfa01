// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compute

import (
	"fmt"
)

type resourceKind uint8

const (
	kindSurface resourceKind = iota
	kindBuffer
)

// MemoryStats contains device memory usage for one DeviceContext.
type MemoryStats struct {
	// BudgetBytes is the configured limit, 0 when unlimited.
	BudgetBytes uint64

	// UsedBytes is the currently allocated memory in bytes.
	UsedBytes uint64

	// PeakBytes is the highest UsedBytes seen.
	PeakBytes uint64

	// Surfaces is the number of live surfaces.
	Surfaces int

	// Buffers is the number of live staging buffers.
	Buffers int

	// Allocations counts every allocation made, live or released.
	Allocations uint64
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	budget := "unlimited"
	if s.BudgetBytes > 0 {
		budget = fmt.Sprintf("%d KB", s.BudgetBytes/1024)
	}
	return fmt.Sprintf("Memory[%d/%s used, peak %d KB, %d surfaces, %d buffers, %d allocations]",
		s.UsedBytes/1024, budget, s.PeakBytes/1024, s.Surfaces, s.Buffers, s.Allocations)
}

// memoryTracker accounts for live allocations. Callers hold the
// DeviceContext mutex.
type memoryTracker struct {
	budget      uint64
	used        uint64
	peak        uint64
	surfaces    int
	buffers     int
	allocations uint64
}

func (m *memoryTracker) init(budget uint64) {
	*m = memoryTracker{budget: budget}
}

func (m *memoryTracker) alloc(kind resourceKind, bytes uint64) error {
	if m.budget > 0 && m.used+bytes > m.budget {
		return fmt.Errorf("%w: need %d bytes, %d of %d in use",
			ErrMemoryBudgetExceeded, bytes, m.used, m.budget)
	}
	m.used += bytes
	if m.used > m.peak {
		m.peak = m.used
	}
	m.allocations++
	switch kind {
	case kindSurface:
		m.surfaces++
	case kindBuffer:
		m.buffers++
	}
	return nil
}

func (m *memoryTracker) free(kind resourceKind, bytes uint64) {
	if bytes > m.used {
		bytes = m.used
	}
	m.used -= bytes
	switch kind {
	case kindSurface:
		m.surfaces--
	case kindBuffer:
		m.buffers--
	}
}

func (m *memoryTracker) stats() MemoryStats {
	return MemoryStats{
		BudgetBytes: m.budget,
		UsedBytes:   m.used,
		PeakBytes:   m.peak,
		Surfaces:    m.surfaces,
		Buffers:     m.buffers,
		Allocations: m.allocations,
	}
}
