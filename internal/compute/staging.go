// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compute

import (
	"fmt"
	"sync"
)

// StagingBuffer is host-visible memory a surface is copied into for
// readback. It is created per readback and released by Extract.
type StagingBuffer struct {
	mu       sync.Mutex
	dc       *DeviceContext
	buf      Buffer
	width    uint32
	height   uint32
	rowPitch uint32
	size     uint64
	released bool
}

// alignUp rounds n up to a multiple of align. align 0 or 1 returns n.
func alignUp(n, align uint32) uint32 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// newStagingBuffer allocates a buffer able to hold a width x height RGBA8
// surface copy using the device's required row pitch.
func newStagingBuffer(dc *DeviceContext, label string, width, height uint32) (*StagingBuffer, error) {
	dev, err := dc.device()
	if err != nil {
		return nil, err
	}

	pitch := alignUp(width*4, dev.CopyPitchAlignment())
	size := uint64(pitch) * uint64(height)
	if err := dc.reserve(kindBuffer, size); err != nil {
		return nil, err
	}

	buf, err := dev.CreateStagingBuffer(label, size)
	if err != nil {
		dc.unreserve(kindBuffer, size)
		return nil, fmt.Errorf("compute: create staging buffer: %w", err)
	}

	slogger().Debug("compute: staging buffer created",
		"width", width, "height", height, "row_pitch", pitch, "bytes", size)

	return &StagingBuffer{
		dc:       dc,
		buf:      buf,
		width:    width,
		height:   height,
		rowPitch: pitch,
		size:     size,
	}, nil
}

// RowPitch returns the padded row pitch of the buffer contents.
func (s *StagingBuffer) RowPitch() uint32 { return s.rowPitch }

// Size returns the allocated size in bytes.
func (s *StagingBuffer) Size() uint64 { return s.size }

// Extract reads the buffer, strips row padding and releases the buffer.
// The result is always width*height*4 bytes.
func (s *StagingBuffer) Extract() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil, ErrResourceReleased
	}
	defer s.releaseLocked()

	dev, err := s.dc.device()
	if err != nil {
		return nil, err
	}

	raw := make([]byte, s.size)
	if err := dev.ReadBuffer(s.buf, raw); err != nil {
		return nil, &DeviceError{Op: "read buffer", Err: err}
	}
	return depad(raw, s.width, s.height, s.rowPitch)
}

// Release frees the buffer without reading it.
func (s *StagingBuffer) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

func (s *StagingBuffer) releaseLocked() {
	if s.released {
		return
	}
	s.released = true
	s.buf.Destroy()
	s.dc.unreserve(kindBuffer, s.size)
}

// depad copies rows of width*4 bytes out of raw, whose rows are pitch
// bytes apart, into a tight slice.
func depad(raw []byte, width, height, pitch uint32) ([]byte, error) {
	rowBytes := int(width) * 4
	want := rowBytes * int(height)
	if int(pitch) < rowBytes {
		return nil, &SizeMismatchError{What: "row pitch", Expected: rowBytes, Actual: int(pitch)}
	}
	if height > 0 {
		if need := int(pitch)*(int(height)-1) + rowBytes; len(raw) < need {
			return nil, &SizeMismatchError{What: "readback", Expected: need, Actual: len(raw)}
		}
	}

	if int(pitch) == rowBytes {
		out := make([]byte, want)
		copy(out, raw[:want])
		return out, nil
	}

	out := make([]byte, 0, want)
	for y := 0; y < int(height); y++ {
		off := y * int(pitch)
		out = append(out, raw[off:off+rowBytes]...)
	}
	if len(out) != want {
		return nil, &SizeMismatchError{What: "readback", Expected: want, Actual: len(out)}
	}
	return out, nil
}
