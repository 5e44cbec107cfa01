// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compute

import (
	"fmt"
	"strings"
	"sync"
)

// TextureFormat represents the texel format of a surface.
type TextureFormat uint8

const (
	// TextureFormatRGBA8Unorm is 8 bits per channel RGBA. It is the only
	// format kernels accept.
	TextureFormatRGBA8Unorm TextureFormat = iota

	// TextureFormatBGRA8Unorm is BGRA, as produced by presentation surfaces.
	TextureFormatBGRA8Unorm

	// TextureFormatR8Unorm is single-channel 8-bit.
	TextureFormatR8Unorm
)

// String returns a human-readable name for the format.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8Unorm:
		return "RGBA8Unorm"
	case TextureFormatBGRA8Unorm:
		return "BGRA8Unorm"
	case TextureFormatR8Unorm:
		return "R8Unorm"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// BytesPerPixel returns the number of bytes per texel for the format.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureFormatR8Unorm:
		return 1
	default:
		return 4
	}
}

// TextureUsage is a set of ways a surface may be used.
type TextureUsage uint8

const (
	// UsageKernelRead allows kernels to read the surface.
	UsageKernelRead TextureUsage = 1 << iota
	// UsageKernelWrite allows kernels to write the surface.
	UsageKernelWrite
	// UsageCopySrc allows copies out of the surface.
	UsageCopySrc
	// UsageCopyDst allows uploads and copies into the surface.
	UsageCopyDst
)

// UsageKernelReadWrite is the usage every pipeline texture gets.
const UsageKernelReadWrite = UsageKernelRead | UsageKernelWrite | UsageCopySrc | UsageCopyDst

// Has reports whether all bits of other are set.
func (u TextureUsage) Has(other TextureUsage) bool { return u&other == other }

func (u TextureUsage) String() string {
	var parts []string
	for _, b := range []struct {
		bit  TextureUsage
		name string
	}{
		{UsageKernelRead, "KernelRead"},
		{UsageKernelWrite, "KernelWrite"},
		{UsageCopySrc, "CopySrc"},
		{UsageCopyDst, "CopyDst"},
	} {
		if u&b.bit != 0 {
			parts = append(parts, b.name)
		}
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, "|")
}

// TextureResource is a device-resident 2D RGBA8 surface. Its dimensions
// are fixed at creation; content is replaced in full by Upload and read in
// full by a readback.
type TextureResource struct {
	mu       sync.Mutex
	dc       *DeviceContext
	surface  Surface
	label    string
	width    uint32
	height   uint32
	format   TextureFormat
	usage    TextureUsage
	released bool
}

// CreateTexture allocates an uninitialized surface on the device.
// Width and height must be positive and the format must be RGBA8Unorm.
func CreateTexture(dc *DeviceContext, label string, width, height uint32, format TextureFormat, usage TextureUsage) (*TextureResource, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: texture %dx%d", ErrInvalidDimensions, width, height)
	}
	if format != TextureFormatRGBA8Unorm {
		return nil, &FormatMismatchError{Expected: TextureFormatRGBA8Unorm, Actual: format}
	}

	dev, err := dc.device()
	if err != nil {
		return nil, err
	}

	size := uint64(width) * uint64(height) * uint64(format.BytesPerPixel())
	if err := dc.reserve(kindSurface, size); err != nil {
		return nil, err
	}

	s, err := dev.CreateSurface(&SurfaceDescriptor{
		Label:  label,
		Width:  width,
		Height: height,
		Format: format,
		Usage:  usage,
	})
	if err != nil {
		dc.unreserve(kindSurface, size)
		return nil, fmt.Errorf("compute: create texture %q: %w", label, err)
	}

	slogger().Debug("compute: texture created", "label", label, "width", width, "height", height, "bytes", size)

	return &TextureResource{
		dc:      dc,
		surface: s,
		label:   label,
		width:   width,
		height:  height,
		format:  format,
		usage:   usage,
	}, nil
}

// CreateLike creates an independent, uninitialized texture with the same
// dimensions, format and usage as other.
func CreateLike(other *TextureResource, label string) (*TextureResource, error) {
	return CreateTexture(other.dc, label, other.width, other.height, other.format, other.usage)
}

// Upload replaces the texture contents with pix, which must hold exactly
// width*height*4 bytes in row-major order with row pitch width*4.
func (t *TextureResource) Upload(pix []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.released {
		return ErrResourceReleased
	}
	if !t.usage.Has(UsageCopyDst) {
		return fmt.Errorf("compute: texture %q: upload requires %s usage, have %s", t.label, UsageCopyDst, t.usage)
	}
	if want := t.ByteSize(); len(pix) != want {
		return &SizeMismatchError{What: "upload", Expected: want, Actual: len(pix)}
	}

	dev, err := t.dc.device()
	if err != nil {
		return err
	}
	if err := dev.WriteSurface(t.surface, pix, t.RowPitch()); err != nil {
		return fmt.Errorf("compute: upload %q: %w", t.label, err)
	}
	return nil
}

// Width returns the texture width in texels.
func (t *TextureResource) Width() uint32 { return t.width }

// Height returns the texture height in texels.
func (t *TextureResource) Height() uint32 { return t.height }

// Format returns the texel format.
func (t *TextureResource) Format() TextureFormat { return t.format }

// Usage returns the usage flags.
func (t *TextureResource) Usage() TextureUsage { return t.usage }

// Label returns the debug label.
func (t *TextureResource) Label() string { return t.label }

// RowPitch returns the tight row pitch in bytes.
func (t *TextureResource) RowPitch() uint32 {
	return t.width * uint32(t.format.BytesPerPixel())
}

// ByteSize returns the tight size of the texture contents in bytes.
func (t *TextureResource) ByteSize() int {
	return int(t.RowPitch()) * int(t.height)
}

// Released reports whether Release has been called.
func (t *TextureResource) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

// Release destroys the surface. Release is safe to call multiple times.
func (t *TextureResource) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.released {
		return
	}
	t.released = true
	t.surface.Destroy()
	t.dc.unreserve(kindSurface, uint64(t.ByteSize()))
}

// handle returns the backend surface, checking it may still be used with dc.
func (t *TextureResource) handle(dc *DeviceContext) (Surface, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.released {
		return nil, fmt.Errorf("%w: texture %q", ErrResourceReleased, t.label)
	}
	if t.dc != dc {
		return nil, fmt.Errorf("%w: texture %q", ErrForeignResource, t.label)
	}
	return t.surface, nil
}
