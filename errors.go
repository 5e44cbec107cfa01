package pixelsort

import (
	"errors"

	"github.com/gogpu/pixelsort/internal/compute"
)

// Errors.
var (
	// ErrNoDevice is matched by every NoDeviceError.
	ErrNoDevice = compute.ErrNoDevice

	// ErrInvalidDimensions is returned for zero width, height or tile width.
	ErrInvalidDimensions = compute.ErrInvalidDimensions

	// ErrMemoryBudgetExceeded is returned when a run would exceed WithMemoryBudget.
	ErrMemoryBudgetExceeded = compute.ErrMemoryBudgetExceeded

	// ErrGridTooLarge is returned for images needing more dispatch groups
	// along an axis than a device accepts.
	ErrGridTooLarge = compute.ErrGridTooLarge

	// ErrClosed is returned by a Sorter after Close.
	ErrClosed = errors.New("pixelsort: sorter closed")

	// ErrUnsupportedFormat is returned when an output file extension has no encoder.
	ErrUnsupportedFormat = errors.New("pixelsort: unsupported image format")
)

// Device and kernel errors, shared with the compute layer.
type (
	// NoDeviceError reports that no compute-capable device was found.
	NoDeviceError = compute.NoDeviceError

	// BackendNotFoundError reports an unknown backend name.
	BackendNotFoundError = compute.BackendNotFoundError

	// CompileError reports kernel source that failed to compile.
	CompileError = compute.CompileError

	// EntryPointNotFoundError reports a missing kernel entry point.
	EntryPointNotFoundError = compute.EntryPointNotFoundError

	// SizeMismatchError reports a length disagreeing with dimensions.
	SizeMismatchError = compute.SizeMismatchError

	// FormatMismatchError reports a texture format other than RGBA8Unorm.
	FormatMismatchError = compute.FormatMismatchError

	// GridTooLargeError reports an oversize dispatch grid.
	GridTooLargeError = compute.GridTooLargeError

	// DeviceError wraps a backend failure during submission or waiting.
	DeviceError = compute.DeviceError
)

// DecodeError reports an input image that could not be read or decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return "pixelsort: decode " + e.Path + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports an output image that could not be encoded or
// written. No partial file is left at Path.
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	return "pixelsort: encode " + e.Path + ": " + e.Err.Error()
}

func (e *EncodeError) Unwrap() error { return e.Err }
