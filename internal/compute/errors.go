// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compute

import (
	"errors"
	"fmt"
	"strings"
)

// Errors.
var (
	// ErrNoDevice is returned when no compute-capable device can be acquired.
	// Nothing has been allocated when it is returned.
	ErrNoDevice = errors.New("compute: no compute-capable device available")

	// ErrInvalidDimensions is returned for zero width, height or tile width.
	ErrInvalidDimensions = errors.New("compute: dimensions must be positive")

	// ErrDeviceClosed is returned when operating on a closed DeviceContext.
	ErrDeviceClosed = errors.New("compute: device context closed")

	// ErrResourceReleased is returned when a texture or buffer is used after release.
	ErrResourceReleased = errors.New("compute: resource already released")

	// ErrMemoryBudgetExceeded is returned when an allocation would exceed
	// the DeviceContext memory budget.
	ErrMemoryBudgetExceeded = errors.New("compute: memory budget exceeded")

	// ErrGridTooLarge is matched by every GridTooLargeError.
	ErrGridTooLarge = errors.New("compute: dispatch grid exceeds device limits")

	// ErrForeignResource is returned when a resource created by one
	// DeviceContext is used with another.
	ErrForeignResource = errors.New("compute: resource belongs to another device")
)

// BackendNotFoundError indicates a named backend is not registered.
type BackendNotFoundError struct {
	Name string
}

func (e *BackendNotFoundError) Error() string {
	return "compute: backend not found: " + e.Name
}

// BackendUnavailableError indicates a backend is registered but cannot
// run on this system.
type BackendUnavailableError struct {
	Name string
}

func (e *BackendUnavailableError) Error() string {
	return "compute: backend unavailable: " + e.Name
}

// NoDeviceError reports that no backend produced a usable device.
// It matches ErrNoDevice with errors.Is; Err is the last backend failure,
// if any backend was tried at all.
type NoDeviceError struct {
	Tried []string
	Err   error
}

func (e *NoDeviceError) Error() string {
	msg := ErrNoDevice.Error()
	if len(e.Tried) > 0 {
		msg += " (tried " + strings.Join(e.Tried, ", ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NoDeviceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNoDevice}
	}
	return []error{ErrNoDevice, e.Err}
}

// CompileError reports that kernel source failed to compile.
// Diagnostics holds the compiler messages verbatim.
type CompileError struct {
	Label       string
	Diagnostics []string
}

func (e *CompileError) Error() string {
	msg := "compute: compile failed"
	if e.Label != "" {
		msg += " (" + e.Label + ")"
	}
	if len(e.Diagnostics) > 0 {
		msg += ": " + strings.Join(e.Diagnostics, "; ")
	}
	return msg
}

// EntryPointNotFoundError reports a kernel entry point missing from a
// compiled program.
type EntryPointNotFoundError struct {
	Name      string
	Available []string
}

func (e *EntryPointNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("compute: entry point %q not found", e.Name)
	}
	return fmt.Sprintf("compute: entry point %q not found (have %s)", e.Name, strings.Join(e.Available, ", "))
}

// SizeMismatchError reports a byte length or extent that disagrees with
// the dimensions of the resource it is paired with.
type SizeMismatchError struct {
	What     string
	Expected int
	Actual   int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("compute: %s size mismatch: expected %d, got %d", e.What, e.Expected, e.Actual)
}

// FormatMismatchError reports a texture format other than the one required.
type FormatMismatchError struct {
	Expected TextureFormat
	Actual   TextureFormat
}

func (e *FormatMismatchError) Error() string {
	return fmt.Sprintf("compute: format mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// GridTooLargeError reports a dispatch needing more groups along an axis
// than a device accepts.
type GridTooLargeError struct {
	GroupCount Size3
	Limit      uint32
}

func (e *GridTooLargeError) Error() string {
	return fmt.Sprintf("compute: dispatch of %dx%dx%d groups exceeds %d per dimension",
		e.GroupCount.X, e.GroupCount.Y, e.GroupCount.Z, e.Limit)
}

func (e *GridTooLargeError) Is(target error) bool { return target == ErrGridTooLarge }

// StateError reports a ComputeJob operation called in the wrong state.
type StateError struct {
	Op    string
	State JobState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("compute: %s not allowed in state %s", e.Op, e.State)
}

// DeviceError wraps a backend failure during submission or synchronization.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return "compute: device " + e.Op + ": " + e.Err.Error()
}

func (e *DeviceError) Unwrap() error { return e.Err }
