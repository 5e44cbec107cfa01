// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package native

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// ErrNilProvider is returned when a nil DeviceProvider is passed.
var ErrNilProvider = errors.New("native: nil DeviceProvider")

// halProvider is implemented by providers that expose their hal objects.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// FromProvider shares the GPU device of a host application. The provider
// must also implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. The returned Device never destroys the
// shared device.
func FromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("native: provider %T does not expose HAL types", provider)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("native: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("native: provider HalQueue is not hal.Queue")
	}
	return Wrap(device, queue, "shared device"), nil
}
