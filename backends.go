//go:build !nogpu

package pixelsort

import (
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/pixelsort/internal/compute"
	"github.com/gogpu/pixelsort/internal/compute/native"

	// Register the CPU backend.
	_ "github.com/gogpu/pixelsort/internal/compute/software"
)

func deviceFromProvider(p gpucontext.DeviceProvider) (compute.Device, error) {
	dev, err := native.FromProvider(p)
	if err != nil {
		return nil, err
	}
	return dev, nil
}
