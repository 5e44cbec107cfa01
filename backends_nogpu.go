//go:build nogpu

package pixelsort

import (
	"errors"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/pixelsort/internal/compute"

	// Register the CPU backend.
	_ "github.com/gogpu/pixelsort/internal/compute/software"
)

func deviceFromProvider(gpucontext.DeviceProvider) (compute.Device, error) {
	return nil, errors.New("pixelsort: built with nogpu, device providers are not supported")
}
