//go:build !linux

package threadpool

import (
	"errors"
)

var errPinUnsupported = errors.New("threadpool: cpu pinning is only supported on linux")

// PinToCPU is not available on this platform.
func PinToCPU(cpu int) error {
	return errPinUnsupported
}
