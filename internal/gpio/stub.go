//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errPlatform = errors.New("gpio: not supported on this platform (requires Linux)")

// RealButtons is not available on non-Linux platforms.
type RealButtons struct{}

// NewRealButtons returns an error on non-Linux platforms.
func NewRealButtons(chipName string, pinHeard, pinNoSound int) (*RealButtons, error) {
	return nil, errPlatform
}

// Read is not implemented on non-Linux platforms.
func (r *RealButtons) Read() (bool, bool, error) {
	return false, false, errPlatform
}

// Close is not implemented on non-Linux platforms.
func (r *RealButtons) Close() error {
	return nil
}

// RealHaptic is not available on non-Linux platforms.
type RealHaptic struct{}

// NewRealHaptic returns an error on non-Linux platforms.
func NewRealHaptic(chipName string, pin int) (*RealHaptic, error) {
	return nil, errPlatform
}

// Pulse is not implemented on non-Linux platforms.
func (h *RealHaptic) Pulse(time.Duration) error {
	return errPlatform
}

// Close is not implemented on non-Linux platforms.
func (h *RealHaptic) Close() error {
	return nil
}
