// Package gpio provides the bench attestation buttons and haptic output with
// hardware abstraction. The real implementation uses the Linux GPIO character
// device. The fake implementation allows testing without hardware.
package gpio

import "time"

// ButtonReader reads the two bench buttons used to attest speaker playback.
type ButtonReader interface {
	// Read returns the logical pressed states of the heard and no-sound buttons.
	// The lines are active low: raw 0 = pressed.
	Read() (heard bool, noSound bool, err error)

	// Close releases GPIO resources.
	Close() error
}

// Haptic drives a vibration motor.
type Haptic interface {
	// Pulse drives the motor for d without blocking the caller.
	Pulse(d time.Duration) error

	// Close releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	PinHeard   = 5  // heard button
	PinNoSound = 6  // no-sound button
	PinHaptic  = 13 // vibration motor driver
)

// DefaultChip is the GPIO character device the pins live on.
const DefaultChip = "gpiochip0"

// CellPulse is the haptic feedback length for a newly visited touch cell.
const CellPulse = 20 * time.Millisecond
