package sensor

import (
	"fmt"

	"github.com/sweeney/phone-diagnostics/internal/logic"
)

// MissingOrientation stands in for an accelerometer that could not be opened.
// Every Read reports the sensor as unavailable.
type MissingOrientation struct {
	Cause error
}

// Read always fails with an error wrapping logic.ErrUnavailable.
func (m MissingOrientation) Read() (logic.Orientation, error) {
	return logic.Orientation{}, unavailable("orientation", m.Cause)
}

// Close does nothing.
func (m MissingOrientation) Close() error { return nil }

// MissingLight stands in for a light sensor that could not be opened.
type MissingLight struct {
	Cause error
}

// Read always fails with an error wrapping logic.ErrUnavailable.
func (m MissingLight) Read() (float64, error) {
	return 0, unavailable("light", m.Cause)
}

// Close does nothing.
func (m MissingLight) Close() error { return nil }

func unavailable(kind string, cause error) error {
	if cause == nil {
		return fmt.Errorf("sensor: %s: %w", kind, logic.ErrUnavailable)
	}
	return fmt.Errorf("sensor: %s: %v: %w", kind, cause, logic.ErrUnavailable)
}
