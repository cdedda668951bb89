// Package sensor reads orientation and ambient light with hardware abstraction.
// The real implementation reads Linux IIO devices through sysfs.
// The fake implementation allows testing without hardware.
package sensor

import "github.com/sweeney/phone-diagnostics/internal/logic"

// OrientationReader reads the lateral tilt of the device.
type OrientationReader interface {
	// Read returns tilt on the X and Y axes in g, where (0, 0) is lying flat.
	// A missing sensor yields an error wrapping logic.ErrUnavailable.
	Read() (logic.Orientation, error)

	// Close releases sensor resources.
	Close() error
}

// LightReader reads ambient illuminance.
type LightReader interface {
	// Read returns illuminance in lux.
	// A missing sensor yields an error wrapping logic.ErrUnavailable.
	Read() (float64, error)

	// Close releases sensor resources.
	Close() error
}

// DefaultIIORoot is where the kernel exposes IIO devices.
const DefaultIIORoot = "/sys/bus/iio/devices"

// StandardGravity converts m/s² to g.
const StandardGravity = 9.80665
