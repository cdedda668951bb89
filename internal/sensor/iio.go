package sensor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sweeney/phone-diagnostics/internal/logic"
)

// findDevice returns the first iio:device directory under root that exposes
// any of the given attributes.
func findDevice(root string, attrs ...string) (string, error) {
	dirs, err := filepath.Glob(filepath.Join(root, "iio:device*"))
	if err != nil {
		return "", fmt.Errorf("sensor: scan %s: %w", root, err)
	}
	sort.Strings(dirs)
	for _, dir := range dirs {
		for _, attr := range attrs {
			if _, err := os.Stat(filepath.Join(dir, attr)); err == nil {
				return dir, nil
			}
		}
	}
	return "", fmt.Errorf("sensor: no device with %s under %s: %w", attrs[0], root, logic.ErrUnavailable)
}

// readFloat reads a single numeric sysfs attribute.
// A vanished file maps to ErrUnavailable; anything else is a transient read failure.
func readFloat(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return 0, fmt.Errorf("sensor: read %s: %w", path, logic.ErrUnavailable)
		}
		return 0, fmt.Errorf("sensor: read %s: %w", path, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("sensor: parse %s: %w", path, err)
	}
	return v, nil
}

// readScale reads an optional scale attribute, defaulting to 1.
func readScale(path string) (float64, error) {
	if _, err := os.Stat(path); err != nil {
		return 1, nil
	}
	return readFloat(path)
}

// IIOAccelerometer reads tilt from an IIO accelerometer.
type IIOAccelerometer struct {
	dir   string
	scale float64
}

// NewIIOAccelerometer locates an accelerometer under root.
func NewIIOAccelerometer(root string) (*IIOAccelerometer, error) {
	dir, err := findDevice(root, "in_accel_x_raw")
	if err != nil {
		return nil, err
	}
	scale, err := readScale(filepath.Join(dir, "in_accel_scale"))
	if err != nil {
		return nil, err
	}
	return &IIOAccelerometer{dir: dir, scale: scale}, nil
}

// Read returns the X and Y acceleration in g.
func (a *IIOAccelerometer) Read() (logic.Orientation, error) {
	x, err := readFloat(filepath.Join(a.dir, "in_accel_x_raw"))
	if err != nil {
		return logic.Orientation{}, err
	}
	y, err := readFloat(filepath.Join(a.dir, "in_accel_y_raw"))
	if err != nil {
		return logic.Orientation{}, err
	}
	return logic.Orientation{
		X: x * a.scale / StandardGravity,
		Y: y * a.scale / StandardGravity,
	}, nil
}

// Close is a no-op; sysfs attributes are opened per read.
func (a *IIOAccelerometer) Close() error {
	return nil
}

// IIOLight reads illuminance from an IIO light sensor.
// Drivers expose either a processed in_illuminance_input or a raw value with a scale.
type IIOLight struct {
	path  string
	scale float64
}

// NewIIOLight locates a light sensor under root.
func NewIIOLight(root string) (*IIOLight, error) {
	dir, err := findDevice(root, "in_illuminance_input", "in_illuminance_raw")
	if err != nil {
		return nil, err
	}
	input := filepath.Join(dir, "in_illuminance_input")
	if _, err := os.Stat(input); err == nil {
		return &IIOLight{path: input, scale: 1}, nil
	}
	scale, err := readScale(filepath.Join(dir, "in_illuminance_scale"))
	if err != nil {
		return nil, err
	}
	return &IIOLight{path: filepath.Join(dir, "in_illuminance_raw"), scale: scale}, nil
}

// Read returns illuminance in lux.
func (l *IIOLight) Read() (float64, error) {
	v, err := readFloat(l.path)
	if err != nil {
		return 0, err
	}
	return v * l.scale, nil
}

// Close is a no-op; sysfs attributes are opened per read.
func (l *IIOLight) Close() error {
	return nil
}
