//go:build !linux

package sensor

import "errors"

var errPlatform = errors.New("sensor: not supported on this platform (requires Linux)")

// NewOrientationReader returns a reader that always reports unavailable on non-Linux platforms.
func NewOrientationReader() (OrientationReader, error) {
	return MissingOrientation{Cause: errPlatform}, errPlatform
}

// NewLightReader returns a reader that always reports unavailable on non-Linux platforms.
func NewLightReader() (LightReader, error) {
	return MissingLight{Cause: errPlatform}, errPlatform
}
