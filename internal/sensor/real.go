//go:build linux

package sensor

// NewOrientationReader opens the first IIO accelerometer on the system.
// On failure the returned reader reports unavailable on every read.
func NewOrientationReader() (OrientationReader, error) {
	a, err := NewIIOAccelerometer(DefaultIIORoot)
	if err != nil {
		return MissingOrientation{Cause: err}, err
	}
	return a, nil
}

// NewLightReader opens the first IIO light sensor on the system.
// On failure the returned reader reports unavailable on every read.
func NewLightReader() (LightReader, error) {
	l, err := NewIIOLight(DefaultIIORoot)
	if err != nil {
		return MissingLight{Cause: err}, err
	}
	return l, nil
}
