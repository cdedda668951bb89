package sensor

import (
	"errors"

	"github.com/sweeney/phone-diagnostics/internal/logic"
)

// FakeOrientation is a test double that returns scripted tilt readings.
type FakeOrientation struct {
	// Samples contains scripted readings. Each call to Read consumes the next
	// sample; once exhausted the last one repeats.
	Samples []logic.Orientation

	index int

	// Closed tracks if Close was called.
	Closed bool

	// ReadError, if set, will be returned by Read.
	ReadError error
}

// NewFakeOrientation creates a FakeOrientation with the given samples.
func NewFakeOrientation(samples ...logic.Orientation) *FakeOrientation {
	return &FakeOrientation{Samples: samples}
}

// Read returns the next scripted sample.
func (f *FakeOrientation) Read() (logic.Orientation, error) {
	if f.ReadError != nil {
		return logic.Orientation{}, f.ReadError
	}
	if len(f.Samples) == 0 {
		return logic.Orientation{}, errors.New("no samples configured")
	}
	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s, nil
}

// Close marks the reader as closed.
func (f *FakeOrientation) Close() error {
	f.Closed = true
	return nil
}

// FakeLight is a test double that returns scripted lux readings.
type FakeLight struct {
	Samples   []float64
	index     int
	Closed    bool
	ReadError error
}

// NewFakeLight creates a FakeLight with the given samples.
func NewFakeLight(samples ...float64) *FakeLight {
	return &FakeLight{Samples: samples}
}

// Read returns the next scripted sample, repeating the last once exhausted.
func (f *FakeLight) Read() (float64, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}
	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s, nil
}

// Close marks the reader as closed.
func (f *FakeLight) Close() error {
	f.Closed = true
	return nil
}
