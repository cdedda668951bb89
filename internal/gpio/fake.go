package gpio

import (
	"errors"
	"sync"
	"time"
)

// ButtonSample is a single scripted reading of both buttons (already in logical form).
type ButtonSample struct {
	Heard   bool // true = pressed
	NoSound bool
}

// FakeButtons is a test double that returns scripted button states.
type FakeButtons struct {
	// Samples contains scripted values to return.
	// Each call to Read() consumes the next sample.
	Samples []ButtonSample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeButtons creates a FakeButtons with the given samples.
func NewFakeButtons(samples []ButtonSample) *FakeButtons {
	return &FakeButtons{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeButtons) Read() (bool, bool, error) {
	if f.ReadError != nil {
		return false, false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, false, errors.New("no samples configured")
	}

	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s.Heard, s.NoSound, nil
}

// Close marks the reader as closed.
func (f *FakeButtons) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds to the first sample.
func (f *FakeButtons) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeHaptic records pulses.
type FakeHaptic struct {
	mu sync.Mutex

	// Pulses contains the duration of every Pulse call.
	Pulses []time.Duration

	// PulseError, if set, will be returned by Pulse.
	PulseError error

	Closed bool
}

// Pulse records d.
func (f *FakeHaptic) Pulse(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PulseError != nil {
		return f.PulseError
	}
	f.Pulses = append(f.Pulses, d)
	return nil
}

// Count returns the number of recorded pulses.
func (f *FakeHaptic) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Pulses)
}

// Close marks the motor as closed.
func (f *FakeHaptic) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
