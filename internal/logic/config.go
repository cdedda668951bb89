package logic

import (
	"errors"
	"time"
)

// Config holds the probe thresholds. Zero values are not meaningful; start
// from DefaultConfig.
type Config struct {
	GridRows int
	GridCols int

	MicThreshold           time.Duration
	// MicAttempts is how many short recordings are allowed before the
	// microphone fails. With 1 a single short recording is FAILED.
	MicAttempts            int
	SpeakerAfterMicFailure bool

	SampleInterval time.Duration
	FlatTolerance  float64
	StableTarget   time.Duration

	BaselineDelay time.Duration
	DropRatio     float64

	// SensorTimeout bounds how long a sensor-driven probe waits for its
	// first good sample before resolving UNAVAILABLE. 0 disables it.
	SensorTimeout       time.Duration
	TransientErrorLimit int
}

// DefaultConfig returns the defaults used by the daemon.
func DefaultConfig() Config {
	return Config{
		GridRows:            6,
		GridCols:            3,
		MicThreshold:        time.Second,
		MicAttempts:         1,
		SampleInterval:      100 * time.Millisecond,
		FlatTolerance:       0.1,
		StableTarget:        3 * time.Second,
		BaselineDelay:       time.Second,
		DropRatio:           0.5,
		SensorTimeout:       10 * time.Second,
		TransientErrorLimit: 5,
	}
}

// Validate checks that the config can drive the probes.
func (c Config) Validate() error {
	switch {
	case c.GridRows <= 0 || c.GridCols <= 0:
		return errors.New("config: grid must have at least one cell")
	case c.MicThreshold <= 0:
		return errors.New("config: mic threshold must be positive")
	case c.MicAttempts <= 0:
		return errors.New("config: mic attempts must be positive")
	case c.SampleInterval <= 0:
		return errors.New("config: sample interval must be positive")
	case c.FlatTolerance <= 0:
		return errors.New("config: flat tolerance must be positive")
	case c.StableTarget <= 0:
		return errors.New("config: stable target must be positive")
	case c.BaselineDelay < 0:
		return errors.New("config: baseline delay must not be negative")
	case c.DropRatio <= 0 || c.DropRatio >= 1:
		return errors.New("config: drop ratio must be in (0, 1)")
	case c.SensorTimeout < 0:
		return errors.New("config: sensor timeout must not be negative")
	case c.TransientErrorLimit <= 0:
		return errors.New("config: transient error limit must be positive")
	}
	return nil
}
