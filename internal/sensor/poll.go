package sensor

import (
	"time"

	"github.com/sweeney/phone-diagnostics/internal/logic"
)

// PollOrientation reads r once and tags the result for the sequencer.
func PollOrientation(r OrientationReader, now time.Time) logic.Input {
	o, err := r.Read()
	return logic.Input{
		Kind:        logic.InputOrientation,
		Time:        now,
		Outcome:     logic.OutcomeOf(err),
		Err:         err,
		Orientation: o,
	}
}

// PollLight reads r once and tags the result for the sequencer.
func PollLight(r LightReader, now time.Time) logic.Input {
	lux, err := r.Read()
	return logic.Input{
		Kind:    logic.InputIlluminance,
		Time:    now,
		Outcome: logic.OutcomeOf(err),
		Err:     err,
		Lux:     lux,
	}
}
