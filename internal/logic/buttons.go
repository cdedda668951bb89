package logic

import "time"

// ButtonSample is a single reading of the two bench attestation buttons.
type ButtonSample struct {
	Heard   bool // true = pressed
	NoSound bool
	Time    time.Time
}

// buttonLine tracks debounce state for a single button.
type buttonLine struct {
	// Current stable (debounced) state
	stable bool
	// Pending state during debounce
	pending    bool
	hasPending bool
	// Time when pending state was first observed
	pendingSince time.Time
	// Whether we have established a baseline
	baselined bool
}

// ButtonDebouncer turns raw button samples into debounced press actions.
// A press is reported only on a released-to-pressed transition, after the
// line has been stable for the debounce duration. A button held down at
// startup is baselined as pressed and produces no action until released
// and pressed again.
type ButtonDebouncer struct {
	debounce time.Duration
	heard    buttonLine
	noSound  buttonLine
}

// NewButtonDebouncer creates a debouncer with the given debounce duration.
func NewButtonDebouncer(debounce time.Duration) *ButtonDebouncer {
	return &ButtonDebouncer{debounce: debounce}
}

// Process takes a new sample and returns an action input for each press.
// Order: heard first, then no-sound if both are pressed simultaneously.
func (d *ButtonDebouncer) Process(s ButtonSample) []Input {
	var out []Input
	if d.processLine(&d.heard, s.Heard, s.Time) {
		out = append(out, Input{Kind: InputAction, Time: s.Time, Action: ActionHeard})
	}
	if d.processLine(&d.noSound, s.NoSound, s.Time) {
		out = append(out, Input{Kind: InputAction, Time: s.Time, Action: ActionNoSound})
	}
	return out
}

// processLine handles debounce logic for a single button.
// Returns true if the button became pressed.
func (d *ButtonDebouncer) processLine(l *buttonLine, pressed bool, now time.Time) bool {
	if !l.baselined {
		if !l.hasPending || l.pending != pressed {
			// Start observing, or restart after a change during baseline
			l.pending = pressed
			l.hasPending = true
			l.pendingSince = now
			return false
		}
		if now.Sub(l.pendingSince) >= d.debounce {
			l.stable = pressed
			l.baselined = true
			l.hasPending = false
		}
		return false
	}

	if pressed == l.stable {
		l.hasPending = false
		return false
	}

	if !l.hasPending || l.pending != pressed {
		l.pending = pressed
		l.hasPending = true
		l.pendingSince = now
		return false
	}

	if now.Sub(l.pendingSince) >= d.debounce {
		l.stable = pressed
		l.hasPending = false
		return pressed
	}
	return false
}

// IsBaselined returns whether both buttons have a stable baseline.
func (d *ButtonDebouncer) IsBaselined() bool {
	return d.heard.baselined && d.noSound.baselined
}
