// Package logic contains the pure diagnostic state machine: the session store,
// the probe sequencer and the four hardware probes.
// This package has NO external dependencies (no sysfs, MQTT, audio or time.Sleep).
// Time is always injectable via time.Time fields, and devices are reached
// only through the Recorder and Player interfaces.
package logic

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// TestName identifies one diagnostic result slot.
type TestName string

const (
	TestTouchscreen TestName = "touchscreen"
	TestMicrophone  TestName = "microphone"
	TestSpeaker     TestName = "speaker"
	TestGyroscope   TestName = "gyroscope"
	TestProximity   TestName = "proximity"
)

// AllTests lists every result slot in export order.
var AllTests = []TestName{TestTouchscreen, TestMicrophone, TestSpeaker, TestGyroscope, TestProximity}

// Status is the state of a single test result.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusPassed      Status = "PASSED"
	StatusFailed      Status = "FAILED"
	StatusUnavailable Status = "UNAVAILABLE" // hardware or permission missing
	StatusError       Status = "ERROR"       // repeated transient I/O failures
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPassed, StatusFailed, StatusUnavailable, StatusError:
		return true
	}
	return false
}

// Resolved reports whether s is terminal.
func (s Status) Resolved() bool {
	return s.Valid() && s != StatusPending
}

// Step is one position in the probe sequence.
type Step string

const (
	StepTouchscreen Step = "Touchscreen"
	StepAudio       Step = "Audio"
	StepMotion      Step = "Motion"
	StepLight       Step = "Light"
	StepDone        Step = "Done"
)

// Steps is the fixed probe order.
var Steps = []Step{StepTouchscreen, StepAudio, StepMotion, StepLight}

// Hardware is the device identity captured at session start.
type Hardware struct {
	Brand            string
	Model            string
	RAMGB            float64
	OSVersion        string
	IsPhysicalDevice bool
}

// Unknown is the placeholder for hardware fields that could not be read.
const Unknown = "Unknown"

// Normalize fills unavailable fields with placeholders.
func (h Hardware) Normalize() Hardware {
	if h.Brand == "" {
		h.Brand = Unknown
	}
	if h.Model == "" {
		h.Model = Unknown
	}
	if h.OSVersion == "" {
		h.OSVersion = Unknown
	}
	if h.RAMGB <= 0 || math.IsNaN(h.RAMGB) || math.IsInf(h.RAMGB, 0) {
		h.RAMGB = 0
	}
	return h
}

// Source names the input stream a probe subscribes to.
type Source string

const (
	SourceNone        Source = ""
	SourcePointer     Source = "pointer"
	SourceAudio       Source = "audio"
	SourceOrientation Source = "orientation"
	SourceLight       Source = "light"
)

// Outcome tags how a sensor or device operation went.
type Outcome string

const (
	OutcomeOK             Outcome = "OK"
	OutcomeUnavailable    Outcome = "UNAVAILABLE"
	OutcomeTransientError Outcome = "TRANSIENT_ERROR"
)

// ErrUnavailable marks a device or sensor that does not exist or cannot be
// opened. Device implementations wrap it; everything else is transient.
var ErrUnavailable = errors.New("device unavailable")

// ErrAlreadyResolved is returned when writing over a resolved result.
var ErrAlreadyResolved = errors.New("result already resolved")

// OutcomeOf classifies a device error.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeTransientError
	}
}

// InputKind discriminates the payload carried by an Input.
type InputKind string

const (
	InputTick        InputKind = "TICK"
	InputLayout      InputKind = "LAYOUT"
	InputPointer     InputKind = "POINTER"
	InputOrientation InputKind = "ORIENTATION"
	InputIlluminance InputKind = "ILLUMINANCE"
	InputAction      InputKind = "ACTION"
)

// Action is a user request delivered to the audio probe.
type Action string

const (
	ActionRecordStart Action = "record-start"
	ActionRecordStop  Action = "record-stop"
	ActionPlay        Action = "play"
	ActionHeard       Action = "heard"
	ActionNoSound     Action = "no-sound"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionRecordStart, ActionRecordStop, ActionPlay, ActionHeard, ActionNoSound:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Layout is the on-screen placement of the touch grid.
type Layout struct {
	X, Y          float64
	Width, Height float64
}

// Validate rejects layouts that cannot be mapped to cells.
func (l Layout) Validate() error {
	for _, v := range []float64{l.X, l.Y, l.Width, l.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("layout: non-finite value")
		}
	}
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("layout: non-positive size %vx%v", l.Width, l.Height)
	}
	return nil
}

// PointerPhase is the kind of pointer event.
type PointerPhase string

const (
	PointerDown PointerPhase = "down"
	PointerMove PointerPhase = "move"
)

// PointerEvent is a validated screen-space pointer position.
type PointerEvent struct {
	Phase PointerPhase
	X, Y  float64
}

// NewPointerEvent builds a PointerEvent, rejecting malformed payloads.
func NewPointerEvent(phase string, x, y float64) (PointerEvent, error) {
	p := PointerPhase(phase)
	if p != PointerDown && p != PointerMove {
		return PointerEvent{}, fmt.Errorf("pointer: unknown phase %q", phase)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return PointerEvent{}, errors.New("pointer: non-finite coordinate")
	}
	return PointerEvent{Phase: p, X: x, Y: y}, nil
}

// Orientation is a normalized lateral-axis reading (1.0 = 1 g).
type Orientation struct {
	X float64
	Y float64
}

// Input is a single sample or user request fed to the sequencer.
type Input struct {
	Kind    InputKind
	Time    time.Time
	Outcome Outcome // zero value treated as OutcomeOK
	Err     error   // set with a non-OK Outcome

	Layout      Layout
	Pointer     PointerEvent
	Orientation Orientation
	Lux         float64
	Action      Action
}

// Source returns the stream the input belongs to.
func (in Input) Source() Source {
	switch in.Kind {
	case InputLayout, InputPointer:
		return SourcePointer
	case InputOrientation:
		return SourceOrientation
	case InputIlluminance:
		return SourceLight
	case InputAction:
		return SourceAudio
	}
	return SourceNone
}

func (in Input) outcome() Outcome {
	if in.Outcome == "" {
		return OutcomeOK
	}
	return in.Outcome
}

// EventType classifies events emitted by the sequencer.
type EventType string

const (
	EventResult         EventType = "RESULT"
	EventStep           EventType = "STEP"
	EventDone           EventType = "DONE"
	EventReset          EventType = "RESET"
	EventCellVisited    EventType = "CELL_VISITED"
	EventMicRetry       EventType = "MIC_RETRY"
	EventRejected       EventType = "REJECTED"
	EventTransientError EventType = "TRANSIENT_ERROR"
)

// Event is something the outer loop may log, publish or act on.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Step      Step
	Test      TestName
	Status    Status
	Cell      Cell
	Message   string
}

// Cell is a (row, col) grid coordinate.
type Cell struct {
	Row int
	Col int
}
