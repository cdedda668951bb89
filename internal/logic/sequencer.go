package logic

import (
	"fmt"
	"time"
)

// Probe is one self-contained hardware test.
type Probe interface {
	// Step returns the sequence position the probe occupies.
	Step() Step
	// Source returns the input stream the probe listens to.
	Source() Source
	// Start arms the probe. Called once, when it becomes active.
	Start(now time.Time)
	// Process handles one input from the probe's source, or a tick.
	Process(in Input) []Event
	// Done reports whether the probe has finished.
	Done() bool
	// Abort resolves every still-pending test with st and finishes the probe.
	Abort(st Status, at time.Time) []Event
	// Stop releases devices and listeners. Safe to call more than once.
	Stop() error
}

// Devices are the audio endpoints handed to the audio probe. A nil device is
// treated as unavailable.
type Devices struct {
	Recorder Recorder
	Player   Player
}

// Sequencer advances a session through the probe sequence, one active probe
// at a time. A failed result still advances; failures are recorded, not blocking.
type Sequencer struct {
	session *Session
	cfg     Config
	devices Devices
	probes  []Probe

	started         bool
	activeSince     time.Time
	sawSample       bool
	transientErrors int
}

// NewSequencer creates a sequencer over session. Call Start to arm the first probe.
func NewSequencer(session *Session, cfg Config, devices Devices) *Sequencer {
	q := &Sequencer{
		session: session,
		cfg:     cfg,
		devices: devices,
	}
	q.probes = q.buildProbes()
	return q
}

func (q *Sequencer) buildProbes() []Probe {
	s := q.session
	return []Probe{
		newTouchProbe(q.cfg, s.Handle(TestTouchscreen)),
		newAudioProbe(q.cfg, s.Handle(TestMicrophone), s.Handle(TestSpeaker), q.devices),
		newMotionProbe(q.cfg, s.Handle(TestGyroscope)),
		newLightProbe(q.cfg, s.Handle(TestProximity)),
	}
}

// Session returns the session being driven.
func (q *Sequencer) Session() *Session {
	return q.session
}

// Start arms the probe at the current step. Calling it again is a no-op.
func (q *Sequencer) Start(now time.Time) []Event {
	if q.started {
		return nil
	}
	q.started = true
	if q.session.Complete() {
		return []Event{{Timestamp: now, Type: EventDone, Step: StepDone}}
	}
	return q.startActive(now)
}

func (q *Sequencer) startActive(now time.Time) []Event {
	p := q.probes[q.session.StepIndex()]
	q.activeSince = now
	q.sawSample = false
	q.transientErrors = 0
	p.Start(now)
	return []Event{{Timestamp: now, Type: EventStep, Step: p.Step()}}
}

// Active returns the active probe's step and source. After the last probe
// it returns StepDone and SourceNone.
func (q *Sequencer) Active() (Step, Source) {
	if !q.started || q.session.Complete() {
		return q.session.Step(), SourceNone
	}
	p := q.probes[q.session.StepIndex()]
	return p.Step(), p.Source()
}

// Process routes one input to the active probe and advances when it finishes.
// Inputs for any other source are dropped, so a stale listener cannot touch
// results it no longer owns.
func (q *Sequencer) Process(in Input) []Event {
	if !q.started || q.session.Complete() {
		return nil
	}
	p := q.probes[q.session.StepIndex()]
	if in.Kind != InputTick && in.Source() != p.Source() {
		return nil
	}

	var events []Event
	switch in.outcome() {
	case OutcomeUnavailable:
		events = p.Abort(StatusUnavailable, in.Time)
	case OutcomeTransientError:
		events = []Event{{Timestamp: in.Time, Type: EventTransientError, Message: errMessage(in.Err)}}
	default:
		if in.Kind != InputTick {
			q.sawSample = true
		}
		events = p.Process(in)
	}

	if n := countType(events, EventTransientError); n > 0 {
		q.transientErrors += n
		if q.transientErrors >= q.cfg.TransientErrorLimit && !p.Done() {
			events = append(events, p.Abort(StatusError, in.Time)...)
		}
	} else if in.Kind != InputTick {
		q.transientErrors = 0
	}

	if !p.Done() && q.watchdogExpired(p, in.Time) {
		events = append(events, p.Abort(StatusUnavailable, in.Time)...)
	}

	for i := range events {
		if events[i].Step == "" {
			events[i].Step = p.Step()
		}
	}

	if p.Done() {
		events = append(events, q.advance(p, in.Time)...)
	}
	return events
}

// watchdogExpired reports whether a sensor-driven probe has gone without any
// good sample for SensorTimeout.
func (q *Sequencer) watchdogExpired(p Probe, now time.Time) bool {
	if q.cfg.SensorTimeout <= 0 || q.sawSample {
		return false
	}
	switch p.Source() {
	case SourceOrientation, SourceLight:
		return now.Sub(q.activeSince) >= q.cfg.SensorTimeout
	}
	return false
}

func (q *Sequencer) advance(p Probe, now time.Time) []Event {
	var events []Event
	if err := p.Stop(); err != nil {
		events = append(events, Event{
			Timestamp: now,
			Type:      EventTransientError,
			Step:      p.Step(),
			Message:   fmt.Sprintf("teardown: %v", err),
		})
	}
	q.session.advance()
	if q.session.Complete() {
		return append(events, Event{Timestamp: now, Type: EventDone, Step: StepDone})
	}
	return append(events, q.startActive(now)...)
}

// Reset tears down the active probe, returns the session to its defaults and
// starts again from the first probe.
func (q *Sequencer) Reset(now time.Time) []Event {
	events := []Event{{Timestamp: now, Type: EventReset, Step: q.session.Step()}}
	if err := q.Stop(); err != nil {
		events = append(events, Event{Timestamp: now, Type: EventTransientError, Message: fmt.Sprintf("teardown: %v", err)})
	}
	q.session.Reset()
	q.probes = q.buildProbes()
	q.started = false
	return append(events, q.Start(now)...)
}

// Stop tears down the active probe without recording anything.
func (q *Sequencer) Stop() error {
	if !q.started || q.session.Complete() {
		return nil
	}
	return q.probes[q.session.StepIndex()].Stop()
}

func countType(events []Event, t EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func errMessage(err error) string {
	if err == nil {
		return "transient error"
	}
	return err.Error()
}

// abortHandles resolves every pending handle with st.
func abortHandles(st Status, at time.Time, handles ...Handle) []Event {
	var events []Event
	for _, h := range handles {
		if ev, ok := h.Resolve(st, at); ok {
			events = append(events, ev)
		}
	}
	return events
}
