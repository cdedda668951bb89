package logic

import (
	"errors"
	"fmt"
	"time"
)

// Session is the record of one diagnostic run: device identity, one result
// per test and the position in the probe sequence.
// Not safe for concurrent use; the event loop owns it.
type Session struct {
	hardware         Hardware
	hardwareCaptured bool
	results          map[TestName]Status
	stepIndex        int
}

// NewSession creates a session with placeholder hardware and every test PENDING.
func NewSession() *Session {
	s := &Session{}
	s.Reset()
	return s
}

// Reset returns every field to its initial default.
func (s *Session) Reset() {
	s.hardware = Hardware{}.Normalize()
	s.hardwareCaptured = false
	s.results = make(map[TestName]Status, len(AllTests))
	for _, name := range AllTests {
		s.results[name] = StatusPending
	}
	s.stepIndex = 0
}

// CaptureHardware records the device identity. It may be called once per
// session lifetime; the fields are immutable afterwards.
func (s *Session) CaptureHardware(h Hardware) error {
	if s.hardwareCaptured {
		return errors.New("session: hardware already captured")
	}
	s.hardware = h.Normalize()
	s.hardwareCaptured = true
	return nil
}

// Hardware returns the captured identity, or placeholders.
func (s *Session) Hardware() Hardware {
	return s.hardware
}

// Result returns the status of one test.
func (s *Session) Result(name TestName) Status {
	st, ok := s.results[name]
	if !ok {
		return StatusPending
	}
	return st
}

// Results returns a copy of all results.
func (s *Session) Results() map[TestName]Status {
	out := make(map[TestName]Status, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}

// StepIndex returns the position in the probe sequence.
func (s *Session) StepIndex() int {
	return s.stepIndex
}

// Step returns the current step, or StepDone once complete.
func (s *Session) Step() Step {
	if s.stepIndex >= len(Steps) {
		return StepDone
	}
	return Steps[s.stepIndex]
}

// Complete reports whether every step has been passed.
func (s *Session) Complete() bool {
	return s.stepIndex >= len(Steps)
}

func (s *Session) advance() {
	if s.stepIndex < len(Steps) {
		s.stepIndex++
	}
}

func (s *Session) record(name TestName, st Status) error {
	cur, ok := s.results[name]
	if !ok {
		return fmt.Errorf("session: unknown test %q", name)
	}
	if !st.Resolved() {
		return fmt.Errorf("session: %s is not a terminal status", st)
	}
	if cur.Resolved() {
		return fmt.Errorf("session: %s: %w", name, ErrAlreadyResolved)
	}
	s.results[name] = st
	return nil
}

// Handle returns a write handle scoped to a single test.
func (s *Session) Handle(name TestName) Handle {
	return Handle{session: s, name: name}
}

// Handle lets a probe read and resolve exactly one result slot.
type Handle struct {
	session *Session
	name    TestName
}

// Name returns the test the handle is scoped to.
func (h Handle) Name() TestName {
	return h.name
}

// Status returns the slot's current status.
func (h Handle) Status() Status {
	return h.session.Result(h.name)
}

// Resolved reports whether the slot holds a terminal status.
func (h Handle) Resolved() bool {
	return h.Status().Resolved()
}

// Resolve writes a terminal status. The second return is false if the slot
// was already resolved, in which case nothing changes.
func (h Handle) Resolve(st Status, at time.Time) (Event, bool) {
	if err := h.session.record(h.name, st); err != nil {
		return Event{}, false
	}
	return Event{Timestamp: at, Type: EventResult, Test: h.name, Status: st}, true
}
