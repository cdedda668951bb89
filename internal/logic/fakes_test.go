package logic

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeRecorder counts device calls and returns scripted errors.
type fakeRecorder struct {
	starts, stops int
	startErr      error
	stopErr       error
}

func (r *fakeRecorder) Start() error {
	r.starts++
	return r.startErr
}

func (r *fakeRecorder) Stop() error {
	r.stops++
	return r.stopErr
}

type fakePlayer struct {
	plays, closes int
	playErr       error
}

func (p *fakePlayer) Play() error {
	p.plays++
	return p.playErr
}

func (p *fakePlayer) Close() error {
	p.closes++
	return nil
}

func at(d time.Duration) time.Time {
	return t0.Add(d)
}

func action(a Action, d time.Duration) Input {
	return Input{Kind: InputAction, Action: a, Time: at(d)}
}

func tick(d time.Duration) Input {
	return Input{Kind: InputTick, Time: at(d)}
}

func hasEvent(events []Event, typ EventType) bool {
	return countType(events, typ) > 0
}

// resultEvents returns the RESULT events keyed by test.
func resultEvents(events []Event) map[TestName]Status {
	out := map[TestName]Status{}
	for _, e := range events {
		if e.Type == EventResult {
			out[e.Test] = e.Status
		}
	}
	return out
}

func mustStatus(t *testing.T, s *Session, name TestName, want Status) {
	t.Helper()
	if got := s.Result(name); got != want {
		t.Errorf("%s: expected %s, got %s", name, want, got)
	}
}
