package logic

import (
	"math"
	"time"
)

// StabilityWindow accumulates contiguous in-tolerance time. A single
// out-of-tolerance sample discards all progress.
type StabilityWindow struct {
	elapsed time.Duration
	target  time.Duration
}

// NewStabilityWindow creates a window that fills at target.
func NewStabilityWindow(target time.Duration) *StabilityWindow {
	return &StabilityWindow{target: target}
}

// Add extends the window by step when stable, or resets it otherwise.
// It returns true once the window has reached its target.
func (w *StabilityWindow) Add(stable bool, step time.Duration) bool {
	if !stable {
		w.elapsed = 0
		return false
	}
	w.elapsed += step
	return w.elapsed >= w.target
}

// Elapsed returns the current contiguous stable duration.
func (w *StabilityWindow) Elapsed() time.Duration {
	return w.elapsed
}

type motionProbe struct {
	cfg    Config
	window *StabilityWindow
	handle Handle
	done   bool
}

func newMotionProbe(cfg Config, h Handle) *motionProbe {
	return &motionProbe{
		cfg:    cfg,
		window: NewStabilityWindow(cfg.StableTarget),
		handle: h,
	}
}

func (p *motionProbe) Step() Step      { return StepMotion }
func (p *motionProbe) Source() Source  { return SourceOrientation }
func (p *motionProbe) Start(time.Time) {}
func (p *motionProbe) Done() bool      { return p.done }
func (p *motionProbe) Stop() error     { return nil }

// flat reports whether both lateral axes are within tolerance of level.
func (p *motionProbe) flat(o Orientation) bool {
	return math.Abs(o.X) < p.cfg.FlatTolerance && math.Abs(o.Y) < p.cfg.FlatTolerance
}

func (p *motionProbe) Process(in Input) []Event {
	if p.done || in.Kind != InputOrientation {
		return nil
	}
	// Each sample stands for one sampling interval.
	if !p.window.Add(p.flat(in.Orientation), p.cfg.SampleInterval) {
		return nil
	}
	p.done = true
	if ev, ok := p.handle.Resolve(StatusPassed, in.Time); ok {
		return []Event{ev}
	}
	return nil
}

func (p *motionProbe) Abort(st Status, at time.Time) []Event {
	p.done = true
	return abortHandles(st, at, p.handle)
}
