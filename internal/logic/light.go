package logic

import (
	"math"
	"time"
)

// lightProbe detects a cover event: illuminance falling below a fraction of
// a baseline captured after the sensor has settled.
type lightProbe struct {
	cfg    Config
	handle Handle

	baselineAt time.Time
	baseline   float64
	baselined  bool

	done bool
}

func newLightProbe(cfg Config, h Handle) *lightProbe {
	return &lightProbe{cfg: cfg, handle: h}
}

func (p *lightProbe) Step() Step     { return StepLight }
func (p *lightProbe) Source() Source { return SourceLight }
func (p *lightProbe) Done() bool     { return p.done }
func (p *lightProbe) Stop() error    { return nil }

// Start schedules the baseline capture BaselineDelay after the probe starts.
func (p *lightProbe) Start(now time.Time) {
	p.baselineAt = now.Add(p.cfg.BaselineDelay)
}

// Baseline returns the captured baseline, if any.
func (p *lightProbe) Baseline() (float64, bool) {
	return p.baseline, p.baselined
}

func (p *lightProbe) Process(in Input) []Event {
	if p.done || in.Kind != InputIlluminance || math.IsNaN(in.Lux) {
		return nil
	}
	if !p.baselined {
		if in.Time.Before(p.baselineAt) {
			return nil
		}
		if in.Lux <= 0 {
			// A dark baseline cannot show a drop; try again later.
			p.baselineAt = in.Time.Add(p.cfg.BaselineDelay)
			return nil
		}
		p.baseline = in.Lux
		p.baselined = true
		return nil
	}
	if in.Lux >= p.cfg.DropRatio*p.baseline {
		return nil
	}
	p.done = true
	if ev, ok := p.handle.Resolve(StatusPassed, in.Time); ok {
		return []Event{ev}
	}
	return nil
}

func (p *lightProbe) Abort(st Status, at time.Time) []Event {
	p.done = true
	return abortHandles(st, at, p.handle)
}
