package logic

import (
	"fmt"
	"time"
)

// Recorder is the exclusive audio input device.
type Recorder interface {
	// Start begins a recording. Errors wrapping ErrUnavailable mean there
	// is no usable microphone.
	Start() error
	// Stop ends the active recording.
	Stop() error
}

// Player plays the speaker test clip.
type Player interface {
	// Play starts the clip from the beginning.
	Play() error
	// Close stops playback and releases the loaded clip.
	Close() error
}

// audioProbe runs the microphone sub-check, then the speaker sub-check.
// The two sub-checks never overlap, so record and playback sessions are
// never held at the same time.
type audioProbe struct {
	cfg     Config
	mic     Handle
	speaker Handle
	rec     Recorder
	player  Player

	recording  bool
	recStart   time.Time
	sufficient bool
	attempts   int

	speakerPhase bool
	played       bool
	playerOpen   bool

	done bool
}

func newAudioProbe(cfg Config, mic, speaker Handle, d Devices) *audioProbe {
	return &audioProbe{
		cfg:     cfg,
		mic:     mic,
		speaker: speaker,
		rec:     d.Recorder,
		player:  d.Player,
	}
}

func (p *audioProbe) Step() Step      { return StepAudio }
func (p *audioProbe) Source() Source  { return SourceAudio }
func (p *audioProbe) Start(time.Time) {}
func (p *audioProbe) Done() bool      { return p.done }

func (p *audioProbe) Process(in Input) []Event {
	if p.done {
		return nil
	}
	switch in.Kind {
	case InputTick:
		p.trackElapsed(in.Time)
		return nil
	case InputAction:
	default:
		return nil
	}

	switch in.Action {
	case ActionRecordStart:
		return p.startRecording(in.Time)
	case ActionRecordStop:
		return p.stopRecording(in.Time)
	case ActionPlay:
		return p.play(in.Time)
	case ActionHeard:
		return p.attest(StatusPassed, in.Time)
	case ActionNoSound:
		return p.attest(StatusFailed, in.Time)
	}
	return rejected(in.Time, fmt.Sprintf("unknown action %q", in.Action))
}

// trackElapsed sets the sufficient flag once the recording has run for the
// threshold. It measures duration only, not input amplitude.
func (p *audioProbe) trackElapsed(now time.Time) {
	if p.recording && now.Sub(p.recStart) >= p.cfg.MicThreshold {
		p.sufficient = true
	}
}

func (p *audioProbe) startRecording(now time.Time) []Event {
	if p.mic.Resolved() {
		return rejected(now, "microphone already resolved")
	}
	if p.recording {
		return rejected(now, "recording already active")
	}
	if p.rec == nil {
		return p.resolveMic(StatusUnavailable, now)
	}
	err := p.rec.Start()
	switch OutcomeOf(err) {
	case OutcomeUnavailable:
		return p.resolveMic(StatusUnavailable, now)
	case OutcomeTransientError:
		return transient(now, "record start", err)
	}
	p.recording = true
	p.recStart = now
	p.sufficient = false
	return nil
}

func (p *audioProbe) stopRecording(now time.Time) []Event {
	if !p.recording {
		return rejected(now, "no active recording")
	}
	err := p.rec.Stop()
	switch OutcomeOf(err) {
	case OutcomeUnavailable:
		p.recording = false
		return p.resolveMic(StatusUnavailable, now)
	case OutcomeTransientError:
		return transient(now, "record stop", err)
	}
	p.trackElapsed(now)
	p.recording = false
	p.attempts++
	if p.sufficient {
		return p.resolveMic(StatusPassed, now)
	}
	if p.attempts < p.cfg.MicAttempts {
		return []Event{{
			Timestamp: now,
			Type:      EventMicRetry,
			Test:      TestMicrophone,
			Message:   fmt.Sprintf("recording too short (attempt %d of %d)", p.attempts, p.cfg.MicAttempts),
		}}
	}
	return p.resolveMic(StatusFailed, now)
}

// resolveMic records the microphone result and decides whether the speaker
// sub-check runs. Without SpeakerAfterMicFailure a mic that did not pass ends
// the probe and the speaker stays PENDING (untested).
func (p *audioProbe) resolveMic(st Status, now time.Time) []Event {
	var events []Event
	if ev, ok := p.mic.Resolve(st, now); ok {
		events = append(events, ev)
	}
	if p.mic.Status() == StatusPassed || p.cfg.SpeakerAfterMicFailure {
		p.speakerPhase = true
	} else {
		p.done = true
	}
	return events
}

func (p *audioProbe) play(now time.Time) []Event {
	if !p.speakerPhase {
		return rejected(now, "speaker check not reached")
	}
	if p.player == nil {
		return p.resolveSpeaker(StatusUnavailable, now)
	}
	p.playerOpen = true
	err := p.player.Play()
	switch OutcomeOf(err) {
	case OutcomeUnavailable:
		return p.resolveSpeaker(StatusUnavailable, now)
	case OutcomeTransientError:
		return transient(now, "play", err)
	}
	p.played = true
	return nil
}

func (p *audioProbe) attest(st Status, now time.Time) []Event {
	if !p.speakerPhase || !p.played {
		return rejected(now, "clip has not been played")
	}
	return p.resolveSpeaker(st, now)
}

func (p *audioProbe) resolveSpeaker(st Status, now time.Time) []Event {
	p.done = true
	if ev, ok := p.speaker.Resolve(st, now); ok {
		return []Event{ev}
	}
	return nil
}

func (p *audioProbe) Abort(st Status, at time.Time) []Event {
	p.done = true
	return abortHandles(st, at, p.mic, p.speaker)
}

// Stop tears down any in-flight recording and the loaded clip.
func (p *audioProbe) Stop() error {
	var errs []error
	if p.recording {
		p.recording = false
		if err := p.rec.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop recording: %w", err))
		}
	}
	if p.playerOpen {
		p.playerOpen = false
		if err := p.player.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close player: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("audio teardown: %v", errs)
	}
	return nil
}

func rejected(now time.Time, msg string) []Event {
	return []Event{{Timestamp: now, Type: EventRejected, Message: msg}}
}

func transient(now time.Time, op string, err error) []Event {
	return []Event{{Timestamp: now, Type: EventTransientError, Message: fmt.Sprintf("%s: %v", op, err)}}
}
