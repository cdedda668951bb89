package main

import (
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/phone-diagnostics/internal/gpio"
	"github.com/sweeney/phone-diagnostics/internal/logic"
	"github.com/sweeney/phone-diagnostics/internal/mqtt"
	"github.com/sweeney/phone-diagnostics/internal/report"
	"github.com/sweeney/phone-diagnostics/internal/sensor"
	"github.com/sweeney/phone-diagnostics/internal/status"
	"github.com/sweeney/phone-diagnostics/internal/web"
)

// loopDevices are the polled peripherals. buttons and haptic may be nil.
type loopDevices struct {
	orientation sensor.OrientationReader
	light       sensor.LightReader
	buttons     gpio.ButtonReader
	haptic      gpio.Haptic
}

type loopParams struct {
	seq        *logic.Sequencer
	dev        loopDevices
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // may be nil
	tracker    *status.Tracker       // may be nil
	debounce   time.Duration
	capture    func() logic.Hardware
	firstID    string
	newID      func() string
	now        func() time.Time
	tick       <-chan time.Time
	sig        <-chan os.Signal
	cmds       <-chan web.Command
}

// runLoop owns the sequencer. Every input, whether polled on a tick or sent
// by the web surface, is processed here so probes never see concurrent calls.
func runLoop(p loopParams) error {
	l := &loop{loopParams: p, sessionID: p.firstID}
	l.debouncer = logic.NewButtonDebouncer(p.debounce)

	t := p.now()
	l.captureHardware()
	l.handle(p.seq.Start(t))
	l.publishSystem(t, "STARTUP", "", true)

	for {
		select {
		case s := <-p.sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if err := p.seq.Stop(); err != nil {
				log.Printf("probe teardown error: %v", err)
			}
			l.publishSystem(p.now(), "SHUTDOWN", signalName, true)
			return nil

		case cmd := <-p.cmds:
			if cmd.Reset {
				l.reset(p.now())
				continue
			}
			l.handle(p.seq.Process(cmd.Input))

		case now := <-p.tick:
			for _, in := range l.poll(now) {
				l.handle(p.seq.Process(in))
			}
			l.handle(p.seq.Process(logic.Input{Kind: logic.InputTick, Time: now}))
		}
		l.sync()
	}
}

type loop struct {
	loopParams
	sessionID string
	debouncer *logic.ButtonDebouncer
}

// poll reads whichever sensor the active probe listens to. The buttons are
// read on every tick so the debouncer never misses a transition.
func (l *loop) poll(now time.Time) []logic.Input {
	var out []logic.Input
	if l.dev.buttons != nil {
		heard, noSound, err := l.dev.buttons.Read()
		if err != nil {
			log.Printf("button read error: %v", err)
		} else {
			out = append(out, l.debouncer.Process(logic.ButtonSample{Heard: heard, NoSound: noSound, Time: now})...)
		}
	}

	switch _, src := l.seq.Active(); src {
	case logic.SourceOrientation:
		if l.dev.orientation != nil {
			out = append(out, sensor.PollOrientation(l.dev.orientation, now))
		}
	case logic.SourceLight:
		if l.dev.light != nil {
			out = append(out, sensor.PollLight(l.dev.light, now))
		}
	}
	return out
}

func (l *loop) handle(events []logic.Event) {
	seq := l.seq
	for _, ev := range events {
		switch ev.Type {
		case logic.EventResult:
			log.Printf("result: %s=%s (step %s)", ev.Test, ev.Status, ev.Step)
			if err := l.publisher.PublishResult(l.sessionID, ev); err != nil {
				log.Printf("publish result error: %v", err)
			}

		case logic.EventStep:
			log.Printf("step: %s", ev.Step)
			l.setMessage("")

		case logic.EventCellVisited:
			if l.dev.haptic != nil {
				if err := l.dev.haptic.Pulse(gpio.CellPulse); err != nil {
					log.Printf("haptic error: %v", err)
				}
			}

		case logic.EventMicRetry, logic.EventRejected, logic.EventTransientError:
			log.Printf("%s: %s (step %s)", ev.Type, ev.Message, ev.Step)
			l.setMessage(ev.Message)

		case logic.EventDone:
			s := seq.Session()
			sum := report.Summarize(s.Results())
			log.Printf("done: session=%s passed=%d failed=%d unavailable=%d", l.sessionID, sum.Passed, sum.Failed, sum.Unavailable)
			doc, err := report.FormatExport(s.Hardware(), s.Results())
			if err != nil {
				log.Printf("report error: %v", err)
			} else if err := l.publisher.PublishReport(l.sessionID, doc); err != nil {
				log.Printf("publish report error: %v", err)
			}
			l.setMessage("")

		case logic.EventReset:
			log.Printf("reset from step %s", ev.Step)
		}
	}
}

// reset starts a fresh session with a new id.
func (l *loop) reset(now time.Time) {
	old := l.sessionID
	l.sessionID = l.newID()
	events := l.seq.Reset(now)
	l.captureHardware()
	log.Printf("session %s replaced by %s", old, l.sessionID)
	l.handle(events)
	l.publishSystem(now, "RESET", "", false)
}

func (l *loop) captureHardware() {
	if l.capture == nil {
		return
	}
	if err := l.seq.Session().CaptureHardware(l.capture()); err != nil {
		log.Printf("hardware capture: %v", err)
	}
}

func (l *loop) setMessage(msg string) {
	if l.tracker != nil {
		l.tracker.SetLastMessage(msg)
	}
}

// sync copies session state into the tracker for HTTP readers.
func (l *loop) sync() {
	if l.tracker == nil {
		return
	}
	l.tracker.Update(l.sessionID, l.seq.Session())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *loop) publishSystem(at time.Time, event, reason string, retained bool) {
	ev := mqtt.SystemEvent{Timestamp: at, Event: event, Reason: reason, Retained: retained}
	if l.tracker != nil {
		l.sync()
		ev.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), event, reason)
	}
	if err := l.publisher.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	} else {
		log.Printf("published %s event", event)
	}
}
