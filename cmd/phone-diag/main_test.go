package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/phone-diagnostics/internal/gpio"
	"github.com/sweeney/phone-diagnostics/internal/logic"
	"github.com/sweeney/phone-diagnostics/internal/mqtt"
	"github.com/sweeney/phone-diagnostics/internal/report"
	"github.com/sweeney/phone-diagnostics/internal/sensor"
	"github.com/sweeney/phone-diagnostics/internal/status"
	"github.com/sweeney/phone-diagnostics/internal/web"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfo(t *testing.T) {
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}

	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "192.168.1.100")
	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" || info.IP != "192.168.1.100" || info.SSID != "" {
		t.Errorf("unexpected info: %+v", info)
	}
}

// --- runLoop tests ---

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// manualClock only moves when the test advances it.
type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

type fakeRecorder struct{ starts, stops int }

func (r *fakeRecorder) Start() error { r.starts++; return nil }
func (r *fakeRecorder) Stop() error  { r.stops++; return nil }

type fakePlayer struct{ plays, closes int }

func (p *fakePlayer) Play() error  { p.plays++; return nil }
func (p *fakePlayer) Close() error { p.closes++; return nil }

// harness runs runLoop in a goroutine. tick and cmds are unbuffered, so each
// send waits for the previous input to be fully processed. State shared with
// the loop is only inspected after stop.
type harness struct {
	t       *testing.T
	clock   *manualClock
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	haptic  *gpio.FakeHaptic
	rec     *fakeRecorder
	player  *fakePlayer
	seq     *logic.Sequencer

	tick  chan time.Time
	sig   chan os.Signal
	cmds  chan web.Command
	errCh chan error
	ids   int
}

func newHarness(t *testing.T, dev loopDevices, cfg logic.Config, opts ...func(*harness)) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		clock:   &manualClock{t: t0},
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(t0, status.Config{GridRows: cfg.GridRows, GridCols: cfg.GridCols}),
		haptic:  &gpio.FakeHaptic{},
		rec:     &fakeRecorder{},
		player:  &fakePlayer{},
		tick:    make(chan time.Time),
		sig:     make(chan os.Signal, 1),
		cmds:    make(chan web.Command),
		errCh:   make(chan error, 1),
	}
	h.pub.Connected = true
	for _, opt := range opts {
		opt(h)
	}
	if dev.haptic == nil {
		dev.haptic = h.haptic
	}
	h.seq = logic.NewSequencer(logic.NewSession(), cfg, logic.Devices{Recorder: h.rec, Player: h.player})

	go func() {
		h.errCh <- runLoop(loopParams{
			seq:        h.seq,
			dev:        dev,
			publisher:  h.pub,
			mqttStatus: h.pub,
			tracker:    h.tracker,
			debounce:   50 * time.Millisecond,
			capture: func() logic.Hardware {
				return logic.Hardware{Brand: "Pine64", Model: "PinePhone", RAMGB: 3, OSVersion: "v24", IsPhysicalDevice: true}
			},
			firstID: "session-0",
			newID: func() string {
				h.ids++
				return fmt.Sprintf("session-%d", h.ids)
			},
			now:  h.clock.now,
			tick: h.tick,
			sig:  h.sig,
			cmds: h.cmds,
		})
	}()
	return h
}

func (h *harness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.tick <- h.clock.advance(100 * time.Millisecond)
	}
}

func (h *harness) send(in logic.Input) {
	in.Time = h.clock.now()
	h.cmds <- web.Command{Input: in}
}

func (h *harness) action(a logic.Action) {
	h.send(logic.Input{Kind: logic.InputAction, Action: a})
}

// touchAll mounts a 30x60 grid and visits every cell.
func (h *harness) touchAll(cfg logic.Config) {
	h.send(logic.Input{Kind: logic.InputLayout, Layout: logic.Layout{Width: float64(cfg.GridCols * 10), Height: float64(cfg.GridRows * 10)}})
	for r := 0; r < cfg.GridRows; r++ {
		for c := 0; c < cfg.GridCols; c++ {
			ev, err := logic.NewPointerEvent("move", float64(c*10+5), float64(r*10+5))
			if err != nil {
				h.t.Fatal(err)
			}
			h.send(logic.Input{Kind: logic.InputPointer, Pointer: ev})
		}
	}
}

// passMic records for longer than the threshold.
func (h *harness) passMic() {
	h.action(logic.ActionRecordStart)
	h.clock.advance(1500 * time.Millisecond)
	h.action(logic.ActionRecordStop)
}

func (h *harness) stop(s os.Signal) {
	h.t.Helper()
	h.sig <- s
	if err := <-h.errCh; err != nil {
		h.t.Fatalf("runLoop returned error: %v", err)
	}
}

func (h *harness) results() map[logic.TestName]logic.Status {
	out := map[logic.TestName]logic.Status{}
	for _, ev := range h.pub.Results {
		out[ev.Test] = ev.Status
	}
	return out
}

func flatDevices() loopDevices {
	return loopDevices{
		orientation: sensor.NewFakeOrientation(logic.Orientation{X: 0.01, Y: -0.02}),
		light:       sensor.NewFakeLight(append(repeatLux(200, 15), 95)...),
	}
}

func repeatLux(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestRunLoopFullSession(t *testing.T) {
	cfg := logic.DefaultConfig()
	h := newHarness(t, flatDevices(), cfg)

	h.touchAll(cfg)
	h.passMic()
	h.action(logic.ActionPlay)
	h.action(logic.ActionHeard)
	h.ticks(60)
	h.stop(syscall.SIGTERM)

	want := map[logic.TestName]logic.Status{
		logic.TestTouchscreen: logic.StatusPassed,
		logic.TestMicrophone:  logic.StatusPassed,
		logic.TestSpeaker:     logic.StatusPassed,
		logic.TestGyroscope:   logic.StatusPassed,
		logic.TestProximity:   logic.StatusPassed,
	}
	got := h.results()
	for name, st := range want {
		if got[name] != st {
			t.Errorf("%s: got %q, want %q", name, got[name], st)
		}
	}
	if len(h.pub.Results) != len(logic.AllTests) {
		t.Errorf("expected one result per test, got %d", len(h.pub.Results))
	}

	// Results arrive in probe order.
	order := []logic.TestName{logic.TestTouchscreen, logic.TestMicrophone, logic.TestSpeaker, logic.TestGyroscope, logic.TestProximity}
	for i, ev := range h.pub.Results {
		if ev.Test != order[i] {
			t.Errorf("result %d: got %s, want %s", i, ev.Test, order[i])
		}
	}

	if len(h.pub.Reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(h.pub.Reports))
	}
	if h.pub.Reports[0].SessionID != "session-0" {
		t.Errorf("report session: got %q", h.pub.Reports[0].SessionID)
	}
	exp, err := report.ParseExport(h.pub.Reports[0].Payload)
	if err != nil {
		t.Fatalf("report does not parse: %v", err)
	}
	if exp.Hardware.Brand != "Pine64" || exp.Tests.Proximity != logic.StatusPassed {
		t.Errorf("unexpected report: %+v", exp)
	}

	if n := h.haptic.Count(); n != cfg.GridRows*cfg.GridCols {
		t.Errorf("haptic pulses: got %d, want %d", n, cfg.GridRows*cfg.GridCols)
	}
	if h.player.closes != 1 {
		t.Errorf("player should be closed once when leaving the audio step, got %d", h.player.closes)
	}

	snap := h.tracker.Snapshot()
	if !snap.Complete || snap.Step != logic.StepDone {
		t.Errorf("tracker: complete=%v step=%s", snap.Complete, snap.Step)
	}
	if !snap.MQTTConnected {
		t.Error("tracker should mirror MQTT connection state")
	}
}

func TestRunLoopSystemEvents(t *testing.T) {
	h := newHarness(t, flatDevices(), logic.DefaultConfig())
	h.stop(syscall.SIGINT)

	if len(h.pub.SystemEvents) != 2 {
		t.Fatalf("expected STARTUP and SHUTDOWN, got %d events", len(h.pub.SystemEvents))
	}
	startup, shutdown := h.pub.SystemEvents[0], h.pub.SystemEvents[1]
	if startup.Event != "STARTUP" || !startup.Retained {
		t.Errorf("unexpected startup event: %+v", startup)
	}
	if shutdown.Event != "SHUTDOWN" || shutdown.Reason != "SIGINT" {
		t.Errorf("unexpected shutdown event: %+v", shutdown)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(h.pub.SystemPayloads[0], &sj); err != nil {
		t.Fatalf("startup payload: %v", err)
	}
	if sj.Status.Event != "STARTUP" || sj.Status.SessionID != "session-0" || sj.Status.Step != "Touchscreen" {
		t.Errorf("unexpected startup payload: %+v", sj.Status)
	}
	if sj.Status.Export.Hardware.Model != "PinePhone" {
		t.Errorf("hardware should be captured before STARTUP, got %+v", sj.Status.Export.Hardware)
	}
}

func TestRunLoopMicRetryMessage(t *testing.T) {
	cfg := logic.DefaultConfig()
	cfg.MicAttempts = 3
	h := newHarness(t, flatDevices(), cfg)

	h.touchAll(cfg)
	h.action(logic.ActionRecordStart)
	h.clock.advance(300 * time.Millisecond)
	h.action(logic.ActionRecordStop)

	h.stop(syscall.SIGTERM)

	msg := h.tracker.Snapshot().LastMessage
	if !strings.Contains(msg, "recording too short") {
		t.Errorf("LastMessage: got %q", msg)
	}
	if _, ok := h.results()[logic.TestMicrophone]; ok {
		t.Error("a retry must not publish a microphone result")
	}
}

func TestRunLoopMicFailureGatesSpeaker(t *testing.T) {
	cfg := logic.DefaultConfig()
	h := newHarness(t, flatDevices(), cfg)

	h.touchAll(cfg)
	for i := 0; i < cfg.MicAttempts; i++ {
		h.action(logic.ActionRecordStart)
		h.clock.advance(200 * time.Millisecond)
		h.action(logic.ActionRecordStop)
	}
	h.action(logic.ActionPlay) // dropped: motion is active now
	h.ticks(1)
	h.stop(syscall.SIGTERM)

	step := h.tracker.Snapshot().Step
	got := h.results()
	if got[logic.TestMicrophone] != logic.StatusFailed {
		t.Errorf("microphone: got %q, want FAILED", got[logic.TestMicrophone])
	}
	if _, ok := got[logic.TestSpeaker]; ok {
		t.Error("speaker should stay PENDING when the mic fails")
	}
	if step != logic.StepMotion {
		t.Errorf("step: got %s, want Motion", step)
	}
	if h.player.plays != 0 {
		t.Errorf("player should never be used, got %d plays", h.player.plays)
	}
}

func TestRunLoopMissingSensors(t *testing.T) {
	cfg := logic.DefaultConfig()
	dev := loopDevices{
		orientation: sensor.MissingOrientation{},
		light:       sensor.MissingLight{},
	}
	h := newHarness(t, dev, cfg)

	h.touchAll(cfg)
	h.passMic()
	h.action(logic.ActionPlay)
	h.action(logic.ActionNoSound)
	h.ticks(3)
	h.stop(syscall.SIGTERM)

	got := h.results()
	if got[logic.TestSpeaker] != logic.StatusFailed {
		t.Errorf("speaker: got %q, want FAILED", got[logic.TestSpeaker])
	}
	if got[logic.TestGyroscope] != logic.StatusUnavailable {
		t.Errorf("gyroscope: got %q, want UNAVAILABLE", got[logic.TestGyroscope])
	}
	if got[logic.TestProximity] != logic.StatusUnavailable {
		t.Errorf("proximity: got %q, want UNAVAILABLE", got[logic.TestProximity])
	}
	if len(h.pub.Reports) != 1 {
		t.Errorf("expected a report once done, got %d", len(h.pub.Reports))
	}
}

func TestRunLoopButtonsAttestSpeaker(t *testing.T) {
	cfg := logic.DefaultConfig()
	dev := flatDevices()
	released := gpio.ButtonSample{}
	pressed := gpio.ButtonSample{Heard: true}
	dev.buttons = gpio.NewFakeButtons([]gpio.ButtonSample{released, released, released, pressed, pressed, pressed})
	h := newHarness(t, dev, cfg)

	h.touchAll(cfg)
	h.passMic()
	h.action(logic.ActionPlay)
	h.ticks(6)
	h.stop(syscall.SIGTERM)

	if got := h.results()[logic.TestSpeaker]; got != logic.StatusPassed {
		t.Errorf("speaker: got %q, want PASSED", got)
	}
}

func TestRunLoopReset(t *testing.T) {
	cfg := logic.DefaultConfig()
	h := newHarness(t, flatDevices(), cfg)

	h.touchAll(cfg)
	h.cmds <- web.Command{Reset: true}
	h.stop(syscall.SIGTERM)

	snap := h.tracker.Snapshot()
	if snap.SessionID != "session-1" {
		t.Errorf("SessionID after reset: got %q, want session-1", snap.SessionID)
	}
	if snap.Step != logic.StepTouchscreen {
		t.Errorf("step after reset: got %s", snap.Step)
	}
	if snap.Results[logic.TestTouchscreen] != logic.StatusPending {
		t.Errorf("touchscreen after reset: got %q, want PENDING", snap.Results[logic.TestTouchscreen])
	}
	if snap.Hardware.Brand != "Pine64" {
		t.Errorf("hardware should be recaptured after reset, got %q", snap.Hardware.Brand)
	}

	var events []string
	for _, ev := range h.pub.SystemEvents {
		events = append(events, ev.Event)
	}
	if strings.Join(events, ",") != "STARTUP,RESET,SHUTDOWN" {
		t.Errorf("system events: got %v", events)
	}
}

func TestRunLoopPublishErrorDoesNotStop(t *testing.T) {
	cfg := logic.DefaultConfig()
	h := newHarness(t, flatDevices(), cfg, func(h *harness) {
		h.pub.PublishError = errors.New("broker down")
	})
	h.touchAll(cfg)
	h.stop(syscall.SIGTERM)

	if len(h.pub.Results) != 0 {
		t.Errorf("failed publishes should not be recorded, got %d", len(h.pub.Results))
	}
	if step := h.tracker.Snapshot().Step; step != logic.StepAudio {
		t.Errorf("loop should keep going after publish errors, step=%s", step)
	}
}
