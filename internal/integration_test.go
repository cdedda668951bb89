package internal

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
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

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

const pollInterval = 100 * time.Millisecond

type nopRecorder struct{}

func (nopRecorder) Start() error { return nil }
func (nopRecorder) Stop() error  { return nil }

type nopPlayer struct{}

func (nopPlayer) Play() error  { return nil }
func (nopPlayer) Close() error { return nil }

// rig wires the real web handler, sequencer, tracker and fake peripherals
// together the way the daemon does, but drives the loop by hand.
type rig struct {
	t         *testing.T
	now       time.Time
	seq       *logic.Sequencer
	tracker   *status.Tracker
	publisher *mqtt.FakePublisher
	cmds      chan web.Command
	http      *httptest.Server

	orientation sensor.OrientationReader
	light       sensor.LightReader
	buttons     gpio.ButtonReader
	debouncer   *logic.ButtonDebouncer
}

func newRig(t *testing.T, orientation sensor.OrientationReader, light sensor.LightReader) *rig {
	t.Helper()
	cfg := logic.DefaultConfig()
	r := &rig{
		t:           t,
		now:         startTime,
		seq:         logic.NewSequencer(logic.NewSession(), cfg, logic.Devices{Recorder: nopRecorder{}, Player: nopPlayer{}}),
		tracker:     status.NewTracker(startTime, status.Config{GridRows: cfg.GridRows, GridCols: cfg.GridCols}),
		publisher:   mqtt.NewFakePublisher(),
		cmds:        make(chan web.Command, 64),
		orientation: orientation,
		light:       light,
		debouncer:   logic.NewButtonDebouncer(50 * time.Millisecond),
	}
	r.http = httptest.NewServer(web.New(":0", r.tracker, r.cmds).Handler())
	t.Cleanup(r.http.Close)

	if err := r.seq.Session().CaptureHardware(logic.Hardware{Brand: "Pine64", Model: "PinePhone", RAMGB: 2, OSVersion: "postmarketOS v24.06", IsPhysicalDevice: true}); err != nil {
		t.Fatal(err)
	}
	r.handle(r.seq.Start(r.now))
	return r
}

func (r *rig) handle(events []logic.Event) {
	for _, ev := range events {
		switch ev.Type {
		case logic.EventResult:
			if err := r.publisher.PublishResult("it", ev); err != nil {
				r.t.Logf("publish error (continuing): %v", err)
			}
		case logic.EventDone:
			s := r.seq.Session()
			doc, err := report.FormatExport(s.Hardware(), s.Results())
			if err != nil {
				r.t.Fatalf("format export: %v", err)
			}
			if err := r.publisher.PublishReport("it", doc); err != nil {
				r.t.Logf("publish error (continuing): %v", err)
			}
		}
	}
	r.tracker.Update("it", r.seq.Session())
}

// post sends a request through the HTTP surface and feeds whatever it
// enqueued into the sequencer.
func (r *rig) post(path, body string) {
	r.t.Helper()
	resp, err := http.Post(r.http.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		r.t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		r.t.Fatalf("POST %s: status %d", path, resp.StatusCode)
	}
	cmd := <-r.cmds
	cmd.Input.Time = r.now
	r.handle(r.seq.Process(cmd.Input))
}

func (r *rig) tick(n int) {
	for i := 0; i < n; i++ {
		r.now = r.now.Add(pollInterval)
		if r.buttons != nil {
			heard, noSound, err := r.buttons.Read()
			if err != nil {
				r.t.Fatalf("button read: %v", err)
			}
			for _, in := range r.debouncer.Process(logic.ButtonSample{Heard: heard, NoSound: noSound, Time: r.now}) {
				r.handle(r.seq.Process(in))
			}
		}
		switch _, src := r.seq.Active(); src {
		case logic.SourceOrientation:
			r.handle(r.seq.Process(sensor.PollOrientation(r.orientation, r.now)))
		case logic.SourceLight:
			r.handle(r.seq.Process(sensor.PollLight(r.light, r.now)))
		}
		r.handle(r.seq.Process(logic.Input{Kind: logic.InputTick, Time: r.now}))
	}
}

func (r *rig) get(path string) []byte {
	r.t.Helper()
	resp, err := http.Get(r.http.URL + path)
	if err != nil {
		r.t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r.t.Fatal(err)
	}
	return body
}

func (r *rig) touchAll() {
	r.post("/touch/layout", `{"x":0,"y":0,"width":30,"height":60}`)
	for row := 0; row < 6; row++ {
		for col := 0; col < 3; col++ {
			r.post("/touch", `{"phase":"move","x":`+itoa(col*10+5)+`,"y":`+itoa(row*10+5)+`}`)
		}
	}
}

func (r *rig) passMic() {
	r.post("/action/record-start", "")
	r.now = r.now.Add(1200 * time.Millisecond)
	r.post("/action/record-stop", "")
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func lux(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// TestIntegrationFullFlow drives a whole session over HTTP and sensor fakes
// and checks the export document is the same on both surfaces.
func TestIntegrationFullFlow(t *testing.T) {
	r := newRig(t,
		sensor.NewFakeOrientation(logic.Orientation{X: 0.02, Y: 0.03}),
		sensor.NewFakeLight(append(lux(300, 15), 20)...),
	)

	r.touchAll()
	r.passMic()
	r.post("/action/play", "")
	r.post("/action/heard", "")
	r.tick(50)

	if !r.seq.Session().Complete() {
		t.Fatalf("session not complete, step %s", r.seq.Session().Step())
	}
	if len(r.publisher.Results) != len(logic.AllTests) {
		t.Fatalf("expected %d results, got %d", len(logic.AllTests), len(r.publisher.Results))
	}
	if len(r.publisher.Reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(r.publisher.Reports))
	}

	served, err := report.ParseExport(r.get("/export.json"))
	if err != nil {
		t.Fatalf("export.json: %v", err)
	}
	published, err := report.ParseExport(r.publisher.Reports[0].Payload)
	if err != nil {
		t.Fatalf("published report: %v", err)
	}
	if served != published {
		t.Errorf("served and published exports differ:\n%+v\n%+v", served, published)
	}
	for _, name := range logic.AllTests {
		if st := published.Results()[name]; st != logic.StatusPassed {
			t.Errorf("%s: got %s, want PASSED", name, st)
		}
	}
}

func TestIntegrationRejectedInputIsIgnored(t *testing.T) {
	r := newRig(t, sensor.NewFakeOrientation(logic.Orientation{}), sensor.NewFakeLight(100))

	// Audio actions during the touch step never reach the audio probe.
	r.post("/action/heard", "")
	r.post("/action/record-start", "")
	if r.seq.Session().Step() != logic.StepTouchscreen {
		t.Fatalf("step: got %s", r.seq.Session().Step())
	}
	if len(r.publisher.Results) != 0 {
		t.Errorf("expected no results, got %+v", r.publisher.Results)
	}
}

func TestIntegrationButtonsAttestSpeaker(t *testing.T) {
	r := newRig(t, sensor.NewFakeOrientation(logic.Orientation{}), sensor.NewFakeLight(100))
	off, noSound := gpio.ButtonSample{}, gpio.ButtonSample{NoSound: true}
	r.buttons = gpio.NewFakeButtons([]gpio.ButtonSample{off, off, off, noSound, noSound, noSound})

	r.touchAll()
	r.passMic()
	r.post("/action/play", "")
	r.tick(6)

	if st := r.seq.Session().Result(logic.TestSpeaker); st != logic.StatusFailed {
		t.Errorf("speaker: got %s, want FAILED", st)
	}
	if r.seq.Session().Step() != logic.StepMotion {
		t.Errorf("step: got %s, want Motion", r.seq.Session().Step())
	}
}

func TestIntegrationMissingSensors(t *testing.T) {
	r := newRig(t, sensor.MissingOrientation{}, sensor.MissingLight{Cause: errors.New("no iio device")})

	r.touchAll()
	r.passMic()
	r.post("/action/play", "")
	r.post("/action/heard", "")
	r.tick(2)

	var sj status.StatusJSON
	if err := json.Unmarshal(r.get("/index.json"), &sj); err != nil {
		t.Fatalf("index.json: %v", err)
	}
	if !sj.Status.Complete {
		t.Fatal("expected complete session")
	}
	if sj.Status.Export.Tests.Gyroscope != logic.StatusUnavailable || sj.Status.Export.Tests.Proximity != logic.StatusUnavailable {
		t.Errorf("unexpected sensor results: %+v", sj.Status.Export.Tests)
	}
	if sj.Status.Summary.Unavailable != 2 || sj.Status.Summary.Passed != 3 {
		t.Errorf("unexpected summary: %+v", sj.Status.Summary)
	}
}

func TestIntegrationTransientSensorErrors(t *testing.T) {
	o := sensor.NewFakeOrientation()
	o.ReadError = errors.New("i/o timeout")
	r := newRig(t, o, sensor.NewFakeLight(100))

	r.touchAll()
	r.passMic()
	r.post("/action/play", "")
	r.post("/action/heard", "")
	// Five consecutive transient errors mark the probe ERROR.
	r.tick(5)

	if st := r.seq.Session().Result(logic.TestGyroscope); st != logic.StatusError {
		t.Errorf("gyroscope: got %s, want ERROR", st)
	}
}

func TestIntegrationPublishFailureDoesNotCrash(t *testing.T) {
	r := newRig(t, sensor.NewFakeOrientation(logic.Orientation{}), sensor.NewFakeLight(100))
	r.publisher.PublishError = errors.New("broker down")

	r.touchAll()
	if st := r.seq.Session().Result(logic.TestTouchscreen); st != logic.StatusPassed {
		t.Errorf("touchscreen: got %s, want PASSED", st)
	}
	if len(r.publisher.Results) != 0 {
		t.Errorf("expected nothing recorded, got %d", len(r.publisher.Results))
	}
}

func TestIntegrationStartupPayloadFormat(t *testing.T) {
	r := newRig(t, sensor.NewFakeOrientation(logic.Orientation{}), sensor.NewFakeLight(100))

	raw := status.FormatStatusEvent(r.tracker.Snapshot(), "STARTUP", "")
	if err := r.publisher.PublishSystem(mqtt.SystemEvent{Timestamp: r.now, Event: "STARTUP", RawPayload: raw, Retained: true}); err != nil {
		t.Fatal(err)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(r.publisher.SystemPayloads[0], &sj); err != nil {
		t.Fatalf("invalid startup payload: %v", err)
	}
	if sj.Status.Event != "STARTUP" || sj.Status.SessionID != "it" {
		t.Errorf("unexpected startup payload: %+v", sj.Status)
	}
	if sj.Status.Export.Tests.Touchscreen != logic.StatusPending {
		t.Errorf("expected PENDING touchscreen, got %s", sj.Status.Export.Tests.Touchscreen)
	}
}
