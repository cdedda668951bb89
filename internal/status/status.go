// Package status provides a thread-safe status tracker for the diagnostics daemon.
// The event loop writes it; HTTP handlers read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/phone-diagnostics/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs          int64
	DebounceMs      int64
	SensorTimeoutMs int64
	GridRows        int
	GridCols        int
	Broker          string
	HTTPAddr        string
	ClipURL         string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	SessionID     string
	Hardware      logic.Hardware
	Results       map[logic.TestName]logic.Status
	Step          logic.Step
	Complete      bool
	LastMessage   string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Step:      logic.StepTouchscreen,
			Hardware:  logic.Hardware{}.Normalize(),
		},
	}
}

// Update copies the session state. Called from the event loop after every input.
func (t *Tracker) Update(sessionID string, s *logic.Session) {
	results := s.Results()
	t.mu.Lock()
	t.snap.SessionID = sessionID
	t.snap.Hardware = s.Hardware()
	t.snap.Results = results
	t.snap.Step = s.Step()
	t.snap.Complete = s.Complete()
	t.mu.Unlock()
}

// SetLastMessage records the latest user-facing prompt (retry, rejection, error).
func (t *Tracker) SetLastMessage(msg string) {
	t.mu.Lock()
	t.snap.LastMessage = msg
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	results := make(map[logic.TestName]logic.Status, len(s.Results))
	for k, v := range s.Results {
		results[k] = v
	}
	t.mu.RUnlock()
	s.Results = results
	s.Now = time.Now()
	return s
}
