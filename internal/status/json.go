package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/phone-diagnostics/internal/report"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	SessionID     string         `json:"session_id"`
	Step          string         `json:"step"`
	Complete      bool           `json:"complete"`
	Message       string         `json:"message,omitempty"`
	Export        report.Export  `json:"export"`
	Summary       report.Summary `json:"summary"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs          int64  `json:"poll_ms"`
	DebounceMs      int64  `json:"debounce_ms"`
	SensorTimeoutMs int64  `json:"sensor_timeout_ms"`
	GridRows        int    `json:"grid_rows"`
	GridCols        int    `json:"grid_cols"`
	Broker          string `json:"broker"`
	HTTPAddr        string `json:"http_addr"`
	ClipURL         string `json:"clip_url,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	step := string(snap.Step)
	if step == "" {
		step = "UNKNOWN"
	}

	inner := StatusInner{
		SessionID:     snap.SessionID,
		Step:          step,
		Complete:      snap.Complete,
		Message:       snap.LastMessage,
		Export:        report.Build(snap.Hardware, snap.Results),
		Summary:       report.Summarize(snap.Results),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:          snap.Config.PollMs,
			DebounceMs:      snap.Config.DebounceMs,
			SensorTimeoutMs: snap.Config.SensorTimeoutMs,
			GridRows:        snap.Config.GridRows,
			GridCols:        snap.Config.GridCols,
			Broker:          snap.Config.Broker,
			HTTPAddr:        snap.Config.HTTPAddr,
			ClipURL:         snap.Config.ClipURL,
		},
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
