// Package report renders the end-of-run export document handed to the share
// surface and, later, to the pricing collaborator.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sweeney/phone-diagnostics/internal/logic"
)

// Export is the export document. Field names are a wire contract.
type Export struct {
	Hardware HardwareJSON `json:"hardware"`
	Tests    TestsJSON    `json:"tests"`
}

// HardwareJSON is the device identity block.
type HardwareJSON struct {
	Brand     string  `json:"brand"`
	Model     string  `json:"model"`
	RAMGB     float64 `json:"ram_gb"`
	OSVersion string  `json:"os_version"`
}

// TestsJSON holds one status per test.
type TestsJSON struct {
	Touchscreen logic.Status `json:"touchscreen"`
	Microphone  logic.Status `json:"microphone"`
	Speaker     logic.Status `json:"speaker"`
	Gyroscope   logic.Status `json:"gyroscope"`
	Proximity   logic.Status `json:"proximity"`
}

// Build assembles the export document. Missing results are PENDING.
func Build(hw logic.Hardware, results map[logic.TestName]logic.Status) Export {
	hw = hw.Normalize()
	get := func(name logic.TestName) logic.Status {
		if st, ok := results[name]; ok && st.Valid() {
			return st
		}
		return logic.StatusPending
	}
	return Export{
		Hardware: HardwareJSON{
			Brand:     hw.Brand,
			Model:     hw.Model,
			RAMGB:     hw.RAMGB,
			OSVersion: hw.OSVersion,
		},
		Tests: TestsJSON{
			Touchscreen: get(logic.TestTouchscreen),
			Microphone:  get(logic.TestMicrophone),
			Speaker:     get(logic.TestSpeaker),
			Gyroscope:   get(logic.TestGyroscope),
			Proximity:   get(logic.TestProximity),
		},
	}
}

// FormatExport returns the export document as indented JSON.
func FormatExport(hw logic.Hardware, results map[logic.TestName]logic.Status) ([]byte, error) {
	data, err := json.MarshalIndent(Build(hw, results), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("format export: %w", err)
	}
	return data, nil
}

// Results returns the tests block as a map keyed by test name.
func (e Export) Results() map[logic.TestName]logic.Status {
	return map[logic.TestName]logic.Status{
		logic.TestTouchscreen: e.Tests.Touchscreen,
		logic.TestMicrophone:  e.Tests.Microphone,
		logic.TestSpeaker:     e.Tests.Speaker,
		logic.TestGyroscope:   e.Tests.Gyroscope,
		logic.TestProximity:   e.Tests.Proximity,
	}
}

// ParseExport decodes and validates an export document. Unknown fields and
// unknown statuses are rejected so that consumers can rely on the key set.
func ParseExport(data []byte) (Export, error) {
	var e Export
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&e); err != nil {
		return Export{}, fmt.Errorf("decode export: %w", err)
	}
	for name, st := range e.Results() {
		if st == "" {
			return Export{}, fmt.Errorf("export: missing test %q", name)
		}
		if !st.Valid() {
			return Export{}, fmt.Errorf("export: test %q has unknown status %q", name, st)
		}
	}
	if e.Hardware.Brand == "" || e.Hardware.Model == "" || e.Hardware.OSVersion == "" {
		return Export{}, errors.New("export: incomplete hardware block")
	}
	return e, nil
}

// TODO: POST the export to the pricing endpoint once its contract is published.

// Summary counts results per status for the status page.
type Summary struct {
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	Pending     int     `json:"pending"`
	Unavailable int     `json:"unavailable"`
	Errored     int     `json:"error"`
	Score       float64 `json:"score"`
}

// Summarize computes per-status counts and a health score: the fraction of
// resolved tests that passed. Unresolved runs score 0.
func Summarize(results map[logic.TestName]logic.Status) Summary {
	var s Summary
	for _, name := range logic.AllTests {
		switch results[name] {
		case logic.StatusPassed:
			s.Passed++
		case logic.StatusFailed:
			s.Failed++
		case logic.StatusUnavailable:
			s.Unavailable++
		case logic.StatusError:
			s.Errored++
		default:
			s.Pending++
		}
	}
	if resolved := s.Passed + s.Failed + s.Unavailable + s.Errored; resolved > 0 {
		s.Score = float64(s.Passed) / float64(resolved)
	}
	return s
}
