//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealButtons reads the bench buttons from actual hardware using the Linux GPIO character device.
type RealButtons struct {
	chip    *gpiocdev.Chip
	heard   *gpiocdev.Line
	noSound *gpiocdev.Line
}

// NewRealButtons requests both button lines as inputs.
func NewRealButtons(chipName string, pinHeard, pinNoSound int) (*RealButtons, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Buttons short the line to ground, so hold it high when released.
	heard, err := chip.RequestLine(pinHeard, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request heard pin %d: %w", pinHeard, err)
	}

	noSound, err := chip.RequestLine(pinNoSound, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		heard.Close()
		chip.Close()
		return nil, fmt.Errorf("request no-sound pin %d: %w", pinNoSound, err)
	}

	return &RealButtons{chip: chip, heard: heard, noSound: noSound}, nil
}

// Read returns the logical pressed states. Raw 0 = pressed.
func (r *RealButtons) Read() (bool, bool, error) {
	heardRaw, err := r.heard.Value()
	if err != nil {
		return false, false, fmt.Errorf("read heard pin: %w", err)
	}
	noSoundRaw, err := r.noSound.Value()
	if err != nil {
		return false, false, fmt.Errorf("read no-sound pin: %w", err)
	}
	return heardRaw == 0, noSoundRaw == 0, nil
}

// Close releases both lines and the chip.
func (r *RealButtons) Close() error {
	var errs []error
	for name, l := range map[string]*gpiocdev.Line{"heard": r.heard, "no-sound": r.noSound} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealHaptic drives the vibration motor line.
type RealHaptic struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	mu    sync.Mutex
	timer *time.Timer
}

// NewRealHaptic requests the motor line as an output, initially low.
func NewRealHaptic(chipName string, pin int) (*RealHaptic, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request haptic pin %d: %w", pin, err)
	}
	return &RealHaptic{chip: chip, line: line}, nil
}

// Pulse drives the line high and schedules it low after d.
// A pulse during a pulse extends it.
func (h *RealHaptic) Pulse(d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.line.SetValue(1); err != nil {
		return fmt.Errorf("set haptic pin: %w", err)
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(d, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		_ = h.line.SetValue(0)
	})
	return nil
}

// Close drives the motor low and releases the line.
// The line is returned as an input so the motor cannot be left running.
func (h *RealHaptic) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}

	var errs []error
	if h.line != nil {
		if err := h.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear haptic pin: %w", err))
		}
		if err := h.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure haptic pin: %w", err))
		}
		if err := h.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close haptic pin: %w", err))
		}
	}
	if h.chip != nil {
		if err := h.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
