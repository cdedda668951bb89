//go:build !cgo

package audio

import (
	"fmt"
	"net/http"

	"github.com/sweeney/phone-diagnostics/internal/logic"
)

// ClipPlayer is a stub when the audio backend is unavailable.
type ClipPlayer struct {
	url string
}

// NewClipPlayer returns a player that always reports the speaker unavailable.
func NewClipPlayer(url string, _ *http.Client) *ClipPlayer {
	return &ClipPlayer{url: url}
}

// Play always fails with ErrUnavailable.
func (p *ClipPlayer) Play() error {
	return fmt.Errorf("audio: playback requires cgo: %w", logic.ErrUnavailable)
}

// Close does nothing.
func (p *ClipPlayer) Close() error {
	return nil
}
