//go:build cgo

package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/sweeney/phone-diagnostics/internal/logic"
)

var (
	contextOnce sync.Once
	sharedCtx   *audio.Context
)

// audioContext returns the process-wide audio context; ebiten allows only one.
func audioContext() *audio.Context {
	contextOnce.Do(func() {
		sharedCtx = audio.NewContext(SampleRate)
	})
	return sharedCtx
}

// ClipPlayer plays the speaker test clip fetched from a URL.
type ClipPlayer struct {
	url     string
	client  *http.Client
	timeout time.Duration

	mu     sync.Mutex
	clip   *Clip
	player *audio.Player
}

// NewClipPlayer creates a player for the clip at url. Nothing is fetched
// until the first Play.
func NewClipPlayer(url string, client *http.Client) *ClipPlayer {
	if client == nil {
		client = http.DefaultClient
	}
	return &ClipPlayer{url: url, client: client, timeout: 10 * time.Second}
}

// Play starts the clip from the beginning, downloading it on first use.
func (p *ClipPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.player != nil {
		if err := p.player.SetPosition(0); err != nil {
			return fmt.Errorf("audio: rewind clip: %w", err)
		}
		p.player.Play()
		return nil
	}

	if p.clip == nil {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		clip, err := FetchClip(ctx, p.client, p.url)
		if err != nil {
			return err
		}
		p.clip = &clip
	}

	stream, err := decode(*p.clip)
	if err != nil {
		return err
	}
	player, err := audioContext().NewPlayer(stream)
	if err != nil {
		return fmt.Errorf("audio: new player: %w", err)
	}
	player.Play()
	p.player = player
	return nil
}

// Close stops playback. The downloaded clip is kept for the next Play.
func (p *ClipPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return nil
	}
	err := p.player.Close()
	p.player = nil
	return err
}

// decode turns the clip into a PCM stream. A clip that cannot be decoded will
// never play, so every failure wraps logic.ErrUnavailable.
func decode(c Clip) (io.Reader, error) {
	src := bytes.NewReader(c.Data)
	switch c.Format {
	case FormatWAV:
		s, err := wav.DecodeWithSampleRate(SampleRate, src)
		if err != nil {
			return nil, fmt.Errorf("audio: decode wav: %v: %w", err, logic.ErrUnavailable)
		}
		return s, nil
	case FormatMP3:
		s, err := mp3.DecodeWithSampleRate(SampleRate, src)
		if err != nil {
			return nil, fmt.Errorf("audio: decode mp3: %v: %w", err, logic.ErrUnavailable)
		}
		return s, nil
	}
	return nil, fmt.Errorf("audio: unsupported format %q: %w", c.Format, logic.ErrUnavailable)
}
