package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/sweeney/phone-diagnostics/internal/logic"
)

// SampleRate is the playback rate for the shared audio context.
const SampleRate = 44100

// maxClipBytes caps the downloaded clip.
const maxClipBytes = 16 << 20

// Format is a supported clip encoding.
type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// DetectFormat picks the decoder from the content type, falling back to the
// URL extension.
func DetectFormat(contentType, url string) (Format, error) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "wav"):
		return FormatWAV, nil
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"):
		return FormatMP3, nil
	}
	u := url
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	switch strings.ToLower(path.Ext(u)) {
	case ".wav":
		return FormatWAV, nil
	case ".mp3":
		return FormatMP3, nil
	}
	return "", fmt.Errorf("audio: unsupported clip format %q (%s)", contentType, url)
}

// Clip is a downloaded test tone.
type Clip struct {
	Data   []byte
	Format Format
}

// FetchClip downloads the clip at url. A clip the server does not have maps
// to ErrUnavailable; network failures stay transient.
func FetchClip(ctx context.Context, client *http.Client, url string) (Clip, error) {
	if url == "" {
		return Clip{}, fmt.Errorf("audio: no clip configured: %w", logic.ErrUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Clip{}, fmt.Errorf("audio: clip request: %v: %w", err, logic.ErrUnavailable)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Clip{}, fmt.Errorf("audio: fetch clip: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return Clip{}, fmt.Errorf("audio: fetch clip: %s: %w", resp.Status, logic.ErrUnavailable)
	case resp.StatusCode != http.StatusOK:
		return Clip{}, fmt.Errorf("audio: fetch clip: %s", resp.Status)
	}

	format, err := DetectFormat(resp.Header.Get("Content-Type"), url)
	if err != nil {
		return Clip{}, fmt.Errorf("%v: %w", err, logic.ErrUnavailable)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxClipBytes+1))
	if err != nil {
		return Clip{}, fmt.Errorf("audio: read clip: %w", err)
	}
	if len(data) > maxClipBytes {
		return Clip{}, fmt.Errorf("audio: clip larger than %d bytes: %w", maxClipBytes, logic.ErrUnavailable)
	}
	if len(data) == 0 {
		return Clip{}, fmt.Errorf("audio: empty clip: %w", logic.ErrUnavailable)
	}
	return Clip{Data: data, Format: format}, nil
}
