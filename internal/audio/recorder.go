// Package audio provides the microphone recorder and speaker clip player
// used by the audio probe.
package audio

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/sweeney/phone-diagnostics/internal/logic"
)

// DefaultRecorderBinary captures from the default ALSA device.
const DefaultRecorderBinary = "arecord"

// ExecRecorder records through an external capture tool.
type ExecRecorder struct {
	binary  string
	outPath string

	lookPath func(string) (string, error)
	command  func(name string, args ...string) *exec.Cmd

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewExecRecorder creates a recorder writing to outPath using the default binary.
// An empty outPath records into the system temp directory.
func NewExecRecorder(outPath string) *ExecRecorder {
	return newExecRecorder(DefaultRecorderBinary, outPath, exec.LookPath, exec.Command)
}

func newExecRecorder(
	binary, outPath string,
	lookPath func(string) (string, error),
	command func(string, ...string) *exec.Cmd,
) *ExecRecorder {
	if outPath == "" {
		outPath = filepath.Join(os.TempDir(), "phone-diag-mic.wav")
	}
	return &ExecRecorder{
		binary:   binary,
		outPath:  outPath,
		lookPath: lookPath,
		command:  command,
	}
}

// Args returns the capture arguments (16 kHz mono, 16-bit).
func (r *ExecRecorder) Args() []string {
	return []string{"-q", "-f", "S16_LE", "-r", "16000", "-c", "1", r.outPath}
}

// Start spawns the capture process.
func (r *ExecRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return errors.New("audio: recording already active")
	}

	path, err := r.lookPath(r.binary)
	if err != nil {
		return fmt.Errorf("audio: %s not found: %v: %w", r.binary, err, logic.ErrUnavailable)
	}

	cmd := r.command(path, r.Args()...)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, os.ErrPermission) || errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("audio: start %s: %v: %w", r.binary, err, logic.ErrUnavailable)
		}
		return fmt.Errorf("audio: start %s: %w", r.binary, err)
	}
	r.cmd = cmd
	log.Printf("audio: recording to %s (pid %d)", r.outPath, cmd.Process.Pid)
	return nil
}

// Stop interrupts the capture process and waits for it to exit.
// Stopping with no active recording is a no-op.
func (r *ExecRecorder) Stop() error {
	r.mu.Lock()
	cmd := r.cmd
	r.cmd = nil
	r.mu.Unlock()
	if cmd == nil {
		return nil
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		_ = cmd.Process.Kill()
	}
	err := cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("audio: wait %s: %w", r.binary, err)
	}
	// Exiting on our interrupt is the normal way out.
	return nil
}

// Active reports whether a recording is in progress.
func (r *ExecRecorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd != nil
}
