package audio

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// FFmpegCapture records from a PulseAudio/PipeWire source by shelling
// out to ffmpeg, and probes durations with ffprobe. Recording is
// finalized by sending ffmpeg SIGINT so it closes the container cleanly.
type FFmpegCapture struct {
	source     string
	sampleRate int

	mutex sync.Mutex
	cmd   *exec.Cmd
}

// NewFFmpegCapture creates a capture transport reading from the named
// pulse source at the given sample rate.
func NewFFmpegCapture(source string, sampleRate int) *FFmpegCapture {
	return &FFmpegCapture{
		source:     source,
		sampleRate: sampleRate,
	}
}

// Check verifies ffmpeg is installed and the capture source is readable.
// Either failure means recording cannot start.
func (c *FFmpegCapture) Check() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	// A zero-length capture is the cheapest way to learn whether the
	// source can actually be opened by this user.
	probe := exec.Command("ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-f", "pulse", "-i", c.source,
		"-t", "0", "-f", "null", "-")
	var stderr strings.Builder
	probe.Stderr = &stderr
	if err := probe.Run(); err != nil {
		return fmt.Errorf("capture source %q is not accessible: %s", c.source, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Start launches ffmpeg writing captured audio to dest.
func (c *FFmpegCapture) Start(dest string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.cmd != nil {
		return fmt.Errorf("capture already running")
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "pulse", "-i", c.source,
		"-ar", strconv.Itoa(c.sampleRate),
		"-ac", "1",
		"-y", dest,
	}
	cmd := exec.Command("ffmpeg", args...)
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	c.cmd = cmd
	slog.Debug("ffmpeg capture started", "source", c.source, "dest", dest, "pid", cmd.Process.Pid)
	return nil
}

// Stop interrupts ffmpeg and waits for it to finalize the container.
func (c *FFmpegCapture) Stop() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.cmd == nil {
		return nil
	}
	cmd := c.cmd
	c.cmd = nil

	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return fmt.Errorf("failed to interrupt ffmpeg: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
		// ffmpeg exits non-zero on SIGINT; the file is still finalized.
	case <-time.After(5 * time.Second):
		cmd.Process.Kill()
		<-done
		return fmt.Errorf("ffmpeg did not finalize within 5s, killed")
	}

	slog.Debug("ffmpeg capture stopped")
	return nil
}

// Probe returns the duration of a finalized audio file in milliseconds
// using ffprobe. Unknown durations are reported as 0 without error.
func (c *FFmpegCapture) Probe(path string) (int64, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return 0, nil
	}

	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, nil
	}
	return int64(seconds * 1000), nil
}
