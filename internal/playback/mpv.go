package playback

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MPVTransport plays one source through an mpv process controlled over
// its JSON IPC socket. The socket is what allows live rate changes and
// pause/resume without reloading; mpv's scaletempo keeps pitch constant
// across speed changes.
type MPVTransport struct {
	binary string

	mutex   sync.Mutex
	cmd     *exec.Cmd
	conn    net.Conn
	scanner *bufio.Scanner
	socket  string
	reqID   int
	done     chan struct{}
	doneOnce sync.Once
	stopped  bool
}

// closeDone releases anyone waiting on Done. Idempotent.
func (t *MPVTransport) closeDone() {
	t.doneOnce.Do(func() { close(t.done) })
}

// NewMPVTransport creates a transport that will launch the given player
// binary (normally "mpv").
func NewMPVTransport(binary string) *MPVTransport {
	return &MPVTransport{
		binary: binary,
		done:   make(chan struct{}),
	}
}

type mpvResponse struct {
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	RequestID int             `json:"request_id"`
	Event     string          `json:"event"`
}

// Load starts mpv on the given path at the given speed and connects to
// its IPC socket.
func (t *MPVTransport) Load(path string, rate float64) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, err := exec.LookPath(t.binary); err != nil {
		return fmt.Errorf("player %q not found in PATH: %w", t.binary, err)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audio file not found: %s", path)
	}

	t.socket = filepath.Join(os.TempDir(), "voicenote-mpv-"+uuid.NewString()+".sock")
	cmd := exec.Command(t.binary,
		"--no-video",
		"--really-quiet",
		"--audio-pitch-correction=yes",
		fmt.Sprintf("--speed=%g", rate),
		"--input-ipc-server="+t.socket,
		path)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", t.binary, err)
	}
	t.cmd = cmd

	go func() {
		cmd.Wait()
		t.closeDone()
	}()

	conn, err := t.dialSocket(2 * time.Second)
	if err != nil {
		cmd.Process.Kill()
		return fmt.Errorf("failed to connect to player IPC socket: %w", err)
	}
	t.conn = conn
	t.scanner = bufio.NewScanner(conn)

	slog.Debug("Player started", "binary", t.binary, "path", path, "rate", rate)
	return nil
}

// dialSocket waits for mpv to create its IPC socket.
func (t *MPVTransport) dialSocket(timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.Dial("unix", t.socket)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// command sends one IPC command and waits for its matching response,
// skipping interleaved event messages.
func (t *MPVTransport) command(args ...interface{}) (json.RawMessage, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.conn == nil {
		return nil, fmt.Errorf("transport not loaded")
	}

	t.reqID++
	req := map[string]interface{}{
		"command":    args,
		"request_id": t.reqID,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := t.conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("IPC write failed: %w", err)
	}

	t.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for t.scanner.Scan() {
		var resp mpvResponse
		if err := json.Unmarshal(t.scanner.Bytes(), &resp); err != nil {
			continue
		}
		if resp.Event != "" || resp.RequestID != t.reqID {
			continue
		}
		if resp.Error != "success" {
			return nil, fmt.Errorf("player rejected command: %s", resp.Error)
		}
		return resp.Data, nil
	}
	if err := t.scanner.Err(); err != nil {
		return nil, fmt.Errorf("IPC read failed: %w", err)
	}
	return nil, fmt.Errorf("IPC connection closed")
}

func (t *MPVTransport) setProperty(name string, value interface{}) error {
	_, err := t.command("set_property", name, value)
	return err
}

func (t *MPVTransport) getFloat(name string) (float64, error) {
	data, err := t.command("get_property", name)
	if err != nil {
		return 0, err
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func (t *MPVTransport) Pause() error {
	return t.setProperty("pause", true)
}

func (t *MPVTransport) Resume() error {
	return t.setProperty("pause", false)
}

func (t *MPVTransport) SetRate(rate float64) error {
	return t.setProperty("speed", rate)
}

// Position reports playback position and total duration in milliseconds.
func (t *MPVTransport) Position() (int64, int64, error) {
	pos, err := t.getFloat("playback-time")
	if err != nil {
		return 0, 0, err
	}
	total, err := t.getFloat("duration")
	if err != nil {
		return 0, 0, err
	}
	return int64(pos * 1000), int64(total * 1000), nil
}

// Stop tears the player down: quit over IPC if possible, kill otherwise,
// and clean up the socket. Safe to call more than once.
func (t *MPVTransport) Stop() error {
	t.mutex.Lock()
	if t.stopped {
		t.mutex.Unlock()
		return nil
	}
	t.stopped = true
	conn := t.conn
	cmd := t.cmd
	socket := t.socket
	t.conn = nil
	t.mutex.Unlock()

	if conn != nil {
		// Best effort; the kill below is the backstop.
		conn.SetWriteDeadline(time.Now().Add(500 * time.Millisecond))
		conn.Write([]byte(`{"command":["quit"]}` + "\n"))
		conn.Close()
	}
	if cmd != nil && cmd.Process != nil {
		waited := make(chan struct{})
		go func() {
			cmd.Process.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-time.After(time.Second):
			cmd.Process.Kill()
		}
	}
	if socket != "" {
		os.Remove(socket)
	}
	t.closeDone()
	return nil
}

func (t *MPVTransport) Done() <-chan struct{} {
	return t.done
}
