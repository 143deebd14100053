//go:build !windows

package player

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PizzaHomicide/marquee/internal/config"
	"github.com/PizzaHomicide/marquee/internal/episode"
	"github.com/PizzaHomicide/marquee/internal/platform"
)

// fakeMPV accepts one IPC connection and acknowledges every command
type fakeMPV struct {
	listener net.Listener

	mu       sync.Mutex
	conn     net.Conn
	commands []string
	args     []string
	accepted chan struct{}
}

func (m *fakeMPV) start(socket string, cmd *exec.Cmd) error {
	listener, err := net.Listen("unix", socket)
	if err != nil {
		return err
	}
	m.listener = listener
	m.args = cmd.Args
	go m.serve()
	return nil
}

func (m *fakeMPV) serve() {
	conn, err := m.listener.Accept()
	if err != nil {
		return
	}
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	close(m.accepted)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var req struct {
			Command   []any `json:"command"`
			RequestID int   `json:"request_id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		name, _ := req.Command[0].(string)
		m.mu.Lock()
		m.commands = append(m.commands, name)
		m.mu.Unlock()

		m.send(map[string]any{"request_id": req.RequestID, "error": "success"})
		if name == "quit" {
			_ = conn.Close()
			return
		}
	}
}

func (m *fakeMPV) send(v any) {
	data, _ := json.Marshal(v)
	m.mu.Lock()
	defer m.mu.Unlock()
	_, _ = m.conn.Write(append(data, '\n'))
}

func (m *fakeMPV) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

func newTestDesktopBackend(t *testing.T) (*DesktopBackend, *fakeMPV) {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "mpv.sock")
	fake := &fakeMPV{accepted: make(chan struct{})}
	t.Cleanup(func() {
		if fake.listener != nil {
			_ = fake.listener.Close()
		}
	})

	b := NewDesktopBackend(config.MPVConfig{Path: "mpv", Args: "--fs", Socket: socket})
	b.startProcess = func(cmd *exec.Cmd) error { return fake.start(socket, cmd) }
	return b, fake
}

func TestDesktopBackendLifecycle(t *testing.T) {
	b, fake := newTestDesktopBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Equal(t, platform.KindEmbeddedDesktop, b.Kind())

	events := make(chan Event, 8)
	b.Subscribe(func(e Event) { events <- e })

	res, err := b.Start(ctx, StartRequest{URL: "https://cdn.example.test/a.mkv", Title: "Pilot", StartOffset: 90 * time.Second, Autoplay: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, fake.args, "--start=90.000")
	assert.Contains(t, fake.args, "--force-media-title=Pilot")
	assert.Contains(t, fake.args, "--fs")
	assert.Equal(t, "https://cdn.example.test/a.mkv", fake.args[len(fake.args)-1])
	assert.Equal(t, []string{"observe_property", "observe_property"}, fake.seen())

	require.NoError(t, b.Pause(ctx))
	require.NoError(t, b.SeekBy(ctx, 10*time.Second))

	<-fake.accepted
	fake.send(map[string]any{"event": "property-change", "id": observeDuration, "name": "duration", "data": 100.0})
	fake.send(map[string]any{"event": "property-change", "id": observePlaybackTime, "name": "playback-time", "data": 50.0})
	fake.send(map[string]any{"event": "end-file", "reason": "eof"})

	select {
	case got := <-events:
		assert.Equal(t, Event{Type: EventPositionTick, Position: 50 * time.Second, Duration: 100 * time.Second}, got)
	case <-time.After(time.Second):
		t.Fatal("no position tick")
	}
	select {
	case got := <-events:
		assert.Equal(t, EventCompleted, got.Type)
	case <-time.After(time.Second):
		t.Fatal("no completion")
	}

	// playback already ended, so stop has nothing to ask of mpv
	require.NoError(t, b.Stop(ctx))
	assert.NotContains(t, fake.seen(), "quit")
	require.NoError(t, b.Release())
}

func TestDesktopBackendPlaysOnlyCurrentChapter(t *testing.T) {
	b := NewDesktopBackend(config.MPVConfig{Socket: "/tmp/marquee-test.sock"})
	args := b.buildArgs(StartRequest{
		URL:      "https://cdn.example.test/b.mkv",
		Autoplay: true,
		Chapters: []episode.Chapter{
			{Number: 1, URL: "https://cdn.example.test/a.mkv"},
			{Number: 2, URL: "https://cdn.example.test/b.mkv"},
			{Number: 3, URL: "https://cdn.example.test/c.mkv"},
		},
	})

	assert.Equal(t, "https://cdn.example.test/b.mkv", args[len(args)-1])
	assert.Contains(t, args, "--keep-open=no")
	for _, arg := range args {
		assert.NotContains(t, arg, "a.mkv")
		assert.NotContains(t, arg, "c.mkv")
		assert.NotContains(t, arg, "--playlist")
	}
}

func TestDesktopBackendStopQuitsOnce(t *testing.T) {
	b, fake := newTestDesktopBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan Event, 8)
	b.Subscribe(func(e Event) { events <- e })

	require.NoError(t, b.Stop(ctx), "stop before start is a no-op")

	_, err := b.Start(ctx, StartRequest{URL: "u", Autoplay: false})
	require.NoError(t, err)
	assert.Contains(t, fake.args, "--pause")

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Stop(ctx))
	}
	require.NoError(t, b.Release())

	assert.Equal(t, 1, countOf(fake.seen(), "quit"))
	select {
	case got := <-events:
		t.Fatalf("requested stop must not be reported as external: %v", got)
	default:
	}
}

func TestDesktopBackendStartFailure(t *testing.T) {
	b, _ := newTestDesktopBackend(t)
	b.startProcess = func(cmd *exec.Cmd) error { return exec.ErrNotFound }

	_, err := b.Start(context.Background(), StartRequest{URL: "u"})
	require.ErrorIs(t, err, exec.ErrNotFound)
	assert.ErrorIs(t, b.Pause(context.Background()), ErrNotStarted)
}
