package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/PizzaHomicide/marquee/internal/log"
)

// Property observation ids registered with mpv
const (
	observePlaybackTime = 1
	observeDuration     = 2
	observePause        = 3
)

// MPVIPCClient provides communication with a running MPV instance
type MPVIPCClient struct {
	socketPath string
	dial       func(ctx context.Context, path string) (net.Conn, error)

	mu        sync.Mutex
	conn      net.Conn
	writeMu   sync.Mutex
	nextID    int
	pending   map[int]chan MPVEvent
	connected bool

	events chan MPVEvent
	done   chan struct{}
}

// MPVEvent represents a message from MPV.  Events carry Event; command replies carry RequestID and Error.
type MPVEvent struct {
	Event     string          `json:"event,omitempty"`
	ID        int             `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	RequestID int             `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// NewMPVIPCClient creates a new MPV IPC client
func NewMPVIPCClient(socketPath string) *MPVIPCClient {
	return &MPVIPCClient{
		socketPath: socketPath,
		dial:       dialIPC,
		pending:    make(map[int]chan MPVEvent),
		events:     make(chan MPVEvent, 100),
		done:       make(chan struct{}),
	}
}

// Connect establishes a connection with MPV
func (c *MPVIPCClient) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx, c.socketPath)
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

func (c *MPVIPCClient) attach(conn net.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	go c.readEvents(conn)
}

// WaitForConnection attempts to connect to MPV with retries
func (c *MPVIPCClient) WaitForConnection(ctx context.Context, maxAttempts int, retryDelay time.Duration) error {
	log.Debug("Waiting for MPV to create socket", "socket_path", c.socketPath, "max_attempts", maxAttempts)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ready := true
		if socketIsFile {
			if _, err := os.Stat(c.socketPath); errors.Is(err, os.ErrNotExist) {
				log.Debug("MPV socket does not exist yet", "attempt", attempt, "path", c.socketPath)
				ready = false
			}
		}

		if ready {
			err := c.Connect(ctx)
			if err == nil {
				log.Info("Successfully connected to MPV", "attempt", attempt)
				return nil
			}
			log.Debug("Failed to connect to MPV", "attempt", attempt, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	return fmt.Errorf("failed to connect to MPV after %d attempts", maxAttempts)
}

// Close closes the connection to MPV
func (c *MPVIPCClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// readEvents continuously reads messages from MPV, answering pending commands and forwarding everything else
func (c *MPVIPCClient) readEvents(conn net.Conn) {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		close(c.done)
		close(c.events)
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		log.Trace("Raw MPV event", "data", string(line))

		var event MPVEvent
		if err := json.Unmarshal(line, &event); err != nil {
			log.Error("Failed to unmarshal MPV event", "error", err)
			continue
		}

		if event.Event == "" && event.RequestID != 0 {
			c.mu.Lock()
			reply, ok := c.pending[event.RequestID]
			c.mu.Unlock()
			if ok {
				reply <- event
			}
			continue
		}

		select {
		case c.events <- event:
		default:
			log.Warn("MPV event buffer full, dropping event", "event", event.Event)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Debug("Error reading from MPV socket", "error", err)
	}
	log.Debug("MPV event reader stopped")
}

// Events returns the channel for MPV events.  Closed when the connection ends.
func (c *MPVIPCClient) Events() <-chan MPVEvent {
	return c.events
}

// Command sends a command to MPV and waits for its reply
func (c *MPVIPCClient) Command(ctx context.Context, args ...any) (json.RawMessage, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, fmt.Errorf("not connected to MPV: %w", ErrNotStarted)
	}
	c.nextID++
	id := c.nextID
	reply := make(chan MPVEvent, 1)
	c.pending[id] = reply
	conn := c.conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(map[string]any{
		"command":    args,
		"request_id": id,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	c.writeMu.Lock()
	_, err = conn.Write(append(data, '\n'))
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrBridgeClosed
	case resp := <-reply:
		if resp.Error != "" && resp.Error != "success" {
			return nil, fmt.Errorf("mpv %v: %s", args[0], resp.Error)
		}
		return resp.Data, nil
	}
}

// ObserveProperty starts observing an MPV property
func (c *MPVIPCClient) ObserveProperty(ctx context.Context, id int, name string) error {
	_, err := c.Command(ctx, "observe_property", id, name)
	return err
}

// SetProperty sets an MPV property
func (c *MPVIPCClient) SetProperty(ctx context.Context, name string, value any) error {
	_, err := c.Command(ctx, "set_property", name, value)
	return err
}

// SeekRelative moves playback by the given number of seconds
func (c *MPVIPCClient) SeekRelative(ctx context.Context, secs float64) error {
	_, err := c.Command(ctx, "seek", secs, "relative")
	return err
}

// Quit asks MPV to exit
func (c *MPVIPCClient) Quit(ctx context.Context) error {
	_, err := c.Command(ctx, "quit")
	return err
}
