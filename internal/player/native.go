package player

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/PizzaHomicide/marquee/internal/bus"
	"github.com/PizzaHomicide/marquee/internal/episode"
	"github.com/PizzaHomicide/marquee/internal/log"
	"github.com/PizzaHomicide/marquee/internal/platform"
)

// BridgeClient speaks the native container's JSON lines protocol.  Requests are {id, method, params}; the container
// pushes timeupdate {currentTime, completed, duration} and stopped events.
type BridgeClient struct {
	peer *rpcPeer
}

// BridgeStartParams is the payload of the start method
type BridgeStartParams struct {
	URL       string            `json:"url"`
	Title     string            `json:"title"`
	StartTime float64           `json:"startTime"`
	Autoplay  bool              `json:"autoplay"`
	Chapters  []episode.Chapter `json:"chapters"`
}

// BridgeStartReply is the container's answer to start
type BridgeStartReply struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type bridgeTimeUpdate struct {
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
	Completed   bool    `json:"completed"`
}

// DialBridge connects to the container socket at path
func DialBridge(ctx context.Context, path string, handler func(Event)) (*BridgeClient, error) {
	conn, err := dialIPC(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewBridgeClient(conn, handler), nil
}

// NewBridgeClient wraps an established connection.  handler receives the container's events.
func NewBridgeClient(conn net.Conn, handler func(Event)) *BridgeClient {
	onEvent := func(name string, data json.RawMessage) {
		switch name {
		case "timeupdate":
			var update bridgeTimeUpdate
			if err := json.Unmarshal(data, &update); err != nil {
				log.Warn("Failed to parse bridge timeupdate", "error", err)
				return
			}
			event := Event{Type: EventPositionTick, Position: fromSeconds(update.CurrentTime), Duration: fromSeconds(update.Duration)}
			if update.Completed {
				event.Type = EventCompleted
			}
			handler(event)
		case "stopped":
			handler(Event{Type: EventStoppedExternally})
		default:
			log.Trace("Ignoring bridge event", "event", name)
		}
	}
	onClose := func() {
		handler(Event{Type: EventStoppedExternally})
	}
	return &BridgeClient{peer: newRPCPeer(newLineFrames(conn), onEvent, onClose)}
}

func (c *BridgeClient) Start(ctx context.Context, params BridgeStartParams) (BridgeStartReply, error) {
	var reply BridgeStartReply
	err := c.peer.Call(ctx, "start", params, &reply)
	return reply, err
}

func (c *BridgeClient) Stop(ctx context.Context) error {
	return c.peer.Call(ctx, "stop", nil, nil)
}

func (c *BridgeClient) Pause(ctx context.Context) error {
	return c.peer.Call(ctx, "pause", nil, nil)
}

func (c *BridgeClient) Resume(ctx context.Context) error {
	return c.peer.Call(ctx, "resume", nil, nil)
}

func (c *BridgeClient) Seek(ctx context.Context, delta time.Duration) error {
	return c.peer.Call(ctx, "seek", map[string]float64{"delta": seconds(delta)}, nil)
}

func (c *BridgeClient) Close() error {
	return c.peer.Close()
}

// NativeBackend passes playback through to the mobile or TV container's player
type NativeBackend struct {
	kind   platform.Kind
	socket string
	dial   func(ctx context.Context, path string, handler func(Event)) (*BridgeClient, error)
	topic  bus.Topic[Event]

	// The container's stop is not reliably idempotent, so Stop retries with linear backoff
	stopAttempts int
	stopBackoff  time.Duration

	mu      sync.Mutex
	client  *BridgeClient
	started bool
	stopped bool
}

// NewNativeBackend creates a backend for kind talking to the container listening on socket
func NewNativeBackend(kind platform.Kind, socket string) *NativeBackend {
	return &NativeBackend{
		kind:         kind,
		socket:       socket,
		dial:         DialBridge,
		stopAttempts: 3,
		stopBackoff:  200 * time.Millisecond,
	}
}

func (b *NativeBackend) Kind() platform.Kind {
	return b.kind
}

func (b *NativeBackend) bridge(ctx context.Context) (*BridgeClient, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}
	client, err := b.dial(ctx, b.socket, b.handle)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s bridge: %w", b.kind, err)
	}
	b.client = client
	return client, nil
}

func (b *NativeBackend) handle(event Event) {
	if event.Type == EventStoppedExternally {
		b.mu.Lock()
		b.stopped = true
		b.mu.Unlock()
	}
	b.topic.Publish(event)
}

func (b *NativeBackend) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	client, err := b.bridge(ctx)
	if err != nil {
		return StartResult{}, err
	}

	log.Info("Starting native playback", "kind", b.kind, "url", req.URL, "chapters", len(req.Chapters))
	reply, err := client.Start(ctx, BridgeStartParams{
		URL:       req.URL,
		Title:     req.Title,
		StartTime: seconds(req.StartOffset),
		Autoplay:  req.Autoplay,
		Chapters:  req.Chapters,
	})
	if err != nil {
		return StartResult{}, fmt.Errorf("bridge start failed: %w", err)
	}
	if !reply.Success {
		return StartResult{Success: false, Message: reply.Message}, nil
	}

	b.mu.Lock()
	b.started = true
	b.stopped = false
	b.mu.Unlock()
	return StartResult{Success: true, Message: reply.Message, Playing: req.Autoplay}, nil
}

func (b *NativeBackend) live() (*BridgeClient, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started || b.stopped || b.client == nil {
		return nil, ErrNotStarted
	}
	return b.client, nil
}

func (b *NativeBackend) Pause(ctx context.Context) error {
	client, err := b.live()
	if err != nil {
		return err
	}
	return client.Pause(ctx)
}

func (b *NativeBackend) Resume(ctx context.Context) error {
	client, err := b.live()
	if err != nil {
		return err
	}
	return client.Resume(ctx)
}

func (b *NativeBackend) SeekBy(ctx context.Context, delta time.Duration) error {
	client, err := b.live()
	if err != nil {
		return err
	}
	return client.Seek(ctx, delta)
}

// Stop is a no-op before Start and after a previous successful Stop
func (b *NativeBackend) Stop(ctx context.Context) error {
	client, err := b.live()
	if err != nil {
		return nil
	}

	for attempt := 1; ; attempt++ {
		err = client.Stop(ctx)
		if err == nil {
			break
		}
		if attempt >= b.stopAttempts {
			return fmt.Errorf("bridge stop failed after %d attempts: %w", attempt, err)
		}
		log.Warn("Bridge stop failed, retrying", "kind", b.kind, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * b.stopBackoff):
		}
	}

	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
	return nil
}

func (b *NativeBackend) Subscribe(handler func(Event)) bus.Token {
	return b.topic.Subscribe(handler)
}

func (b *NativeBackend) Unsubscribe(token bus.Token) bool {
	return b.topic.Unsubscribe(token)
}

func (b *NativeBackend) Release() error {
	b.mu.Lock()
	client := b.client
	b.client = nil
	b.started = false
	b.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Close()
}
