package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PizzaHomicide/marquee/internal/log"
)

// Error name the page reports when the browser blocks play() without a user gesture
const notAllowedError = "NotAllowedError"

// SocketElement is a MediaElement living in a browser page, reached over a websocket.  The page answers requests
// {id, method, params} with {id, result|error} and pushes {event, data} for timeupdate, ended and emptied.
type SocketElement struct {
	url    string
	dialer *websocket.Dialer

	mu      sync.Mutex
	peer    *rpcPeer
	handler func(Event)
}

// NewSocketElement creates an element that dials url on first use
func NewSocketElement(url string) *SocketElement {
	return &SocketElement{
		url:    url,
		dialer: websocket.DefaultDialer,
	}
}

type elementTimeUpdate struct {
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
}

func (e *SocketElement) connect(ctx context.Context) (*rpcPeer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.peer != nil {
		return e.peer, nil
	}

	conn, resp, err := e.dialer.DialContext(ctx, e.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial media element at %s: %w", e.url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	log.Debug("Connected to media element", "url", e.url)

	e.peer = newRPCPeer(&wsFrames{conn: conn}, e.dispatch, func() {
		e.emit(Event{Type: EventStoppedExternally})
	})
	return e.peer, nil
}

func (e *SocketElement) dispatch(name string, data json.RawMessage) {
	switch name {
	case "timeupdate", "ended":
		var update elementTimeUpdate
		if len(data) > 0 {
			if err := json.Unmarshal(data, &update); err != nil {
				log.Warn("Failed to parse media element event", "event", name, "error", err)
				return
			}
		}
		eventType := EventPositionTick
		if name == "ended" {
			eventType = EventCompleted
		}
		e.emit(Event{Type: eventType, Position: fromSeconds(update.CurrentTime), Duration: fromSeconds(update.Duration)})
	case "emptied":
		e.emit(Event{Type: EventStoppedExternally})
	default:
		log.Trace("Ignoring media element event", "event", name)
	}
}

func (e *SocketElement) emit(event Event) {
	e.mu.Lock()
	handler := e.handler
	e.mu.Unlock()
	if handler != nil {
		handler(event)
	}
}

func (e *SocketElement) call(ctx context.Context, method string, params any) error {
	peer, err := e.connect(ctx)
	if err != nil {
		return err
	}
	err = peer.Call(ctx, method, params, nil)
	var remote *RemoteError
	if errors.As(err, &remote) && remote.Message == notAllowedError {
		return ErrAutoplayRejected
	}
	return err
}

func (e *SocketElement) Load(ctx context.Context, url, title string, start time.Duration) error {
	return e.call(ctx, "load", map[string]any{"src": url, "title": title, "currentTime": seconds(start)})
}

func (e *SocketElement) Play(ctx context.Context, muted bool) error {
	return e.call(ctx, "play", map[string]any{"muted": muted})
}

func (e *SocketElement) SetMuted(ctx context.Context, muted bool) error {
	return e.call(ctx, "setMuted", map[string]any{"muted": muted})
}

func (e *SocketElement) Pause(ctx context.Context) error {
	return e.call(ctx, "pause", nil)
}

func (e *SocketElement) SeekBy(ctx context.Context, delta time.Duration) error {
	return e.call(ctx, "seekBy", map[string]any{"delta": seconds(delta)})
}

func (e *SocketElement) Unload(ctx context.Context) error {
	return e.call(ctx, "unload", nil)
}

func (e *SocketElement) Listen(handler func(Event)) {
	e.mu.Lock()
	e.handler = handler
	e.mu.Unlock()
}

func (e *SocketElement) Close() error {
	e.mu.Lock()
	peer := e.peer
	e.peer = nil
	e.mu.Unlock()
	if peer == nil {
		return nil
	}
	return peer.Close()
}
