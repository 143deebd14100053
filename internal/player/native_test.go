package player

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/PizzaHomicide/marquee/internal/episode"
	"github.com/PizzaHomicide/marquee/internal/platform"
)

type containerRequest struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// fakeContainer plays the native side of the bridge over one end of a net.Pipe
type fakeContainer struct {
	conn    net.Conn
	respond func(method string) (result any, errMsg string)

	mu       sync.Mutex
	writeMu  sync.Mutex
	requests []containerRequest
	done     chan struct{}
}

func newFakeContainer(respond func(string) (any, string)) (*fakeContainer, net.Conn) {
	server, client := net.Pipe()
	c := &fakeContainer{conn: server, respond: respond, done: make(chan struct{})}
	go c.serve()
	return c, client
}

func (c *fakeContainer) serve() {
	defer close(c.done)
	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		var req containerRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		c.mu.Lock()
		c.requests = append(c.requests, req)
		c.mu.Unlock()

		result, errMsg := c.respond(req.Method)
		msg := map[string]any{"id": req.ID}
		if errMsg != "" {
			msg["error"] = errMsg
		} else if result != nil {
			msg["result"] = result
		}
		c.write(msg)
	}
}

func (c *fakeContainer) write(msg any) {
	data, _ := json.Marshal(msg)
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, _ = c.conn.Write(append(data, '\n'))
}

func (c *fakeContainer) send(event string, data any) {
	c.write(map[string]any{"event": event, "data": data})
}

func (c *fakeContainer) count(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.requests {
		if r.Method == method {
			n++
		}
	}
	return n
}

func (c *fakeContainer) first(method string) (containerRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.requests {
		if r.Method == method {
			return r, true
		}
	}
	return containerRequest{}, false
}

func acceptAll(method string) (any, string) {
	if method == "start" {
		return BridgeStartReply{Success: true}, ""
	}
	return nil, ""
}

func newTestNativeBackend(kind platform.Kind, client net.Conn) *NativeBackend {
	b := NewNativeBackend(kind, "unused")
	b.stopBackoff = time.Millisecond
	b.dial = func(ctx context.Context, path string, handler func(Event)) (*BridgeClient, error) {
		return NewBridgeClient(client, handler), nil
	}
	return b
}

func TestNativeBackendStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	container, client := newFakeContainer(acceptAll)
	b := newTestNativeBackend(platform.KindTVNative, client)
	ctx := context.Background()

	res, err := b.Start(ctx, StartRequest{
		URL:         "https://cdn.example.test/a.m3u8",
		Title:       "Pilot",
		StartOffset: 42 * time.Second,
		Autoplay:    true,
		Chapters:    []episode.Chapter{{Number: 1, URL: "a"}, {Number: 2, URL: "b"}},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Playing)
	assert.Equal(t, platform.KindTVNative, b.Kind())

	req, ok := container.first("start")
	require.True(t, ok)
	var params BridgeStartParams
	require.NoError(t, json.Unmarshal(req.Params, &params))
	assert.Equal(t, "Pilot", params.Title)
	assert.Equal(t, 42.0, params.StartTime)
	assert.Len(t, params.Chapters, 2)

	require.NoError(t, b.Pause(ctx))
	require.NoError(t, b.Resume(ctx))
	require.NoError(t, b.SeekBy(ctx, -10*time.Second))
	assert.Equal(t, 1, container.count("seek"))

	require.NoError(t, b.Release())
	<-container.done
}

func TestNativeBackendStartRejected(t *testing.T) {
	container, client := newFakeContainer(func(method string) (any, string) {
		return BridgeStartReply{Success: false, Message: "no codec"}, ""
	})
	b := newTestNativeBackend(platform.KindMobileNative, client)

	res, err := b.Start(context.Background(), StartRequest{URL: "u"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "no codec", res.Message)

	// nothing started, so nothing to stop
	require.NoError(t, b.Stop(context.Background()))
	assert.Equal(t, 0, container.count("stop"))
	require.NoError(t, b.Release())
}

func TestNativeBackendStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	container, client := newFakeContainer(acceptAll)
	b := newTestNativeBackend(platform.KindMobileNative, client)
	ctx := context.Background()

	require.NoError(t, b.Stop(ctx))

	_, err := b.Start(ctx, StartRequest{URL: "u", Autoplay: true})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, b.Stop(ctx))
	}
	assert.Equal(t, 1, container.count("stop"))
	assert.ErrorIs(t, b.Pause(ctx), ErrNotStarted)

	require.NoError(t, b.Release())
	<-container.done
}

func TestNativeBackendStopRetries(t *testing.T) {
	t.Run("RecoversWithinBudget", func(t *testing.T) {
		var mu sync.Mutex
		failures := 2
		container, client := newFakeContainer(func(method string) (any, string) {
			if method == "stop" {
				mu.Lock()
				defer mu.Unlock()
				if failures > 0 {
					failures--
					return nil, "player busy"
				}
			}
			return acceptAll(method)
		})
		b := newTestNativeBackend(platform.KindMobileNative, client)
		ctx := context.Background()

		_, err := b.Start(ctx, StartRequest{URL: "u"})
		require.NoError(t, err)
		require.NoError(t, b.Stop(ctx))
		assert.Equal(t, 3, container.count("stop"))
		require.NoError(t, b.Release())
	})

	t.Run("GivesUp", func(t *testing.T) {
		container, client := newFakeContainer(func(method string) (any, string) {
			if method == "stop" {
				return nil, "player busy"
			}
			return acceptAll(method)
		})
		b := newTestNativeBackend(platform.KindMobileNative, client)
		ctx := context.Background()

		_, err := b.Start(ctx, StartRequest{URL: "u"})
		require.NoError(t, err)

		err = b.Stop(ctx)
		var remote *RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, "player busy", remote.Message)
		assert.Equal(t, 3, container.count("stop"))
		require.NoError(t, b.Release())
	})
}

func TestNativeBackendEvents(t *testing.T) {
	container, client := newFakeContainer(acceptAll)
	b := newTestNativeBackend(platform.KindMobileNative, client)
	ctx := context.Background()

	events := make(chan Event, 8)
	b.Subscribe(func(e Event) { events <- e })

	_, err := b.Start(ctx, StartRequest{URL: "u", Autoplay: true})
	require.NoError(t, err)

	container.send("timeupdate", map[string]any{"currentTime": 12.5, "duration": 100})
	container.send("timeupdate", map[string]any{"currentTime": 100, "duration": 100, "completed": true})
	container.send("stopped", nil)

	expect := []Event{
		{Type: EventPositionTick, Position: 12500 * time.Millisecond, Duration: 100 * time.Second},
		{Type: EventCompleted, Position: 100 * time.Second, Duration: 100 * time.Second},
		{Type: EventStoppedExternally},
	}
	for _, want := range expect {
		select {
		case got := <-events:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want.Type)
		}
	}

	// the container already stopped on its own, so teardown does not ask again
	require.NoError(t, b.Stop(ctx))
	assert.Equal(t, 0, container.count("stop"))
	require.NoError(t, b.Release())
}

func TestNativeBackendConnectionLoss(t *testing.T) {
	container, client := newFakeContainer(acceptAll)
	b := newTestNativeBackend(platform.KindMobileNative, client)

	events := make(chan Event, 1)
	b.Subscribe(func(e Event) { events <- e })

	_, err := b.Start(context.Background(), StartRequest{URL: "u"})
	require.NoError(t, err)

	require.NoError(t, container.conn.Close())
	select {
	case got := <-events:
		assert.Equal(t, EventStoppedExternally, got.Type)
	case <-time.After(time.Second):
		t.Fatal("connection loss was not reported")
	}
	assert.ErrorIs(t, b.Resume(context.Background()), ErrNotStarted)
	require.NoError(t, b.Release())
}
