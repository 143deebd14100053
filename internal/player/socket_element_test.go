package player

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage answers media element requests the way a browser page that blocks unmuted autoplay would
type fakePage struct {
	mu      sync.Mutex
	methods []string
	conn    *websocket.Conn
	ready   chan struct{}
	once    sync.Once
}

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (p *fakePage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	p.once.Do(func() { close(p.ready) })

	for {
		var req struct {
			ID     uint64         `json:"id"`
			Method string         `json:"method"`
			Params map[string]any `json:"params"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		p.mu.Lock()
		p.methods = append(p.methods, req.Method)
		p.mu.Unlock()

		reply := map[string]any{"id": req.ID}
		if req.Method == "play" && req.Params["muted"] == false {
			reply["error"] = notAllowedError
		}
		p.write(reply)
	}
}

func (p *fakePage) write(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.WriteJSON(v)
}

func (p *fakePage) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.methods...)
}

func TestSocketElementAutoplayLadder(t *testing.T) {
	page := &fakePage{ready: make(chan struct{})}
	srv := httptest.NewServer(page)
	defer srv.Close()

	element := NewSocketElement("ws" + strings.TrimPrefix(srv.URL, "http") + "/media")
	b := NewWebBackend(element, 10*time.Millisecond)
	defer b.Release()

	events := make(chan Event, 4)
	b.Subscribe(func(e Event) { events <- e })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := b.Start(ctx, StartRequest{URL: "https://cdn.example.test/a.mp4", Title: "Pilot", StartOffset: 5 * time.Second, Autoplay: true})
	require.NoError(t, err)
	assert.True(t, res.Playing)
	assert.True(t, res.Muted)

	assert.Eventually(t, func() bool {
		methods := page.seen()
		return len(methods) == 4 && methods[3] == "setMuted"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"load", "play", "play", "setMuted"}, page.seen())

	<-page.ready
	page.write(map[string]any{"event": "timeupdate", "data": map[string]any{"currentTime": 7.5, "duration": 60}})
	page.write(map[string]any{"event": "ended", "data": map[string]any{"currentTime": 60, "duration": 60}})

	for _, want := range []EventType{EventPositionTick, EventCompleted} {
		select {
		case got := <-events:
			assert.Equal(t, want, got.Type)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	require.NoError(t, b.Stop(ctx))
	require.NoError(t, b.Stop(ctx))
	assert.Equal(t, 1, countOf(page.seen(), "unload"))
}

func TestSocketElementDialFailure(t *testing.T) {
	element := NewSocketElement("ws://127.0.0.1:1/media")
	err := element.Load(context.Background(), "u", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to dial media element")
}

func TestRPCMessageShapes(t *testing.T) {
	data, err := json.Marshal(rpcMessage{ID: 3, Method: "play", Params: map[string]any{"muted": true}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"method":"play","params":{"muted":true}}`, string(data))
}

func countOf(values []string, target string) int {
	n := 0
	for _, v := range values {
		if v == target {
			n++
		}
	}
	return n
}
