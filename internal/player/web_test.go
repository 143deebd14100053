package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PizzaHomicide/marquee/internal/platform"
)

type fakeElement struct {
	mu          sync.Mutex
	playResults []error
	plays       []bool
	muteCalls   []bool
	loads       int
	unloads     int
	closed      bool
	handler     func(Event)
}

func (e *fakeElement) Load(ctx context.Context, url, title string, start time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loads++
	return nil
}

func (e *fakeElement) Play(ctx context.Context, muted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plays = append(e.plays, muted)
	if len(e.playResults) == 0 {
		return nil
	}
	err := e.playResults[0]
	e.playResults = e.playResults[1:]
	return err
}

func (e *fakeElement) SetMuted(ctx context.Context, muted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muteCalls = append(e.muteCalls, muted)
	return nil
}

func (e *fakeElement) Pause(ctx context.Context) error                       { return nil }
func (e *fakeElement) SeekBy(ctx context.Context, delta time.Duration) error { return nil }

func (e *fakeElement) Unload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unloads++
	return nil
}

func (e *fakeElement) Listen(handler func(Event)) {
	e.handler = handler
}

func (e *fakeElement) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *fakeElement) snapshot() (plays, mutes []bool, unloads int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]bool(nil), e.plays...), append([]bool(nil), e.muteCalls...), e.unloads
}

func TestWebBackendAutoplayLadder(t *testing.T) {
	ctx := context.Background()
	req := StartRequest{URL: "https://cdn.example.test/a.m3u8", Autoplay: true}

	t.Run("UnmutedAccepted", func(t *testing.T) {
		element := &fakeElement{}
		b := NewWebBackend(element, time.Hour)

		res, err := b.Start(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, StartResult{Success: true, Playing: true}, res)
		assert.False(t, b.UnmutePending())
	})

	t.Run("MutedFallback", func(t *testing.T) {
		element := &fakeElement{playResults: []error{ErrAutoplayRejected, nil}}
		b := NewWebBackend(element, 10*time.Millisecond)

		res, err := b.Start(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.Playing)
		assert.True(t, res.Muted)
		assert.False(t, res.ManualPlayRequired)

		plays, _, _ := element.snapshot()
		assert.Equal(t, []bool{false, true}, plays)

		assert.Eventually(t, func() bool {
			_, mutes, _ := element.snapshot()
			return len(mutes) == 1 && !mutes[0]
		}, time.Second, 5*time.Millisecond, "delayed unmute never happened")
	})

	t.Run("UnmuteIsPublished", func(t *testing.T) {
		element := &fakeElement{playResults: []error{ErrAutoplayRejected, nil}}
		b := NewWebBackend(element, 10*time.Millisecond)

		unmuted := make(chan Event, 1)
		b.Subscribe(func(e Event) {
			if e.Type == EventUnmuted {
				unmuted <- e
			}
		})

		res, err := b.Start(ctx, req)
		require.NoError(t, err)
		require.True(t, res.Muted)

		select {
		case <-unmuted:
		case <-time.After(time.Second):
			t.Fatal("unmute was not published")
		}
		assert.False(t, b.UnmutePending())
	})

	t.Run("BothRejected", func(t *testing.T) {
		element := &fakeElement{playResults: []error{ErrAutoplayRejected, ErrAutoplayRejected}}
		b := NewWebBackend(element, time.Hour)

		res, err := b.Start(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.False(t, res.Playing)
		assert.True(t, res.ManualPlayRequired)
		assert.False(t, b.UnmutePending())

		// a manual resume plays with sound
		require.NoError(t, b.Resume(ctx))
		plays, _, _ := element.snapshot()
		assert.Equal(t, []bool{false, true, false}, plays)
	})

	t.Run("StopCancelsUnmute", func(t *testing.T) {
		element := &fakeElement{playResults: []error{ErrAutoplayRejected, nil}}
		b := NewWebBackend(element, 20*time.Millisecond)

		_, err := b.Start(ctx, req)
		require.NoError(t, err)
		require.NoError(t, b.Stop(ctx))
		assert.False(t, b.UnmutePending())

		time.Sleep(50 * time.Millisecond)
		_, mutes, _ := element.snapshot()
		assert.Empty(t, mutes)
	})
}

func TestWebBackendNoAutoplay(t *testing.T) {
	element := &fakeElement{}
	b := NewWebBackend(element, time.Hour)

	res, err := b.Start(context.Background(), StartRequest{URL: "u"})
	require.NoError(t, err)
	assert.Equal(t, StartResult{Success: true}, res)

	plays, _, _ := element.snapshot()
	assert.Empty(t, plays)
}

func TestWebBackendStopIsIdempotent(t *testing.T) {
	ctx := context.Background()
	element := &fakeElement{}
	b := NewWebBackend(element, time.Hour)

	// before start there is nothing to stop
	require.NoError(t, b.Stop(ctx))

	_, err := b.Start(ctx, StartRequest{URL: "u", Autoplay: true})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Stop(ctx))
	}
	_, _, unloads := element.snapshot()
	assert.Equal(t, 1, unloads)

	assert.ErrorIs(t, b.Pause(ctx), ErrNotStarted)
	require.NoError(t, b.Release())
	assert.True(t, element.closed)
}

func TestWebBackendForwardsElementEvents(t *testing.T) {
	element := &fakeElement{}
	b := NewWebBackend(element, time.Hour)
	assert.Equal(t, platform.KindWeb, b.Kind())

	var got []Event
	token := b.Subscribe(func(e Event) { got = append(got, e) })

	element.handler(Event{Type: EventPositionTick, Position: 3 * time.Second})
	element.handler(Event{Type: EventCompleted, Position: 90 * time.Second})

	assert.True(t, b.Unsubscribe(token))
	element.handler(Event{Type: EventPositionTick, Position: 4 * time.Second})

	require.Len(t, got, 2)
	assert.Equal(t, EventCompleted, got[1].Type)
}
