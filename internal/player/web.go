package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PizzaHomicide/marquee/internal/bus"
	"github.com/PizzaHomicide/marquee/internal/log"
	"github.com/PizzaHomicide/marquee/internal/platform"
)

// MediaElement is the page-side video element the web backend drives
type MediaElement interface {
	// Load points the element at url and positions it at start without playing
	Load(ctx context.Context, url, title string, start time.Duration) error
	// Play starts playback, muted or not.  Returns ErrAutoplayRejected when the page refused.
	Play(ctx context.Context, muted bool) error
	SetMuted(ctx context.Context, muted bool) error
	Pause(ctx context.Context) error
	SeekBy(ctx context.Context, delta time.Duration) error
	// Unload stops playback and detaches the source
	Unload(ctx context.Context) error
	// Listen installs the handler that receives element events
	Listen(handler func(Event))
	Close() error
}

// WebBackend plays content in a page media element.  Browsers refuse unmuted autoplay without a user gesture, so
// Start walks a ladder: unmuted, then muted with a delayed unmute, then manual play.
type WebBackend struct {
	element     MediaElement
	unmuteDelay time.Duration
	topic       bus.Topic[Event]

	mu          sync.Mutex
	started     bool
	stopped     bool
	unmuteTimer *time.Timer
}

// NewWebBackend creates a web backend around element
func NewWebBackend(element MediaElement, unmuteDelay time.Duration) *WebBackend {
	b := &WebBackend{element: element, unmuteDelay: unmuteDelay}
	element.Listen(b.topic.Publish)
	return b
}

func (b *WebBackend) Kind() platform.Kind {
	return platform.KindWeb
}

func (b *WebBackend) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	b.mu.Lock()
	b.started = true
	b.stopped = false
	b.mu.Unlock()

	if err := b.element.Load(ctx, req.URL, req.Title, req.StartOffset); err != nil {
		b.mu.Lock()
		b.started = false
		b.mu.Unlock()
		return StartResult{}, fmt.Errorf("failed to load media element: %w", err)
	}

	if !req.Autoplay {
		return StartResult{Success: true}, nil
	}
	return b.autoplay(ctx)
}

func (b *WebBackend) autoplay(ctx context.Context) (StartResult, error) {
	err := b.element.Play(ctx, false)
	if err == nil {
		return StartResult{Success: true, Playing: true}, nil
	}
	if !errors.Is(err, ErrAutoplayRejected) {
		return StartResult{}, fmt.Errorf("failed to play media element: %w", err)
	}

	log.Debug("Unmuted autoplay rejected, retrying muted")
	err = b.element.Play(ctx, true)
	if err == nil {
		b.scheduleUnmute()
		return StartResult{Success: true, Playing: true, Muted: true}, nil
	}
	if !errors.Is(err, ErrAutoplayRejected) {
		return StartResult{}, fmt.Errorf("failed to play media element muted: %w", err)
	}

	log.Info("Autoplay rejected, waiting for manual play")
	return StartResult{Success: true, ManualPlayRequired: true}, nil
}

func (b *WebBackend) scheduleUnmute() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unmuteTimer != nil {
		b.unmuteTimer.Stop()
	}
	b.unmuteTimer = time.AfterFunc(b.unmuteDelay, func() {
		b.mu.Lock()
		stopped := b.stopped
		b.unmuteTimer = nil
		b.mu.Unlock()
		if stopped {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.element.SetMuted(ctx, false); err != nil {
			log.Warn("Failed to unmute media element", "error", err)
			return
		}
		b.topic.Publish(Event{Type: EventUnmuted})
	})
}

func (b *WebBackend) cancelUnmute() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unmuteTimer != nil {
		b.unmuteTimer.Stop()
		b.unmuteTimer = nil
	}
}

// UnmutePending reports whether a delayed unmute is scheduled
func (b *WebBackend) UnmutePending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unmuteTimer != nil
}

func (b *WebBackend) Pause(ctx context.Context) error {
	if !b.isStarted() {
		return ErrNotStarted
	}
	return b.element.Pause(ctx)
}

// Resume plays unmuted.  It follows a user action, which browsers accept as a gesture.
func (b *WebBackend) Resume(ctx context.Context) error {
	if !b.isStarted() {
		return ErrNotStarted
	}
	b.cancelUnmute()
	return b.element.Play(ctx, false)
}

func (b *WebBackend) SeekBy(ctx context.Context, delta time.Duration) error {
	if !b.isStarted() {
		return ErrNotStarted
	}
	return b.element.SeekBy(ctx, delta)
}

func (b *WebBackend) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.started || b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	b.mu.Unlock()

	b.cancelUnmute()
	return b.element.Unload(ctx)
}

func (b *WebBackend) isStarted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started && !b.stopped
}

func (b *WebBackend) Subscribe(handler func(Event)) bus.Token {
	return b.topic.Subscribe(handler)
}

func (b *WebBackend) Unsubscribe(token bus.Token) bool {
	return b.topic.Unsubscribe(token)
}

func (b *WebBackend) Release() error {
	b.cancelUnmute()
	return b.element.Close()
}
