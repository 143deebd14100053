package player

import (
	"context"
	"errors"
	"time"

	"github.com/PizzaHomicide/marquee/internal/bus"
	"github.com/PizzaHomicide/marquee/internal/episode"
	"github.com/PizzaHomicide/marquee/internal/platform"
)

var (
	// ErrNotStarted is returned by transport calls made before a successful Start
	ErrNotStarted = errors.New("backend not started")
	// ErrAutoplayRejected is returned by a media element that refused to play without a user gesture
	ErrAutoplayRejected = errors.New("autoplay rejected")
	// ErrBridgeClosed is returned for calls that were in flight, or issued, after the bridge connection went away
	ErrBridgeClosed = errors.New("bridge connection closed")
)

// EventType represents the type of playback event
type EventType string

const (
	// EventPositionTick reports the current position.  Ticks are non-decreasing unless a seek happened.
	EventPositionTick EventType = "position"
	// EventCompleted indicates the content played to its end
	EventCompleted EventType = "completed"
	// EventStoppedExternally indicates the engine stopped without being asked to, e.g. the user closed the window
	EventStoppedExternally EventType = "stopped"
	// EventUnmuted indicates a muted autoplay has been unmuted
	EventUnmuted EventType = "unmuted"
)

// Event represents an event emitted by a backend
type Event struct {
	Type     EventType
	Position time.Duration
	Duration time.Duration // Zero when unknown
}

// StartRequest carries everything a backend needs to begin playback
type StartRequest struct {
	URL         string
	Title       string
	StartOffset time.Duration
	Autoplay    bool
	Chapters    []episode.Chapter
}

// StartResult describes how a start attempt ended.  Success is false when the engine rejected the request, in which
// case Message holds its reason.
type StartResult struct {
	Success            bool
	Message            string
	Playing            bool
	Muted              bool
	ManualPlayRequired bool
}

// Backend is the contract every playback engine adapter implements
type Backend interface {
	Kind() platform.Kind

	// Start hands the content to the engine.  A transport failure is returned as an error, an engine rejection as a
	// StartResult with Success false.
	Start(ctx context.Context, req StartRequest) (StartResult, error)

	Pause(ctx context.Context) error
	Resume(ctx context.Context) error

	// Stop ends playback.  Safe to call any number of times, including before Start.
	Stop(ctx context.Context) error

	// SeekBy moves the position by delta, which may be negative
	SeekBy(ctx context.Context, delta time.Duration) error

	Subscribe(handler func(Event)) bus.Token
	Unsubscribe(token bus.Token) bool

	// Release frees connections and handles.  The backend cannot be started again afterwards.
	Release() error
}

func seconds(d time.Duration) float64 {
	return d.Seconds()
}

func fromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
