package playback

import (
	"fmt"
	"time"

	"github.com/PizzaHomicide/marquee/internal/episode"
	"github.com/PizzaHomicide/marquee/internal/platform"
)

// Request is what the host mounts.  It must not change for the life of one Controller.
type Request struct {
	URL string
	// Identity keys remote progress.  Progress is not synced without it.
	Identity    string
	Title       string
	SeriesTitle string
	ArtworkURL  string
	StartOffset time.Duration
	Autoplay    bool

	// Seasons is optional.  When set, Season and Chapter locate the content being played.
	Seasons []episode.Season
	Season  int
	Chapter int
}

// State is the coarse playback state reported to the host
type State string

const (
	StateIdle               State = "idle"
	StateStarting           State = "starting"
	StatePlaying            State = "playing"
	StatePaused             State = "paused"
	StateManualPlayRequired State = "manual-play-required"
	StateStopped            State = "stopped"
	StateUnavailable        State = "unavailable"
	StateEnded              State = "ended"
)

// Status is delivered to the host on every state change
type Status struct {
	State    State
	Backend  platform.Kind
	Position time.Duration
	Duration time.Duration
	Muted    bool
	Message  string
	Err      error
}

// Session is the transient state of one mount
type Session struct {
	Backend           platform.Kind
	Initialized       bool
	Playing           bool
	LastKnownPosition time.Duration
	Unmounting        bool
}

// StartError reports that the backend could not begin playback.  It is never fatal.
type StartError struct {
	Backend platform.Kind
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("%s backend failed to start: %v", e.Backend, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}
