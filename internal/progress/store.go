// Package progress persists watch position to a remote store.
package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/PizzaHomicide/marquee/internal/config"
)

// ErrNoProgress is returned by a Fetcher when the store holds nothing for the identity
var ErrNoProgress = errors.New("no saved progress")

// Update is the body of one progress write
type Update struct {
	LastTime    float64  `json:"lastTime"`
	Completed   bool     `json:"completed"`
	LastSeason  *int     `json:"lastSeason,omitempty"`
	LastChapter *int     `json:"lastChapter,omitempty"`
	Progress    *float64 `json:"progress,omitempty"`
}

// Record is saved progress as read back from a store
type Record struct {
	LastTime    float64 `json:"lastTime"`
	Completed   bool    `json:"completed"`
	LastSeason  *int    `json:"lastSeason,omitempty"`
	LastChapter *int    `json:"lastChapter,omitempty"`
}

// Position returns LastTime as a duration
func (r Record) Position() time.Duration {
	return time.Duration(r.LastTime * float64(time.Second))
}

// Store persists progress updates keyed by content identity
type Store interface {
	SaveProgress(ctx context.Context, identity string, update Update) error
}

// Fetcher is implemented by stores that can read progress back
type Fetcher interface {
	FetchProgress(ctx context.Context, identity string) (Record, error)
}

// NetworkError marks a failure to reach the store at all, as opposed to the store rejecting the write
type NetworkError struct {
	Err error
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e NetworkError) Unwrap() error {
	return e.Err
}

// classifyError wraps transport level failures in NetworkError
func classifyError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && (urlErr.Timeout() ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "no such host")) {
		return NetworkError{Err: err}
	}
	return err
}

// NewStore builds the store named in cfg.  Returns nil when no base URL is configured, which disables sync.
func NewStore(cfg config.ProgressConfig) (Store, error) {
	if cfg.BaseURL == "" {
		return nil, nil
	}
	switch cfg.Store {
	case "", "rest":
		return NewRESTStore(cfg.BaseURL, cfg.Token, nil), nil
	case "graphql":
		return NewGraphQLStore(cfg.BaseURL, cfg.Token), nil
	default:
		return nil, fmt.Errorf("unknown progress store %q", cfg.Store)
	}
}

// newUpdate builds the payload for pos.  Positions are reported in whole seconds.
func newUpdate(pos, dur time.Duration, completed bool, target Target) Update {
	u := Update{
		LastTime:  math.Floor(pos.Seconds()),
		Completed: completed,
	}
	if target.Series {
		season, chapter := target.Season, target.Chapter
		u.LastSeason = &season
		u.LastChapter = &chapter
	}
	if dur > 0 {
		p := math.Min(1, pos.Seconds()/dur.Seconds())
		u.Progress = &p
	}
	return u
}
