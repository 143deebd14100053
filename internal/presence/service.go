// Package presence mirrors playback into the OS now playing session and a display wake lock, and turns transport
// controls into intents.  It never decides what playback does; subscribers do.
package presence

import (
	"fmt"
	"sync"
	"time"

	"github.com/PizzaHomicide/marquee/internal/bus"
	"github.com/PizzaHomicide/marquee/internal/log"
)

// IntentKind is the abstract action a transport control asks for
type IntentKind int

const (
	IntentPlay IntentKind = iota
	IntentPause
	IntentStop
	IntentSeek
)

func (k IntentKind) String() string {
	switch k {
	case IntentPlay:
		return "play"
	case IntentPause:
		return "pause"
	case IntentStop:
		return "stop"
	case IntentSeek:
		return "seek"
	default:
		return "unknown"
	}
}

// Intent is published for every transport control activation.  Offset is set for IntentSeek and is negative for a
// backward seek.
type Intent struct {
	Kind   IntentKind
	Offset time.Duration
}

// LifecycleEvent reports the host moving to or from the foreground
type LifecycleEvent struct {
	Foreground bool
	// Reason names the signal, e.g. "focus", "blur", "visibility", "app-state"
	Reason string
}

// Options configures a Service
type Options struct {
	// NewSession opens the OS media session.  Defaults to the platform session.
	NewSession func(appName string) (Session, error)
	// WakeLock defaults to the platform wake lock; nil disables it
	WakeLock WakeLock
	AppName  string
	// SeekOffset is used for seek-backward and seek-forward controls
	SeekOffset time.Duration
}

// Service owns the process wide media session.  The most recent Start owns it.
type Service struct {
	newSession func(string) (Session, error)
	wakeLock   WakeLock
	appName    string
	seekOffset time.Duration

	intents   bus.Topic[Intent]
	lifecycle bus.Topic[LifecycleEvent]

	mu       sync.Mutex
	session  Session
	metadata Metadata
	playing  bool
	wakeHeld bool
}

// NewService creates a presence service
func NewService(opts Options) *Service {
	if opts.NewSession == nil {
		opts.NewSession = newPlatformSession
	}
	if opts.SeekOffset <= 0 {
		opts.SeekOffset = 10 * time.Second
	}
	if opts.AppName == "" {
		opts.AppName = "marquee"
	}
	return &Service{
		newSession: opts.NewSession,
		wakeLock:   opts.WakeLock,
		appName:    opts.AppName,
		seekOffset: opts.SeekOffset,
	}
}

// Start registers the media session with metadata.  Calling it again while active only replaces the metadata.
func (s *Service) Start(metadata Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		session, err := s.newSession(s.appName)
		if err != nil {
			return fmt.Errorf("failed to open media session: %w", err)
		}
		session.SetCommandHandler(s.handleCommand)
		s.session = session
		log.Debug("Media session registered", "title", metadata.Title)
	}

	s.metadata = metadata
	if err := s.session.UpdateMetadata(metadata); err != nil {
		return fmt.Errorf("failed to update media session metadata: %w", err)
	}
	return nil
}

// Active reports whether a session is registered
func (s *Service) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// Metadata returns the metadata last passed to Start
func (s *Service) Metadata() Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata
}

// SetPlaying updates the session state and holds the wake lock while playing
func (s *Service) SetPlaying(playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return
	}
	s.playing = playing
	if err := s.session.UpdatePlaybackState(playing, 0); err != nil {
		log.Warn("Failed to update media session state", "error", err)
	}

	if playing {
		s.acquireWakeLock()
	} else {
		s.releaseWakeLock()
	}
}

// UpdatePosition mirrors the position and, when known, the duration
func (s *Service) UpdatePosition(position, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return
	}
	if duration > 0 && duration != s.metadata.Duration {
		s.metadata.Duration = duration
		if err := s.session.UpdateMetadata(s.metadata); err != nil {
			log.Warn("Failed to update media session duration", "error", err)
		}
	}
	if err := s.session.UpdatePlaybackState(s.playing, position); err != nil {
		log.Trace("Failed to update media session position", "error", err)
	}
}

// Stop releases the wake lock and closes the session.  Safe to call when not started.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseWakeLock()
	s.playing = false
	if s.session == nil {
		return nil
	}
	session := s.session
	s.session = nil
	log.Debug("Media session closed")
	return session.Close()
}

// Wake lock failures never surface as playback errors.  Caller holds s.mu.
func (s *Service) acquireWakeLock() {
	if s.wakeLock == nil || s.wakeHeld {
		return
	}
	if err := s.wakeLock.Acquire("Playing " + s.metadata.Title); err != nil {
		log.Warn("Failed to acquire wake lock", "error", err)
		return
	}
	s.wakeHeld = true
}

func (s *Service) releaseWakeLock() {
	if s.wakeLock == nil || !s.wakeHeld {
		return
	}
	s.wakeHeld = false
	if err := s.wakeLock.Release(); err != nil {
		log.Warn("Failed to release wake lock", "error", err)
	}
}

// WakeLockHeld reports whether the wake lock is currently held
func (s *Service) WakeLockHeld() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wakeHeld
}

func (s *Service) handleCommand(cmd Command, offset time.Duration) {
	s.mu.Lock()
	playing := s.playing
	s.mu.Unlock()

	log.Debug("Media session command", "command", cmd, "offset", offset)

	var intent Intent
	switch cmd {
	case CmdPlay:
		intent = Intent{Kind: IntentPlay}
	case CmdPause:
		intent = Intent{Kind: IntentPause}
	case CmdPlayPause:
		if playing {
			intent = Intent{Kind: IntentPause}
		} else {
			intent = Intent{Kind: IntentPlay}
		}
	case CmdStop:
		intent = Intent{Kind: IntentStop}
	case CmdSeekBackward:
		intent = Intent{Kind: IntentSeek, Offset: -s.seekOffset}
	case CmdSeekForward:
		intent = Intent{Kind: IntentSeek, Offset: s.seekOffset}
	case CmdSeek:
		intent = Intent{Kind: IntentSeek, Offset: offset}
	default:
		log.Debug("Ignoring unsupported media session command", "command", cmd)
		return
	}
	s.intents.Publish(intent)
}

// Dispatch feeds a transport control into the service as if the OS had sent it.  Hosts use it for their own keys.
func (s *Service) Dispatch(cmd Command, offset time.Duration) {
	s.handleCommand(cmd, offset)
}

// Subscribe registers a handler for intents
func (s *Service) Subscribe(handler func(Intent)) bus.Token {
	return s.intents.Subscribe(handler)
}

// Unsubscribe removes an intent subscription
func (s *Service) Unsubscribe(token bus.Token) bool {
	return s.intents.Unsubscribe(token)
}

// SubscribeLifecycle registers a handler for foreground changes
func (s *Service) SubscribeLifecycle(handler func(LifecycleEvent)) bus.Token {
	return s.lifecycle.Subscribe(handler)
}

// UnsubscribeLifecycle removes a lifecycle subscription
func (s *Service) UnsubscribeLifecycle(token bus.Token) bool {
	return s.lifecycle.Unsubscribe(token)
}

// NotifyLifecycle publishes a foreground change reported by the host
func (s *Service) NotifyLifecycle(event LifecycleEvent) {
	log.Debug("Lifecycle change", "foreground", event.Foreground, "reason", event.Reason)
	s.lifecycle.Publish(event)
}
