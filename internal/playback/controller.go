// Package playback drives one mounted piece of content: it picks the backend, owns its lifecycle, and keeps the
// presence service and the progress synchronizer in step with it.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PizzaHomicide/marquee/internal/bus"
	"github.com/PizzaHomicide/marquee/internal/episode"
	"github.com/PizzaHomicide/marquee/internal/log"
	"github.com/PizzaHomicide/marquee/internal/platform"
	"github.com/PizzaHomicide/marquee/internal/player"
	"github.com/PizzaHomicide/marquee/internal/presence"
	"github.com/PizzaHomicide/marquee/internal/progress"
)

// ErrMissingURL is returned for a request without a media URL
var ErrMissingURL = errors.New("playback request has no media url")

// HostCells are flags the host writes directly.  Nil cells read as false.
type HostCells struct {
	IsUnmounting     *atomic.Bool
	IsNavigatingAway *atomic.Bool
}

// Resolver yields the backend kind for this process
type Resolver interface {
	Resolve() platform.Kind
}

// Options wires a Controller to its collaborators
type Options struct {
	Resolver   Resolver
	NewBackend func(kind platform.Kind) (player.Backend, error)
	// Presence may be nil, in which case no OS session or intents are used
	Presence *presence.Service
	// Store may be nil, in which case progress is not persisted
	Store  progress.Store
	Policy progress.Policy

	StartDelay    time.Duration
	TeardownGrace time.Duration

	// OnAdvance receives the next chapter after a completion.  It runs on the backend's event goroutine and must not
	// tear the controller down synchronously.
	OnAdvance func(nextSeason, nextChapter int)
	OnStatus  func(Status)
}

// Controller owns one mount.  Start and Teardown may be called from any goroutine, any number of times.
type Controller struct {
	req      Request
	cells    HostCells
	resolver Resolver
	factory  func(platform.Kind) (player.Backend, error)
	presence *presence.Service
	syncer   *progress.Synchronizer

	startDelay    time.Duration
	teardownGrace time.Duration
	onAdvance     func(int, int)
	onStatus      func(Status)

	// ctx ends when teardown begins
	ctx    context.Context
	cancel context.CancelFunc

	starting sync.WaitGroup
	syncDone sync.WaitGroup

	mu             sync.Mutex
	session        Session
	status         Status
	backend        player.Backend
	backendToken   bus.Token
	intentToken    bus.Token
	lifecycleToken bus.Token
	syncCancel     context.CancelFunc
	completed      bool
	tornDown       bool
}

// NewController creates a controller for req.  Nothing starts until Start.
func NewController(req Request, cells HostCells, opts Options) (*Controller, error) {
	if req.URL == "" {
		return nil, ErrMissingURL
	}
	if opts.Resolver == nil || opts.NewBackend == nil {
		return nil, errors.New("playback controller needs a resolver and a backend factory")
	}
	if req.StartOffset < 0 {
		req.StartOffset = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		req:           req,
		cells:         cells,
		resolver:      opts.Resolver,
		factory:       opts.NewBackend,
		presence:      opts.Presence,
		startDelay:    opts.StartDelay,
		teardownGrace: opts.TeardownGrace,
		onAdvance:     opts.OnAdvance,
		onStatus:      opts.OnStatus,
		ctx:           ctx,
		cancel:        cancel,
		status:        Status{State: StateIdle},
	}
	c.syncer = progress.NewSynchronizer(opts.Store, progress.Target{
		Identity: req.Identity,
		Series:   len(req.Seasons) > 0,
		Season:   req.Season,
		Chapter:  req.Chapter,
	}, opts.Policy)
	return c, nil
}

// Session returns a snapshot of the mount state
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Status returns the last status delivered to the host
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// unmountingLocked reports whether teardown has begun.  Caller holds c.mu.
func (c *Controller) unmountingLocked() bool {
	return c.session.Unmounting || load(c.cells.IsUnmounting)
}

func load(cell *atomic.Bool) bool {
	return cell != nil && cell.Load()
}

// Start begins playback.  It is a no-op when already initialized or unmounting, checked on both sides of the start
// delay so an unmount during the delay prevents the backend from ever being touched.
func (c *Controller) Start(ctx context.Context) error {
	kind := c.resolver.Resolve()

	c.mu.Lock()
	if c.session.Initialized || c.unmountingLocked() {
		c.mu.Unlock()
		log.Debug("Ignoring start", "reason", "already initialized or unmounting")
		return nil
	}
	c.starting.Add(1)
	c.mu.Unlock()
	defer c.starting.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	if c.startDelay > 0 {
		timer := time.NewTimer(c.startDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			if c.ctx.Err() != nil {
				return nil
			}
			return ctx.Err()
		}
	}

	c.mu.Lock()
	if c.session.Initialized || c.unmountingLocked() {
		c.mu.Unlock()
		log.Debug("Ignoring start after delay", "reason", "already initialized or unmounting")
		return nil
	}
	c.session.Initialized = true
	c.session.Backend = kind
	c.mu.Unlock()

	c.emit(Status{State: StateStarting, Backend: kind})
	return c.launch(ctx, kind)
}

func (c *Controller) launch(ctx context.Context, kind platform.Kind) error {
	backend, err := c.factory(kind)
	if err != nil {
		return c.rollback(kind, nil, err)
	}

	c.mu.Lock()
	c.backend = backend
	c.mu.Unlock()

	if c.presence != nil {
		if err := c.presence.Start(c.metadata()); err != nil {
			log.Warn("Media session unavailable", "error", err)
		}
	}

	token := backend.Subscribe(c.handleEvent)
	c.mu.Lock()
	c.backendToken = token
	c.mu.Unlock()

	log.Info("Starting playback", "backend", kind, "title", c.req.Title, "start", c.req.StartOffset)
	result, err := backend.Start(ctx, player.StartRequest{
		URL:         c.req.URL,
		Title:       c.req.Title,
		StartOffset: c.req.StartOffset,
		Autoplay:    c.req.Autoplay,
		Chapters:    episode.Flatten(c.req.Seasons),
	})
	if err == nil && !result.Success {
		err = fmt.Errorf("backend rejected start: %s", result.Message)
	}
	if err != nil {
		return c.rollback(kind, backend, err)
	}

	c.mu.Lock()
	if c.unmountingLocked() {
		c.mu.Unlock()
		log.Debug("Start finished after unmount began, leaving it to teardown")
		return nil
	}
	c.session.Playing = result.Playing
	c.session.LastKnownPosition = c.req.StartOffset
	c.mu.Unlock()

	c.syncer.Baseline(c.req.StartOffset)
	if result.Playing {
		c.syncer.Resume()
	}
	c.runSync()

	if c.presence != nil {
		c.presence.SetPlaying(result.Playing)
		c.subscribePresence()
	}

	status := Status{State: StatePaused, Backend: kind, Position: c.req.StartOffset, Muted: result.Muted, Message: result.Message}
	switch {
	case result.ManualPlayRequired:
		status.State = StateManualPlayRequired
	case result.Playing:
		status.State = StatePlaying
	}
	c.emit(status)
	return nil
}

// rollback undoes a failed start so a later Start may try again
func (c *Controller) rollback(kind platform.Kind, backend player.Backend, cause error) error {
	if backend != nil {
		c.mu.Lock()
		token := c.backendToken
		c.backendToken = 0
		c.backend = nil
		c.mu.Unlock()

		backend.Unsubscribe(token)
		if err := backend.Stop(context.Background()); err != nil {
			log.Warn("Failed to stop backend after failed start", "error", err)
		}
		if err := backend.Release(); err != nil {
			log.Warn("Failed to release backend after failed start", "error", err)
		}
	}
	if c.presence != nil {
		if err := c.presence.Stop(); err != nil {
			log.Warn("Failed to stop media session after failed start", "error", err)
		}
	}

	c.mu.Lock()
	c.session.Initialized = false
	c.session.Playing = false
	c.mu.Unlock()

	startErr := &StartError{Backend: kind, Err: cause}
	log.Warn("Playback start failed", "backend", kind, "error", cause)
	c.emit(Status{State: StateUnavailable, Backend: kind, Message: "Playback unavailable", Err: startErr})
	return startErr
}

func (c *Controller) runSync() {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.syncCancel = cancel
	c.mu.Unlock()

	c.syncDone.Add(1)
	go func() {
		defer c.syncDone.Done()
		c.syncer.Run(ctx)
	}()
}

func (c *Controller) subscribePresence() {
	intents := c.presence.Subscribe(c.HandleIntent)
	lifecycle := c.presence.SubscribeLifecycle(c.HandleLifecycle)
	c.mu.Lock()
	c.intentToken = intents
	c.lifecycleToken = lifecycle
	c.mu.Unlock()
}

func (c *Controller) metadata() presence.Metadata {
	m := presence.Metadata{
		Title:      c.req.Title,
		Artist:     c.req.SeriesTitle,
		ArtworkURL: c.req.ArtworkURL,
	}
	if c.req.Season >= 0 && c.req.Season < len(c.req.Seasons) {
		m.Album = c.req.Seasons[c.req.Season].Title
	}
	return m
}

func (c *Controller) emit(status Status) {
	c.mu.Lock()
	if status.Position == 0 {
		status.Position = c.session.LastKnownPosition
	}
	if status.Duration == 0 {
		status.Duration = c.status.Duration
	}
	c.status = status
	c.mu.Unlock()

	if c.onStatus != nil {
		c.onStatus(status)
	}
}

// refresh applies update to the current status and delivers the result, keeping its state
func (c *Controller) refresh(update func(*Status)) {
	c.mu.Lock()
	status := c.status
	update(&status)
	c.status = status
	c.mu.Unlock()

	if c.onStatus != nil {
		c.onStatus(status)
	}
}

// live returns the backend when a started mount is not being torn down
func (c *Controller) live() (player.Backend, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.session.Initialized || c.backend == nil || c.unmountingLocked() {
		return nil, false
	}
	return c.backend, true
}

func (c *Controller) handleEvent(event player.Event) {
	c.mu.Lock()
	if c.unmountingLocked() || !c.session.Initialized {
		c.mu.Unlock()
		return
	}
	kind := c.session.Backend

	switch event.Type {
	case player.EventPositionTick:
		c.session.LastKnownPosition = event.Position
		// the host hears about whole seconds only
		status := c.status
		changed := event.Position.Truncate(time.Second) != status.Position.Truncate(time.Second) ||
			(event.Duration > 0 && event.Duration != status.Duration)
		c.mu.Unlock()

		c.syncer.Tick(event.Position, event.Duration)
		if c.presence != nil {
			c.presence.UpdatePosition(event.Position, event.Duration)
		}
		if changed {
			c.refresh(func(s *Status) {
				s.Position = event.Position
				if event.Duration > 0 {
					s.Duration = event.Duration
				}
			})
		}

	case player.EventUnmuted:
		muted := c.status.Muted
		c.mu.Unlock()
		if muted {
			c.refresh(func(s *Status) { s.Muted = false })
		}

	case player.EventCompleted:
		if c.completed {
			c.mu.Unlock()
			return
		}
		c.completed = true
		if event.Position > 0 {
			c.session.LastKnownPosition = event.Position
		}
		pos := c.session.LastKnownPosition
		c.session.Playing = false
		navigatingAway := load(c.cells.IsNavigatingAway)
		c.mu.Unlock()

		log.Info("Playback completed", "backend", kind, "position", pos)
		c.syncer.Complete(pos)
		if c.presence != nil {
			c.presence.SetPlaying(false)
		}
		c.emit(Status{State: StateEnded, Backend: kind, Position: pos, Duration: event.Duration})
		c.advance(navigatingAway)

	case player.EventStoppedExternally:
		c.session.Playing = false
		c.mu.Unlock()

		log.Info("Playback stopped outside marquee", "backend", kind)
		c.syncer.Pause()
		if c.presence != nil {
			c.presence.SetPlaying(false)
		}
		c.emit(Status{State: StateStopped, Backend: kind})

	default:
		c.mu.Unlock()
	}
}

func (c *Controller) advance(navigatingAway bool) {
	if c.onAdvance == nil || len(c.req.Seasons) == 0 {
		return
	}
	if navigatingAway {
		log.Debug("Not advancing, host is navigating away")
		return
	}
	next, ok := episode.Resolve(c.req.Seasons, c.req.Season, c.req.Chapter)
	if !ok {
		log.Info("End of series reached")
		return
	}
	log.Debug("Advancing to next chapter", "season", next.Season, "chapter", next.Chapter)
	c.onAdvance(next.Season, next.Chapter)
}

func (c *Controller) setPlaying(playing bool, state State) {
	c.mu.Lock()
	c.session.Playing = playing
	kind := c.session.Backend
	// resuming always plays with sound
	muted := !playing && c.status.Muted
	c.mu.Unlock()

	if playing {
		c.syncer.Resume()
	} else {
		c.syncer.Pause()
	}
	if c.presence != nil {
		c.presence.SetPlaying(playing)
	}
	c.emit(Status{State: state, Backend: kind, Muted: muted})
}

// HandleIntent applies a transport intent to the active backend.  Intents before a successful start or during
// teardown are ignored.
func (c *Controller) HandleIntent(intent presence.Intent) {
	backend, ok := c.live()
	if !ok {
		log.Debug("Ignoring intent, no live playback", "intent", intent.Kind)
		return
	}

	var err error
	switch intent.Kind {
	case presence.IntentPlay:
		if err = backend.Resume(c.ctx); err == nil {
			c.setPlaying(true, StatePlaying)
		}
	case presence.IntentPause:
		if err = backend.Pause(c.ctx); err == nil {
			c.setPlaying(false, StatePaused)
		}
	case presence.IntentStop:
		if err = backend.Stop(c.ctx); err == nil {
			c.setPlaying(false, StateStopped)
		}
	case presence.IntentSeek:
		err = backend.SeekBy(c.ctx, intent.Offset)
	}
	if err != nil {
		log.Warn("Playback intent failed", "intent", intent.Kind, "error", err)
	}
}

// HandleLifecycle applies the background policy: only the mobile native backend is stopped when the app leaves the
// foreground.  The others keep playing under the wake lock.
func (c *Controller) HandleLifecycle(event presence.LifecycleEvent) {
	if event.Foreground {
		return
	}
	backend, ok := c.live()
	if !ok {
		return
	}
	if backend.Kind() != platform.KindMobileNative {
		log.Debug("Backgrounded, playback continues", "backend", backend.Kind(), "reason", event.Reason)
		return
	}

	log.Info("Backgrounded, stopping mobile playback", "reason", event.Reason)
	if err := backend.Stop(c.ctx); err != nil {
		log.Warn("Failed to stop mobile playback on background", "error", err)
	}
	c.setPlaying(false, StateStopped)
}

// Teardown unmounts.  Every cleanup step runs even if an earlier one failed; their errors are joined.  Only the
// first call does any work.
func (c *Controller) Teardown(ctx context.Context) error {
	if c.cells.IsUnmounting != nil {
		c.cells.IsUnmounting.Store(true)
	}
	c.mu.Lock()
	c.session.Unmounting = true
	if c.tornDown {
		c.mu.Unlock()
		return nil
	}
	c.tornDown = true
	c.mu.Unlock()
	c.cancel()

	if c.teardownGrace > 0 {
		timer := time.NewTimer(c.teardownGrace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}
	c.starting.Wait()

	c.mu.Lock()
	backend := c.backend
	backendToken := c.backendToken
	intentToken := c.intentToken
	lifecycleToken := c.lifecycleToken
	syncCancel := c.syncCancel
	position := c.session.LastKnownPosition
	c.backend = nil
	c.backendToken, c.intentToken, c.lifecycleToken = 0, 0, 0
	c.session.Playing = false
	c.mu.Unlock()

	if c.presence != nil {
		if intentToken != 0 {
			c.presence.Unsubscribe(intentToken)
		}
		if lifecycleToken != 0 {
			c.presence.UnsubscribeLifecycle(lifecycleToken)
		}
	}
	if backend != nil && backendToken != 0 {
		backend.Unsubscribe(backendToken)
	}

	var errs []error
	if backend != nil {
		if err := backend.Stop(ctx); err != nil {
			log.Warn("Teardown: backend stop failed", "error", err)
			errs = append(errs, fmt.Errorf("stop backend: %w", err))
		}
	}
	if c.presence != nil {
		if err := c.presence.Stop(); err != nil {
			log.Warn("Teardown: media session stop failed", "error", err)
			errs = append(errs, fmt.Errorf("stop media session: %w", err))
		}
	}
	if position > 0 {
		c.syncer.Flush(ctx)
	}
	if syncCancel != nil {
		syncCancel()
	}
	c.syncDone.Wait()
	if backend != nil {
		if err := backend.Release(); err != nil {
			log.Warn("Teardown: backend release failed", "error", err)
			errs = append(errs, fmt.Errorf("release backend: %w", err))
		}
	}

	log.Debug("Playback torn down", "position", position)
	return errors.Join(errs...)
}
