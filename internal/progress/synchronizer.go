package progress

import (
	"context"
	"sync"
	"time"

	"github.com/PizzaHomicide/marquee/internal/config"
	"github.com/PizzaHomicide/marquee/internal/log"
)

// Policy holds the synchronizer's timing values
type Policy struct {
	// Interval between periodic writes while playing
	Interval time.Duration
	// MinDelta suppresses periodic writes when the position barely moved since the last confirmed write
	MinDelta time.Duration
	// SeekThreshold is the jump between two ticks treated as a seek and written immediately
	SeekThreshold time.Duration
	// WriteTimeout bounds a single store call
	WriteTimeout time.Duration
}

// PolicyFromConfig converts the progress config section into a Policy
func PolicyFromConfig(cfg config.ProgressConfig) Policy {
	return Policy{
		Interval:      cfg.Interval,
		MinDelta:      cfg.MinDelta,
		SeekThreshold: cfg.SeekThreshold,
		WriteTimeout:  cfg.WriteTimeout,
	}
}

// Target identifies what progress is written for
type Target struct {
	Identity string
	// Series adds the season and chapter indexes to every write
	Series  bool
	Season  int
	Chapter int
}

// Synchronizer persists the position of one mount.  Writes are handed to Run's goroutine through a single slot
// mailbox that keeps only the newest update, so writes never reorder and a slow store never blocks playback.
type Synchronizer struct {
	store  Store
	target Target
	policy Policy

	mailbox chan Update
	final   chan Update
	done    chan struct{}

	mu            sync.Mutex
	position      time.Duration
	duration      time.Duration
	lastTick      time.Duration
	hasTick       bool
	lastConfirmed time.Duration
	playing       bool
	completed     bool
	running       bool
	flushed       bool
}

// NewSynchronizer creates a synchronizer.  With a nil store or an empty identity every operation is a no-op.
func NewSynchronizer(store Store, target Target, policy Policy) *Synchronizer {
	return &Synchronizer{
		store:   store,
		target:  target,
		policy:  policy,
		mailbox: make(chan Update, 1),
		final:   make(chan Update, 1),
		done:    make(chan struct{}),
	}
}

func (s *Synchronizer) enabled() bool {
	return s.store != nil && s.target.Identity != ""
}

// Run performs writes and the periodic timer until ctx ends or Flush completes
func (s *Synchronizer) Run(ctx context.Context) {
	if !s.enabled() {
		return
	}
	s.mu.Lock()
	if s.flushed || s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer close(s.done)

	interval := s.policy.Interval
	if interval <= 0 {
		interval = 20 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			// A Flush that raced the cancellation still gets its write.  Otherwise the queued update is the newest.
			select {
			case u := <-s.final:
				s.write(u)
				return
			default:
			}
			select {
			case u := <-s.mailbox:
				s.write(u)
			default:
			}
			return
		case u := <-s.final:
			// Anything still queued is older than the final position
			select {
			case <-s.mailbox:
			default:
			}
			s.write(u)
			return
		case u := <-s.mailbox:
			s.write(u)
		case <-ticker.C:
			s.periodic()
		}
	}
}

// periodic writes the current position if it moved enough
func (s *Synchronizer) periodic() {
	s.mu.Lock()
	// A queued update is older than the position written here, so it must not land afterwards.  It is replaced,
	// which also forces this write.
	force := false
	select {
	case <-s.mailbox:
		force = true
	default:
	}
	if s.flushed || (!force && !s.playing) {
		s.mu.Unlock()
		return
	}
	delta := s.position - s.lastConfirmed
	if delta < 0 {
		delta = -delta
	}
	if !force && delta < s.policy.MinDelta {
		s.mu.Unlock()
		log.Trace("Skipping periodic progress write", "delta", delta)
		return
	}
	u := newUpdate(s.position, s.duration, s.completed, s.target)
	s.mu.Unlock()

	s.write(u)
}

func (s *Synchronizer) write(u Update) {
	ctx := context.Background()
	if s.policy.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.policy.WriteTimeout)
		defer cancel()
	}

	if err := s.store.SaveProgress(ctx, s.target.Identity, u); err != nil {
		log.Warn("Progress write failed", "identity", s.target.Identity, "last_time", u.LastTime, "error", err)
		return
	}

	s.mu.Lock()
	s.lastConfirmed = time.Duration(u.LastTime * float64(time.Second))
	s.mu.Unlock()
}

// enqueue replaces whatever is waiting in the mailbox with u.  Caller holds s.mu.
func (s *Synchronizer) enqueue(u Update) {
	for {
		select {
		case s.mailbox <- u:
			return
		default:
		}
		select {
		case <-s.mailbox:
		default:
		}
	}
}

// send queues the current position.  Caller holds s.mu.
func (s *Synchronizer) send() {
	if !s.enabled() || s.flushed {
		return
	}
	s.enqueue(newUpdate(s.position, s.duration, s.completed, s.target))
}

// Baseline records the start position and writes it, so progress exists before the first tick
func (s *Synchronizer) Baseline(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = pos
	s.send()
}

// Tick records the latest position reported by the engine.  A jump larger than the seek threshold is written
// immediately.
func (s *Synchronizer) Tick(pos, dur time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jump := pos - s.lastTick
	if jump < 0 {
		jump = -jump
	}
	seeked := s.hasTick && jump > s.policy.SeekThreshold

	s.lastTick = pos
	s.hasTick = true
	s.position = pos
	if dur > 0 {
		s.duration = dur
	}

	if seeked {
		log.Debug("Seek detected, writing progress", "position", pos)
		s.send()
	}
}

// Pause writes the current position and stops periodic writes
func (s *Synchronizer) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.send()
}

// Resume re-enables periodic writes
func (s *Synchronizer) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
}

// Complete writes pos with the completed flag.  Every later write keeps the flag.
func (s *Synchronizer) Complete(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos > 0 {
		s.position = pos
	}
	s.completed = true
	s.playing = false
	s.send()
}

// Position returns the last recorded position
func (s *Synchronizer) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Flush makes the final write of the mount and waits for it.  Only the first call writes; nothing is written when
// the position is zero.
func (s *Synchronizer) Flush(ctx context.Context) {
	if !s.enabled() {
		return
	}

	s.mu.Lock()
	if s.flushed {
		s.mu.Unlock()
		return
	}
	s.flushed = true
	if s.position <= 0 {
		s.mu.Unlock()
		return
	}
	u := newUpdate(s.position, s.duration, s.completed, s.target)
	running := s.running
	if running {
		s.final <- u
	}
	s.mu.Unlock()

	if !running {
		s.write(u)
		return
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		log.Warn("Gave up waiting for final progress write", "error", ctx.Err())
	}
}
