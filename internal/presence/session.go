package presence

import "time"

// Metadata describes the content shown in the OS now playing surface
type Metadata struct {
	Title      string
	Artist     string
	Album      string
	ArtworkURL string
	Duration   time.Duration
}

// Command is a transport control activated from outside marquee
type Command int

const (
	CmdPlay Command = iota
	CmdPause
	CmdPlayPause
	CmdStop
	CmdSeekBackward
	CmdSeekForward
	// CmdSeek carries its own offset
	CmdSeek
)

// String returns the command name
func (c Command) String() string {
	switch c {
	case CmdPlay:
		return "Play"
	case CmdPause:
		return "Pause"
	case CmdPlayPause:
		return "PlayPause"
	case CmdStop:
		return "Stop"
	case CmdSeekBackward:
		return "SeekBackward"
	case CmdSeekForward:
		return "SeekForward"
	case CmdSeek:
		return "Seek"
	default:
		return "Unknown"
	}
}

// CommandHandler receives transport control activations.  offset is only meaningful for CmdSeek.
type CommandHandler func(cmd Command, offset time.Duration)

// Session is the OS media session integration
type Session interface {
	// UpdateMetadata updates the currently playing content
	UpdateMetadata(metadata Metadata) error

	// UpdatePlaybackState updates the playing flag and position
	UpdatePlaybackState(playing bool, position time.Duration) error

	// SetCommandHandler sets the handler for transport controls
	SetCommandHandler(handler CommandHandler)

	// Close unregisters the session
	Close() error
}

// WakeLock keeps the display awake while held
type WakeLock interface {
	Acquire(reason string) error
	Release() error
}

// NoOpSession is used when no OS media session is available
type NoOpSession struct{}

func (NoOpSession) UpdateMetadata(Metadata) error                 { return nil }
func (NoOpSession) UpdatePlaybackState(bool, time.Duration) error { return nil }
func (NoOpSession) SetCommandHandler(CommandHandler)              {}
func (NoOpSession) Close() error                                  { return nil }

// NoOpWakeLock is used when the platform offers no display inhibition
type NoOpWakeLock struct{}

func (NoOpWakeLock) Acquire(string) error { return nil }
func (NoOpWakeLock) Release() error       { return nil }
