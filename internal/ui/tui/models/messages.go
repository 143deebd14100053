package models

import (
	"github.com/PizzaHomicide/marquee/internal/catalog"
	"github.com/PizzaHomicide/marquee/internal/episode"
	"github.com/PizzaHomicide/marquee/internal/playback"
)

// MountMsg asks the host to mount playback for a selection
type MountMsg struct {
	Selection catalog.Selection
}

// StartedMsg reports that a mount's Start returned
type StartedMsg struct {
	Mount int
	Err   error
}

// StatusMsg carries a controller status change
type StatusMsg struct {
	Mount  int
	Status playback.Status
}

// AdvanceMsg is sent when a mount finished its chapter and a next one exists
type AdvanceMsg struct {
	Mount int
	Next  episode.Ref
}

// UnmountedMsg reports a finished teardown and what to do next
type UnmountedMsg struct {
	Mount int
	Err   error
	Next  *catalog.Selection
	Quit  bool
}

// ChapterSelectedMsg is sent when a chapter was picked in the chapter selector
type ChapterSelectedMsg struct {
	Ref episode.Ref
}
