// Package catalog reads the title files marquee plays from and turns a chosen chapter into a playback request.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PizzaHomicide/marquee/internal/episode"
	"github.com/PizzaHomicide/marquee/internal/playback"
	"github.com/PizzaHomicide/marquee/internal/progress"
)

// ErrNoChapter is returned when a selection points outside the title's seasons
var ErrNoChapter = errors.New("no such chapter")

// Title is one movie or series
type Title struct {
	ID      string           `yaml:"id"`
	Title   string           `yaml:"title"`
	Artwork string           `yaml:"artwork,omitempty"`
	URL     string           `yaml:"url,omitempty"`
	Seasons []episode.Season `yaml:"seasons,omitempty"`
}

// IsSeries reports whether the title is played chapter by chapter
func (t *Title) IsSeries() bool {
	return len(t.Seasons) > 0
}

// Selection picks what to play from a title
type Selection struct {
	Season   int
	Chapter  int
	Start    time.Duration
	Autoplay bool
}

// Load reads and validates a title file
func Load(path string) (*Title, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read title file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a title document
func Parse(data []byte) (*Title, error) {
	t := &Title{}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("unable to parse title file: %w", err)
	}
	if t.ID == "" {
		return nil, errors.New("title has no id")
	}
	if t.URL == "" && !t.IsSeries() {
		return nil, fmt.Errorf("title %s has neither a url nor seasons", t.ID)
	}
	for si, s := range t.Seasons {
		for ci, c := range s.Chapters {
			if c.URL == "" {
				return nil, fmt.Errorf("title %s season %d chapter %d has no url", t.ID, si, ci)
			}
		}
	}
	return t, nil
}

// Request builds the playback request for sel
func (t *Title) Request(sel Selection) (playback.Request, error) {
	req := playback.Request{
		Identity:    t.ID,
		Title:       t.Title,
		ArtworkURL:  t.Artwork,
		StartOffset: sel.Start,
		Autoplay:    sel.Autoplay,
	}
	if !t.IsSeries() {
		req.URL = t.URL
		return req, nil
	}

	ref := episode.Ref{Season: sel.Season, Chapter: sel.Chapter}
	chapter, ok := episode.Lookup(t.Seasons, ref)
	if !ok {
		return playback.Request{}, fmt.Errorf("%w: season %d chapter %d of %s", ErrNoChapter, sel.Season, sel.Chapter, t.ID)
	}
	req.URL = chapter.URL
	req.SeriesTitle = t.Title
	req.Title = ChapterTitle(t.Seasons[ref.Season], chapter)
	req.Seasons = t.Seasons
	req.Season = ref.Season
	req.Chapter = ref.Chapter
	return req, nil
}

// ChapterTitle is the display title of a chapter
func ChapterTitle(season episode.Season, chapter episode.Chapter) string {
	if chapter.Title != "" {
		return chapter.Title
	}
	return fmt.Sprintf("S%02dE%02d", season.Number, chapter.Number)
}

// Resume applies saved progress to sel.  A series continues at the saved chapter when it still exists.  Completed
// progress restarts from the beginning.
func (t *Title) Resume(sel Selection, record progress.Record) Selection {
	if t.IsSeries() && record.LastSeason != nil && record.LastChapter != nil {
		ref := episode.Ref{Season: *record.LastSeason, Chapter: *record.LastChapter}
		if _, ok := episode.Lookup(t.Seasons, ref); ok {
			sel.Season, sel.Chapter = ref.Season, ref.Chapter
		}
	}
	if !record.Completed {
		sel.Start = record.Position()
	}
	return sel
}
