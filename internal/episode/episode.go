package episode

// Chapter is one playable unit within a season
type Chapter struct {
	Number int    `yaml:"number" json:"number"`
	Title  string `yaml:"title,omitempty" json:"title,omitempty"`
	URL    string `yaml:"url" json:"url"`
}

// Season groups the chapters of one season in play order
type Season struct {
	Number   int       `yaml:"number" json:"number"`
	Title    string    `yaml:"title,omitempty" json:"title,omitempty"`
	Chapters []Chapter `yaml:"chapters" json:"chapters"`
}

// Ref points at one chapter by season and chapter index
type Ref struct {
	Season  int
	Chapter int
}

// Resolve computes the chapter that follows (seasonIndex, chapterIndex).  The next chapter of the same season wins,
// then the first chapter of the next season.  Returns false at the end of the series or for an out of range position.
func Resolve(seasons []Season, seasonIndex, chapterIndex int) (Ref, bool) {
	if seasonIndex < 0 || seasonIndex >= len(seasons) || chapterIndex < 0 {
		return Ref{}, false
	}
	if chapterIndex+1 < len(seasons[seasonIndex].Chapters) {
		return Ref{Season: seasonIndex, Chapter: chapterIndex + 1}, true
	}
	if seasonIndex+1 < len(seasons) {
		return Ref{Season: seasonIndex + 1, Chapter: 0}, true
	}
	return Ref{}, false
}

// Lookup returns the chapter at ref
func Lookup(seasons []Season, ref Ref) (Chapter, bool) {
	if ref.Season < 0 || ref.Season >= len(seasons) {
		return Chapter{}, false
	}
	chapters := seasons[ref.Season].Chapters
	if ref.Chapter < 0 || ref.Chapter >= len(chapters) {
		return Chapter{}, false
	}
	return chapters[ref.Chapter], true
}

// Flatten lists every chapter of every season in play order
func Flatten(seasons []Season) []Chapter {
	var all []Chapter
	for _, s := range seasons {
		all = append(all, s.Chapters...)
	}
	return all
}
