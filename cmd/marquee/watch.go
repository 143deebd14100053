package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/PizzaHomicide/marquee/internal/catalog"
	"github.com/PizzaHomicide/marquee/internal/config"
	"github.com/PizzaHomicide/marquee/internal/log"
	"github.com/PizzaHomicide/marquee/internal/progress"
	"github.com/PizzaHomicide/marquee/internal/ui/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch <title.yaml>",
	Short: "Play a title, resuming from saved progress unless a position is given",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	addWatchFlags(watchCmd)
}

func addWatchFlags(cmd *cobra.Command) {
	cmd.Flags().Int("season", 1, "Season to play, counting from 1 in play order")
	cmd.Flags().Int("chapter", 1, "Chapter to play within the season, counting from 1")
	cmd.Flags().Float64("start", 0, "Start position in seconds.  Disables resuming from saved progress")
	cmd.Flags().Bool("no-autoplay", false, "Wait for play instead of starting immediately")
}

func runWatch(cmd *cobra.Command, args []string) error {
	title, err := catalog.Load(args[0])
	if err != nil {
		return err
	}

	sel, err := selectionFromFlags(cmd)
	if err != nil {
		return err
	}

	cfg, closeLog, err := setup("watch", false)
	if err != nil {
		return err
	}
	defer closeLog()

	// Explicit positions win over saved progress
	flags := cmd.Flags()
	if !flags.Changed("start") && !flags.Changed("season") && !flags.Changed("chapter") {
		sel = resume(cmd.Context(), cfg.Progress, title, sel)
	}

	log.Info("Watching title", "id", title.ID, "season", sel.Season, "chapter", sel.Chapter, "start", sel.Start)
	if err := tui.Run(cfg, title, sel); err != nil {
		log.Error("Unhandled error while running TUI", "error", err)
		return err
	}

	log.Info("marquee shutting down.  Goodbye!")
	return nil
}

func selectionFromFlags(cmd *cobra.Command) (catalog.Selection, error) {
	flags := cmd.Flags()
	season, err := flags.GetInt("season")
	if err != nil {
		return catalog.Selection{}, err
	}
	chapter, err := flags.GetInt("chapter")
	if err != nil {
		return catalog.Selection{}, err
	}
	start, err := flags.GetFloat64("start")
	if err != nil {
		return catalog.Selection{}, err
	}
	noAutoplay, err := flags.GetBool("no-autoplay")
	if err != nil {
		return catalog.Selection{}, err
	}
	if season < 1 || chapter < 1 {
		return catalog.Selection{}, errors.New("season and chapter count from 1")
	}
	if start < 0 {
		return catalog.Selection{}, errors.New("start position cannot be negative")
	}
	return catalog.Selection{
		Season:   season - 1,
		Chapter:  chapter - 1,
		Start:    time.Duration(start * float64(time.Second)),
		Autoplay: !noAutoplay,
	}, nil
}

// resume applies saved progress when the configured store can read it back.  Any failure keeps sel.
func resume(ctx context.Context, cfg config.ProgressConfig, title *catalog.Title, sel catalog.Selection) catalog.Selection {
	store, err := progress.NewStore(cfg)
	if err != nil || store == nil {
		return sel
	}
	fetcher, ok := store.(progress.Fetcher)
	if !ok {
		return sel
	}

	if ctx == nil {
		ctx = context.Background()
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	record, err := fetcher.FetchProgress(ctx, title.ID)
	if errors.Is(err, progress.ErrNoProgress) {
		return sel
	}
	if err != nil {
		log.Warn("Unable to read saved progress, starting from the beginning", "id", title.ID, "error", err)
		return sel
	}
	resumed := title.Resume(sel, record)
	log.Info("Resuming from saved progress", "id", title.ID, "season", resumed.Season, "chapter", resumed.Chapter, "start", resumed.Start)
	return resumed
}
