package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/PizzaHomicide/marquee/internal/catalog"
	"github.com/PizzaHomicide/marquee/internal/config"
	"github.com/PizzaHomicide/marquee/internal/platform"
	"github.com/PizzaHomicide/marquee/internal/playback"
	"github.com/PizzaHomicide/marquee/internal/player"
	"github.com/PizzaHomicide/marquee/internal/presence"
	"github.com/PizzaHomicide/marquee/internal/progress"
	"github.com/PizzaHomicide/marquee/internal/ui/tui/models"
)

// Run plays title starting at sel until the user quits
func Run(cfg *config.Config, title *catalog.Title, sel catalog.Selection) error {
	var forced platform.Kind
	if cfg.Player.Backend != "" {
		kind, err := platform.ParseKind(cfg.Player.Backend)
		if err != nil {
			return err
		}
		forced = kind
	}
	resolver := platform.NewResolver(platform.OSEnvironment(), forced)

	store, err := progress.NewStore(cfg.Progress)
	if err != nil {
		return fmt.Errorf("unable to create progress store: %w", err)
	}

	var svc *presence.Service
	if cfg.Presence.PresenceEnabled() {
		opts := presence.Options{AppName: cfg.Presence.AppName, SeekOffset: cfg.Playback.SeekOffset}
		if cfg.Presence.WakeLockEnabled() {
			opts.WakeLock = presence.NewPlatformWakeLock(cfg.Presence.AppName)
		}
		svc = presence.NewService(opts)
	}

	mount := func(req playback.Request, cells playback.HostCells, onAdvance func(int, int), onStatus func(playback.Status)) (models.Playback, error) {
		if req.ArtworkURL == "" {
			req.ArtworkURL = cfg.Presence.ArtworkURL
		}
		controller, err := playback.NewController(req, cells, playback.Options{
			Resolver: resolver,
			NewBackend: func(kind platform.Kind) (player.Backend, error) {
				return player.NewBackend(kind, cfg)
			},
			Presence:      svc,
			Store:         store,
			Policy:        progress.PolicyFromConfig(cfg.Progress),
			StartDelay:    cfg.Playback.StartDelay,
			TeardownGrace: cfg.Playback.TeardownGrace,
			OnAdvance:     onAdvance,
			OnStatus:      onStatus,
		})
		if err != nil {
			return nil, err
		}
		return controller, nil
	}

	model := models.NewAppModel(models.Options{
		Title:      title,
		Selection:  sel,
		Mount:      mount,
		Presence:   svc,
		SeekOffset: cfg.Playback.SeekOffset,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus())
	_, err = p.Run()
	return err
}
