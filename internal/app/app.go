package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ircline/internal/config"
	"github.com/vovakirdan/ircline/internal/core"
	"github.com/vovakirdan/ircline/internal/transport/ircevent"
	"github.com/vovakirdan/ircline/internal/ui"
)

// App wires together core, transport, and presentation layers.
type App struct {
	cfg  *config.Config
	sync *core.Synchronizer
	log  *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) *App {
	conn := ircevent.New(logger)
	sync := core.NewSynchronizer(conn, logger)

	return &App{
		cfg:  cfg,
		sync: sync,
		log:  logger,
	}
}

// Run starts the synchronizer, connects to the configured server, and
// blocks in the terminal UI until it exits or the context is cancelled.
// The synchronizer outlives the UI so the quit message still goes out
// when a signal tears the program down.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.sync.Run(runCtx)

	if err := a.sync.Connect(core.ConnectDetails{
		Host:     a.cfg.Server.Host,
		Port:     a.cfg.Server.Port,
		TLS:      a.cfg.Server.TLS,
		Password: a.cfg.Server.Password,
		Nickname: a.cfg.Nickname,
		Username: a.cfg.Username,
		RealName: a.cfg.RealName,
	}); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	program := tea.NewProgram(
		ui.New(a.sync, a.log),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	a.log.Info().
		Str("host", a.cfg.Server.Host).
		Int("port", a.cfg.Server.Port).
		Bool("tls", a.cfg.Server.TLS).
		Msg("starting client")

	_, err := program.Run()
	if err != nil && ctx.Err() != nil {
		// Interrupted; the quit reason still goes out below.
		err = nil
	}
	a.shutdown()
	return err
}

func (a *App) shutdown() {
	if err := a.sync.Disconnect(a.cfg.QuitReason); err != nil {
		a.log.Debug().Err(err).Msg("disconnect on shutdown")
	}
	a.log.Info().Msg("client stopped")
}
