// Package cli implements the knoldeck commands.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/conorfennell/knoldeck/internal/clock"
	"github.com/conorfennell/knoldeck/internal/config"
	"github.com/conorfennell/knoldeck/internal/logging"
	"github.com/conorfennell/knoldeck/internal/storage"
	"github.com/conorfennell/knoldeck/internal/study"
	decksync "github.com/conorfennell/knoldeck/internal/sync"
)

// app carries the loaded configuration to the subcommands.
type app struct {
	cfg   config.Config
	clock clock.Clock
}

// NewRootCmd builds the knoldeck command tree.
func NewRootCmd() *cobra.Command {
	a := &app{clock: clock.System{}}
	root := &cobra.Command{
		Use:           "knoldeck",
		Short:         "Spaced-repetition flashcards from markdown decks",
		Long:          "knoldeck schedules flashcards with SM-2, imports decks from local directories and git repositories, and serves a small HTMX study UI.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			a.cfg = cfg
			return nil
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		a.serveCmd(),
		a.syncCmd(),
		a.sourceCmd(),
		a.cardCmd(),
		a.statsCmd(),
		a.reviewCmd(),
	)
	return root
}

func (a *app) openDB() (*storage.DB, error) {
	db, err := storage.Open(a.cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	slog.Debug("Database opened", "path", a.cfg.DB)
	return db, nil
}

func (a *app) newStudy(db *storage.DB) *study.Service {
	return study.New(db,
		study.WithClock(a.clock),
		study.WithIdleTimeout(a.cfg.Session.IdleTimeout),
		study.WithSweepInterval(a.cfg.Session.SweepInterval),
	)
}

func (a *app) newSyncer(db *storage.DB) *decksync.Syncer {
	return decksync.New(db, a.cfg.ReposDir, decksync.WithClock(a.clock))
}
