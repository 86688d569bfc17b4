// Package cli wires the photoframe commands.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justyntemme/photoframe/internal/config"
	"github.com/justyntemme/photoframe/internal/debug"
	"github.com/justyntemme/photoframe/internal/logging"
	"github.com/justyntemme/photoframe/internal/scanner"
	"github.com/justyntemme/photoframe/internal/store"
)

// App carries state shared by every subcommand.
type App struct {
	ConfigPath string
	Debug      bool

	cfg *config.Manager
}

// NewRootCmd builds the photoframe command tree.
func NewRootCmd() *cobra.Command {
	app := &App{cfg: config.NewManager()}

	cmd := &cobra.Command{
		Use:          "photoframe",
		Short:        "Photo catalog for a digital picture frame",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Index the photo library
  photoframe scan

  # Choose which photos the frame shows
  photoframe browse

  # Rebuild the slideshow order
  photoframe playlist --shuffle
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := app.cfg.Load(app.ConfigPath); err != nil {
			return err
		}
		lc := app.cfg.Get().Log
		level := lc.Level
		if app.Debug {
			level = "debug"
			debug.EnableAll()
		}
		if err := logging.Init(logging.Options{Level: level, Development: lc.Development}); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		if perr := app.cfg.ParseError(); perr != nil {
			logging.Warn("config has errors, defaults in use", zap.String("path", app.cfg.Path()), zap.Error(perr))
		}
		debug.Log(debug.APP, "running %s with config %s", cmd.CommandPath(), app.cfg.Path())
		return nil
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		_ = logging.Sync()
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "Path to config.json (default ~/.config/photoframe/config.json)")
	cmd.PersistentFlags().BoolVar(&app.Debug, "debug", false, "Enable verbose debug logging")

	cmd.AddCommand(newScanCmd(app))
	cmd.AddCommand(newBrowseCmd(app))
	cmd.AddCommand(newStatusCmd(app))
	cmd.AddCommand(newPlaylistCmd(app))
	return cmd
}

func (app *App) openDB(ctx context.Context) (*store.DB, error) {
	path := app.cfg.Get().Library.DatabasePath
	db, err := store.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	return db, nil
}

func (app *App) scannerOptions() (scanner.Options, error) {
	lib := app.cfg.Get().Library
	policy, err := scanner.ParseLostPolicy(lib.LostPolicy)
	if err != nil {
		return scanner.Options{}, err
	}
	return scanner.Options{
		Root:           lib.PhotoRoot,
		FollowSymlinks: lib.FollowSymlinks,
		LostPolicy:     policy,
	}, nil
}
