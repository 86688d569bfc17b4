package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justyntemme/photoframe/internal/explorer"
	"github.com/justyntemme/photoframe/internal/logging"
	"github.com/justyntemme/photoframe/internal/tui"
)

func newBrowseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse the catalog and choose the photos to show",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg.Get()
			db, err := app.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			ex := explorer.New(db, explorer.Options{
				ItemsPerPage: cfg.Explorer.ItemsPerPage,
				IdleWait:     cfg.Explorer.IdleWait(),
				Bounds:       cfg.Display.Bounds(),
				PhotoRoot:    cfg.Library.PhotoRoot,
			})
			page, err := ex.Start(cmd.Context())
			if err != nil {
				_ = ex.Close()
				return err
			}

			runErr := tui.Run(ex, page, tui.DefaultPollInterval)
			if err := ex.Close(); err != nil {
				logging.Warn("closing explorer", zap.Error(err))
			}
			return runErr
		},
	}
}
