package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justyntemme/photoframe/internal/playlist"
)

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog and selection counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			s, err := playlist.Stats(cmd.Context(), db)
			if err != nil {
				return err
			}

			cfg := app.cfg.Get()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:   %s\n", app.cfg.Path())
			fmt.Fprintf(out, "library:  %s\n", cfg.Library.PhotoRoot)
			fmt.Fprintf(out, "catalog:  %s\n", db.Path())
			fmt.Fprintf(out, "photos:   %d\n", s.NumPhotos)
			switch {
			case s.AllSelected:
				fmt.Fprintf(out, "selected: all %d\n", s.NumSelected)
			case s.AnySelected:
				fmt.Fprintf(out, "selected: %d\n", s.NumSelected)
			default:
				fmt.Fprintln(out, "selected: none")
			}
			return nil
		},
	}
}
