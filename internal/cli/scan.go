package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/justyntemme/photoframe/internal/metrics"
	"github.com/justyntemme/photoframe/internal/scanner"
)

func newScanCmd(app *App) *cobra.Command {
	var (
		showMetrics bool
		lostPolicy  string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Reconcile the catalog with the photo library on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := app.scannerOptions()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("lost") {
				if opts.LostPolicy, err = scanner.ParseLostPolicy(lostPolicy); err != nil {
					return err
				}
			}

			db, err := app.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := scanner.New(db, opts).Rescan(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d photos in %d directories (%d new, %d unknown files) in %s\n",
				res.NumPhotos, res.NumDirectories, res.NewPhotos, res.Unknown, res.Duration.Round(time.Millisecond))
			if len(res.Lost) > 0 {
				verb := "kept"
				if opts.LostPolicy == scanner.Prune {
					verb = "pruned"
				}
				fmt.Fprintf(out, "%d photos lost (%s):\n", len(res.Lost), verb)
				for _, p := range res.Lost {
					fmt.Fprintf(out, "  %s\n", p)
				}
			}
			if showMetrics {
				return metrics.WriteText(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print scanner metrics after the scan")
	cmd.Flags().StringVar(&lostPolicy, "lost", "", "What to do with photos gone from disk (retain|prune); overrides config")
	return cmd
}
