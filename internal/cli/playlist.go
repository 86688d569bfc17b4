package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justyntemme/photoframe/internal/photo"
	"github.com/justyntemme/photoframe/internal/playlist"
)

func newPlaylistCmd(app *App) *cobra.Command {
	var (
		shuffle bool
		show    int
	)

	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Rebuild the slideshow order from the selected photos",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg.Get()
			if !cmd.Flags().Changed("shuffle") {
				shuffle = cfg.Slideshow.Shuffle
			}

			db, err := app.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := playlist.Reorder(cmd.Context(), db, shuffle)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d photos in the playlist\n", n)

			if show <= 0 {
				return nil
			}
			cur := playlist.NewCursor(db, playlist.Options{
				PhotoRoot: cfg.Library.PhotoRoot,
				Bounds:    cfg.Display.Bounds(),
				Decoder:   photo.NewCache(photo.FileDecoder{}, 4),
			})
			for i := 0; i < show; i++ {
				slide, err := cur.Next(cmd.Context())
				if errors.Is(err, playlist.ErrEmptyPlaylist) {
					fmt.Fprintln(out, "nothing left to show")
					return nil
				}
				if err != nil {
					return err
				}
				line := slide.Path
				if slide.Caption != "" {
					line += "  " + slide.Caption
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&shuffle, "shuffle", false, "Shuffle instead of catalog order (default from config)")
	cmd.Flags().IntVar(&show, "show", 0, "Walk the first N slides and print them")
	return cmd
}
