// Package playlist orders the selected photos for the slideshow and walks
// that order.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/justyntemme/photoframe/internal/debug"
	"github.com/justyntemme/photoframe/internal/logging"
	"github.com/justyntemme/photoframe/internal/photo"
	"github.com/justyntemme/photoframe/internal/store"
)

// ErrEmptyPlaylist is returned when no displayable photo is left.
var ErrEmptyPlaylist = errors.New("playlist: no photos to show")

// Summary describes the current selection.
type Summary struct {
	NumPhotos   int
	NumSelected int
	AnySelected bool
	AllSelected bool
}

// Stats reads the selection summary from the catalog.
func Stats(ctx context.Context, db *store.DB) (Summary, error) {
	var s Summary
	err := db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		s.NumPhotos, s.NumSelected, err = tx.SelectionStats(ctx)
		return err
	})
	if err != nil {
		return Summary{}, err
	}
	s.AnySelected = s.NumSelected > 0
	s.AllSelected = s.NumPhotos > 0 && s.NumSelected == s.NumPhotos
	return s, nil
}

// Reorder rebuilds the playlist from the selected photos and returns its
// length. Without shuffle the order is the catalog order.
func Reorder(ctx context.Context, db *store.DB, shuffle bool) (int, error) {
	var n int
	err := db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		n, err = tx.ResetPlaylist(ctx, shuffle)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("playlist: reorder: %w", err)
	}
	debug.Log(debug.PLAYLIST, "reordered %d photos shuffle=%v", n, shuffle)
	return n, nil
}

// Slide is one displayable playlist entry.
type Slide struct {
	Position int64
	Path     string // slash path below the photo root
	Caption  string
	Image    image.Image
}

// Options configures a Cursor.
type Options struct {
	PhotoRoot string
	Bounds    image.Point
	Decoder   photo.Decoder
}

// Cursor walks the playlist with wrap-around. Entries whose image cannot be
// decoded are marked lost and skipped from then on.
type Cursor struct {
	db   *store.DB
	opts Options
	pos  int64 // 0 before the first Next
}

// NewCursor creates a cursor positioned before the first entry.
func NewCursor(db *store.DB, opts Options) *Cursor {
	if opts.Decoder == nil {
		opts.Decoder = photo.FileDecoder{}
	}
	return &Cursor{db: db, opts: opts}
}

// Next advances to the following displayable photo.
func (c *Cursor) Next(ctx context.Context) (Slide, error) {
	return c.move(ctx, true)
}

// Previous steps back to the preceding displayable photo.
func (c *Cursor) Previous(ctx context.Context) (Slide, error) {
	return c.move(ctx, false)
}

func (c *Cursor) move(ctx context.Context, forward bool) (Slide, error) {
	pos := c.pos
	if !forward && pos == 0 {
		pos = math.MaxInt64
	}
	wrapped := false

	for {
		entry, err := c.entry(ctx, pos, forward)
		if errors.Is(err, store.ErrNotFound) {
			if wrapped {
				return Slide{}, ErrEmptyPlaylist
			}
			wrapped = true
			pos = 0
			if !forward {
				pos = math.MaxInt64
			}
			continue
		}
		if err != nil {
			return Slide{}, err
		}

		rel := entry.Filename
		if entry.DirectoryPath != "" {
			rel = entry.DirectoryPath + "/" + entry.Filename
		}
		img, err := c.opts.Decoder.Decode(filepath.Join(c.opts.PhotoRoot, filepath.FromSlash(rel)), c.opts.Bounds)
		if err != nil {
			logging.Warn("cannot show photo, skipping", zap.String("path", rel), zap.Error(err))
			if err := c.db.InTx(ctx, func(tx *store.Tx) error {
				return tx.MarkPlaylistLost(ctx, entry.Position)
			}); err != nil {
				return Slide{}, err
			}
			pos = entry.Position
			continue
		}

		c.pos = entry.Position
		debug.Log(debug.PLAYLIST, "showing #%d %s", entry.Position, rel)
		return Slide{Position: entry.Position, Path: rel, Caption: entry.Caption, Image: img}, nil
	}
}

func (c *Cursor) entry(ctx context.Context, pos int64, forward bool) (store.PlaylistEntry, error) {
	var e store.PlaylistEntry
	err := c.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		if forward {
			e, err = tx.PlaylistAfter(ctx, pos)
		} else {
			e, err = tx.PlaylistBefore(ctx, pos)
		}
		return err
	})
	return e, err
}
