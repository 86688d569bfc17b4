package store

import (
	"context"
	"database/sql"
)

// PlaylistEntry is one slot of the slideshow order.
type PlaylistEntry struct {
	Position      int64
	PhotoID       int64
	DirectoryPath string
	Filename      string
	Caption       string
}

// ResetPlaylist rebuilds the playlist from the selected photos, in catalog
// order or shuffled, and returns its length.
func (t *Tx) ResetPlaylist(ctx context.Context, shuffle bool) (int, error) {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM playlist`); err != nil {
		return 0, err
	}
	order := `directory_path, filename`
	if shuffle {
		order = `random()`
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO playlist (photo_id) SELECT id FROM photos WHERE selected = 1 ORDER BY `+order)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

const playlistSelect = `
	SELECT p.position, p.photo_id, ph.directory_path, ph.filename, ph.caption
	FROM playlist p JOIN photos ph ON ph.id = p.photo_id
	WHERE p.lost = 0 AND `

func (t *Tx) playlistEntry(ctx context.Context, query string, args ...any) (PlaylistEntry, error) {
	var e PlaylistEntry
	var caption sql.NullString
	err := t.tx.QueryRowContext(ctx, playlistSelect+query, args...).
		Scan(&e.Position, &e.PhotoID, &e.DirectoryPath, &e.Filename, &caption)
	if err == sql.ErrNoRows {
		return PlaylistEntry{}, ErrNotFound
	}
	e.Caption = caption.String
	return e, err
}

// PlaylistAfter returns the first live entry after position.
func (t *Tx) PlaylistAfter(ctx context.Context, position int64) (PlaylistEntry, error) {
	return t.playlistEntry(ctx, `p.position > ? ORDER BY p.position LIMIT 1`, position)
}

// PlaylistBefore returns the last live entry before position.
func (t *Tx) PlaylistBefore(ctx context.Context, position int64) (PlaylistEntry, error) {
	return t.playlistEntry(ctx, `p.position < ? ORDER BY p.position DESC LIMIT 1`, position)
}

// MarkPlaylistLost flags an entry whose file could not be shown.
func (t *Tx) MarkPlaylistLost(ctx context.Context, position int64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE playlist SET lost = 1 WHERE position = ?`, position)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// PlaylistLen counts entries not marked lost.
func (t *Tx) PlaylistLen(ctx context.Context) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM playlist WHERE lost = 0`).Scan(&n)
	return n, err
}
