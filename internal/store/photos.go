package store

import (
	"context"
	"database/sql"
	"unicode/utf8"

	"github.com/justyntemme/photoframe/internal/tristate"
)

// PhotoRecord is one row of the durable catalog. DirectoryPath is relative to
// the photo root, "" for photos directly under it.
type PhotoRecord struct {
	ID            int64
	DirectoryPath string
	Filename      string
	Caption       string // empty when the photo has none
	Selected      bool
}

const photoColumns = `id, directory_path, filename, caption, selected`

func scanPhoto(row interface{ Scan(...any) error }) (PhotoRecord, error) {
	var p PhotoRecord
	var caption sql.NullString
	if err := row.Scan(&p.ID, &p.DirectoryPath, &p.Filename, &caption, &p.Selected); err != nil {
		return PhotoRecord{}, err
	}
	p.Caption = caption.String
	return p, nil
}

func (t *Tx) queryPhotos(ctx context.Context, query string, args ...any) ([]PhotoRecord, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PhotoRecord
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PhotosIn returns the photos directly inside dir, ordered by filename.
func (t *Tx) PhotosIn(ctx context.Context, dir string) ([]PhotoRecord, error) {
	return t.queryPhotos(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE directory_path = ? ORDER BY filename`, dir)
}

// AllPhotos returns the whole catalog ordered by directory then filename.
func (t *Tx) AllPhotos(ctx context.Context) ([]PhotoRecord, error) {
	return t.queryPhotos(ctx,
		`SELECT `+photoColumns+` FROM photos ORDER BY directory_path, filename`)
}

// Photo returns the photo with the given id.
func (t *Tx) Photo(ctx context.Context, id int64) (PhotoRecord, error) {
	p, err := scanPhoto(t.tx.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return PhotoRecord{}, ErrNotFound
	}
	return p, err
}

// InsertPhoto adds a catalog row and returns its id.
func (t *Tx) InsertPhoto(ctx context.Context, p PhotoRecord) (int64, error) {
	var caption sql.NullString
	if p.Caption != "" {
		caption = sql.NullString{String: p.Caption, Valid: true}
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO photos (directory_path, filename, caption, selected) VALUES (?, ?, ?, ?)`,
		p.DirectoryPath, p.Filename, caption, p.Selected)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SetPhotoSelected updates one photo's selected flag.
func (t *Tx) SetPhotoSelected(ctx context.Context, id int64, selected bool) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE photos SET selected = ? WHERE id = ?`, selected, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// DeletePhoto removes one catalog row.
func (t *Tx) DeletePhoto(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// SelectionStats counts catalog rows and how many of them are selected.
func (t *Tx) SelectionStats(ctx context.Context) (total, selected int, err error) {
	err = t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(selected), 0) FROM photos`).Scan(&total, &selected)
	return total, selected, err
}

// SetSubtreeSelection sets every photo and every aggregate at or below dir
// to selected (All) or not (Not). dir "" is the root.
func (t *Tx) SetSubtreeSelection(ctx context.Context, dir string, selected bool) error {
	// Prefix match with substr rather than LIKE: directory names may contain % or _.
	prefix := dir + "/"
	n := utf8.RuneCountInString(prefix)
	if _, err := t.tx.ExecContext(ctx, `
		UPDATE photos SET selected = ?
		WHERE ? = '' OR directory_path = ? OR substr(directory_path, 1, ?) = ?`,
		selected, dir, dir, n, prefix); err != nil {
		return err
	}

	_, err := t.tx.ExecContext(ctx, `
		UPDATE directory_aggregates SET selection = ?
		WHERE ? = '' OR path = ? OR substr(path, 1, ?) = ?`,
		int(tristate.FromBool(selected)), dir, dir, n, prefix)
	return err
}
