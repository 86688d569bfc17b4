package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/justyntemme/photoframe/internal/tristate"
)

// DirectoryAggregate summarizes the subtree rooted at one directory that
// contains at least one photo. The root has Path "".
type DirectoryAggregate struct {
	Path              string
	ParentPath        string // meaningless for the root
	Name              string // final path component, "" for the root
	NumPhotos         int
	NumSubdirectories int
	Selection         tristate.State
}

// IsRoot reports whether a is the photo root's aggregate.
func (a DirectoryAggregate) IsRoot() bool {
	return a.Path == ""
}

const aggregateColumns = `path, parent_path, name, num_photos, num_subdirectories, selection`

func scanAggregate(row interface{ Scan(...any) error }) (DirectoryAggregate, error) {
	var a DirectoryAggregate
	var parent, name sql.NullString
	var sel int
	if err := row.Scan(&a.Path, &parent, &name, &a.NumPhotos, &a.NumSubdirectories, &sel); err != nil {
		return DirectoryAggregate{}, err
	}
	s, err := tristate.Parse(sel)
	if err != nil {
		return DirectoryAggregate{}, fmt.Errorf("store: aggregate %q: %w", a.Path, err)
	}
	a.ParentPath = parent.String
	a.Name = name.String
	a.Selection = s
	return a, nil
}

// Aggregate returns the aggregate for path, or ErrNotFound.
func (t *Tx) Aggregate(ctx context.Context, path string) (DirectoryAggregate, error) {
	a, err := scanAggregate(t.tx.QueryRowContext(ctx,
		`SELECT `+aggregateColumns+` FROM directory_aggregates WHERE path = ?`, path))
	if err == sql.ErrNoRows {
		return DirectoryAggregate{}, ErrNotFound
	}
	return a, err
}

// ChildAggregates returns the aggregates whose parent is path, ordered by name.
func (t *Tx) ChildAggregates(ctx context.Context, path string) ([]DirectoryAggregate, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+aggregateColumns+` FROM directory_aggregates WHERE parent_path = ? ORDER BY name`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DirectoryAggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ReplaceAggregates discards the aggregate table and writes aggs in its place.
func (t *Tx) ReplaceAggregates(ctx context.Context, aggs []DirectoryAggregate) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM directory_aggregates`); err != nil {
		return err
	}
	stmt, err := t.tx.PrepareContext(ctx,
		`INSERT INTO directory_aggregates (`+aggregateColumns+`) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range aggs {
		var parent, name sql.NullString
		if !a.IsRoot() {
			parent = sql.NullString{String: a.ParentPath, Valid: true}
			name = sql.NullString{String: a.Name, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, a.Path, parent, name, a.NumPhotos, a.NumSubdirectories, int(a.Selection)); err != nil {
			return fmt.Errorf("store: insert aggregate %q: %w", a.Path, err)
		}
	}
	return nil
}

// SetAggregateSelection updates one aggregate's selection summary.
func (t *Tx) SetAggregateSelection(ctx context.Context, path string, s tristate.State) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE directory_aggregates SET selection = ? WHERE path = ?`, int(s), path)
	if err != nil {
		return err
	}
	return checkAffected(res)
}
