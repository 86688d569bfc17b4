package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/justyntemme/photoframe/internal/debug"
	"github.com/justyntemme/photoframe/internal/logging"
	"go.uber.org/zap"
)

const (
	SchemaMajor = 1
	SchemaMinor = 0
)

var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		major INTEGER NOT NULL,
		minor INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS photos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		directory_path TEXT NOT NULL,
		filename TEXT NOT NULL,
		caption TEXT,
		selected INTEGER NOT NULL DEFAULT 0,
		UNIQUE (directory_path, filename)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_photos_directory ON photos(directory_path);`,
}

// Runtime tables are rebuilt on every Open; their content only lives as long
// as one run of the program.
var runtimeSchema = []string{
	`DROP TABLE IF EXISTS directory_aggregates;`,
	`CREATE TABLE directory_aggregates (
		path TEXT PRIMARY KEY,
		parent_path TEXT,
		name TEXT,
		num_photos INTEGER NOT NULL,
		num_subdirectories INTEGER NOT NULL,
		selection INTEGER NOT NULL
	);`,
	`CREATE INDEX idx_aggregates_parent ON directory_aggregates(parent_path);`,
	`DROP TABLE IF EXISTS playlist;`,
	`CREATE TABLE playlist (
		position INTEGER PRIMARY KEY,
		photo_id INTEGER NOT NULL,
		lost INTEGER NOT NULL DEFAULT 0
	);`,
}

func (d *DB) migrate(ctx context.Context) error {
	hasVersion, err := d.tableExists(ctx, "schema_version")
	if err != nil {
		return err
	}
	if hasVersion {
		var major, minor int
		err := d.conn.QueryRowContext(ctx, `SELECT major, minor FROM schema_version WHERE id = 1`).Scan(&major, &minor)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: version row missing", ErrUnknownSchema)
		}
		if err != nil {
			return err
		}
		if major != SchemaMajor || minor != SchemaMinor {
			return fmt.Errorf("%w: v%d.%d", ErrUnknownSchema, major, minor)
		}
		return nil
	}

	legacy, err := d.tableExists(ctx, "photolist")
	if err != nil {
		return err
	}
	if legacy {
		return d.upgradeV0(ctx)
	}

	debug.Log(debug.STORE, "creating schema v%d.%d", SchemaMajor, SchemaMinor)
	return d.InTx(ctx, func(t *Tx) error {
		return t.createV1(ctx)
	})
}

func (t *Tx) createV1(ctx context.Context) error {
	for _, stmt := range schemaV1 {
		if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO schema_version (id, major, minor) VALUES (1, ?, ?)`,
		SchemaMajor, SchemaMinor)
	return err
}

// upgradeV0 converts the album-based v0 layout (photolist + displayed_album)
// to v1. A copy of the database is written next to it first.
func (d *DB) upgradeV0(ctx context.Context) error {
	backup := d.path + ".bak"
	_ = os.Remove(backup)
	if _, err := d.conn.ExecContext(ctx, `VACUUM INTO ?`, backup); err != nil {
		return fmt.Errorf("store: backup before upgrade: %w", err)
	}
	logging.Info("upgrading catalog database", zap.String("from", "v0.0"), zap.String("backup", backup))

	hasDisplay, err := d.tableExists(ctx, "displayed_album")
	if err != nil {
		return err
	}

	return d.InTx(ctx, func(t *Tx) error {
		if err := t.createV1(ctx); err != nil {
			return err
		}

		allPhotos := false
		var album sql.NullString
		if hasDisplay {
			err := t.tx.QueryRowContext(ctx, `SELECT album, all_photos FROM displayed_album LIMIT 1`).Scan(&album, &allPhotos)
			if err != nil && err != sql.ErrNoRows {
				return err
			}
		}

		_, err := t.tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO photos (directory_path, filename, selected)
			SELECT album, filename, CASE WHEN ? OR (? IS NOT NULL AND album = ?) THEN 1 ELSE 0 END
			FROM photolist ORDER BY album, filename`,
			allPhotos, album, album)
		if err != nil {
			return err
		}

		for _, stmt := range []string{`DROP TABLE photolist;`, `DROP TABLE IF EXISTS displayed_album;`} {
			if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) resetRuntime(ctx context.Context) error {
	return d.InTx(ctx, func(t *Tx) error {
		for _, stmt := range runtimeSchema {
			if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) tableExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := d.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	return n > 0, err
}
