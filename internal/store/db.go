package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/justyntemme/photoframe/internal/debug"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var (
	// ErrNotFound is returned when a keyed row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrUnknownSchema is returned by Open for a database written by an unknown version.
	ErrUnknownSchema = errors.New("store: unknown schema version")
)

// DB is the photo catalog database. It holds the durable catalog (photos),
// the per-run aggregate index and the slideshow playlist.
type DB struct {
	conn *sql.DB
	path string
}

// Open initializes the database connection, upgrades the schema if needed and
// resets the runtime tables.
func Open(ctx context.Context, dbPath string) (*DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	// WAL mode allows simultaneous readers and writers; busy_timeout keeps a
	// reader from failing while an explorer session holds the write lock.
	pragmas := []string{
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"busy_timeout(5000)",
	}
	dsn := "file:" + dbPath
	for i, p := range pragmas {
		sep := "&"
		if i == 0 {
			sep = "?"
		}
		dsn += sep + "_pragma=" + p
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	d := &DB{conn: conn, path: dbPath}
	if err := d.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := d.resetRuntime(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	debug.Log(debug.STORE, "opened %s", dbPath)
	return d, nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Close releases the connection pool.
func (d *DB) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// Begin starts a transaction. Every read and write of both stores goes
// through a Tx, so edits are visible to later reads of the same Tx and
// Commit/Rollback apply to catalog and aggregates together.
func (d *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	debug.Log(debug.STORE, "begin tx")
	return &Tx{tx: tx}, nil
}

// InTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func (d *DB) InTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := d.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Tx is an open transaction over the catalog database.
type Tx struct {
	tx *sql.Tx
}

// Commit persists every edit made through the Tx.
func (t *Tx) Commit() error {
	debug.Log(debug.STORE, "commit tx")
	return t.tx.Commit()
}

// Rollback discards every edit made through the Tx.
func (t *Tx) Rollback() error {
	debug.Log(debug.STORE, "rollback tx")
	return t.tx.Rollback()
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
