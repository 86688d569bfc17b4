// Package scanner reconciles the photo directory tree with the catalog and
// rebuilds the directory aggregates.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"

	"github.com/justyntemme/photoframe/internal/debug"
	"github.com/justyntemme/photoframe/internal/logging"
	"github.com/justyntemme/photoframe/internal/metrics"
	"github.com/justyntemme/photoframe/internal/photo"
	"github.com/justyntemme/photoframe/internal/store"
)

// ErrEnumerate wraps a failure to list a directory. The rescan is aborted
// and the previous aggregates are kept.
var ErrEnumerate = errors.New("scanner: cannot enumerate directory")

// LostPolicy decides what happens to catalog rows whose file has gone.
type LostPolicy int

const (
	// Retain keeps lost rows so the photo is rediscovered with its selection
	// if the file comes back.
	Retain LostPolicy = iota
	// Prune deletes lost rows.
	Prune
)

func (p LostPolicy) String() string {
	if p == Prune {
		return "prune"
	}
	return "retain"
}

// ParseLostPolicy accepts "retain" or "prune" (case-insensitive).
func ParseLostPolicy(s string) (LostPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "retain":
		return Retain, nil
	case "prune":
		return Prune, nil
	}
	return Retain, fmt.Errorf("scanner: unknown lost policy %q", s)
}

// Options configures a Scanner.
type Options struct {
	Root           string
	FollowSymlinks bool
	LostPolicy     LostPolicy

	// IsImage classifies regular files. Defaults to photo.IsImage.
	IsImage func(path string) bool
	// Caption is read for newly discovered photos. Defaults to photo.Caption.
	Caption func(path string) string
}

// Result summarizes one rescan.
type Result struct {
	NumPhotos      int // photos found on disk
	NumDirectories int // non-empty directories below the root
	NewPhotos      int
	Lost           []string // slash paths relative to the root
	Pruned         int
	Unknown        int
	Duration       time.Duration
}

// Scanner walks Options.Root and updates the catalog database.
type Scanner struct {
	db   *store.DB
	opts Options
}

// New creates a Scanner. No explorer session may be open while Rescan runs.
func New(db *store.DB, opts Options) *Scanner {
	if opts.IsImage == nil {
		opts.IsImage = photo.IsImage
	}
	if opts.Caption == nil {
		opts.Caption = photo.Caption
	}
	return &Scanner{db: db, opts: opts}
}

type photoKey struct {
	dir, name string
}

type walkResult struct {
	photos  map[photoKey]struct{}
	unknown int
}

// Rescan walks the photo root, inserts new photos, reports lost ones and
// replaces the aggregate table, all in one transaction.
func (s *Scanner) Rescan(ctx context.Context) (Result, error) {
	start := time.Now()
	res, err := s.rescan(ctx)
	res.Duration = time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ScanDuration.WithLabelValues(status).Observe(res.Duration.Seconds())
	if err != nil {
		logging.Error("rescan failed", zap.String("root", s.opts.Root), zap.Error(err))
		return res, err
	}

	logging.Info("rescan complete",
		zap.String("root", s.opts.Root),
		zap.Int("photos", res.NumPhotos),
		zap.Int("directories", res.NumDirectories),
		zap.Int("new", res.NewPhotos),
		zap.Int("lost", len(res.Lost)),
		zap.Int("unknown", res.Unknown),
		zap.Duration("took", res.Duration))
	return res, nil
}

func (s *Scanner) rescan(ctx context.Context) (Result, error) {
	walked, err := s.walk(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{NumPhotos: len(walked.photos), Unknown: walked.unknown}
	metrics.UnknownFiles.Add(float64(walked.unknown))

	err = s.db.InTx(ctx, func(tx *store.Tx) error {
		known, err := tx.AllPhotos(ctx)
		if err != nil {
			return err
		}

		seen := make(map[photoKey]struct{}, len(known))
		for _, p := range known {
			k := photoKey{p.DirectoryPath, p.Filename}
			seen[k] = struct{}{}
			if _, ok := walked.photos[k]; ok {
				debug.Log(debug.SCAN_ENTRY, "rediscovered %s", joinRel(k))
				continue
			}
			rel := joinRel(k)
			res.Lost = append(res.Lost, rel)
			logging.Warn("cannot find photo", zap.String("path", rel))
			if s.opts.LostPolicy == Prune {
				if err := tx.DeletePhoto(ctx, p.ID); err != nil {
					return fmt.Errorf("scanner: prune %s: %w", rel, err)
				}
				res.Pruned++
			}
		}

		for _, k := range sortedKeys(walked.photos) {
			if _, ok := seen[k]; ok {
				continue
			}
			rel := joinRel(k)
			rec := store.PhotoRecord{
				DirectoryPath: k.dir,
				Filename:      k.name,
				Caption:       s.opts.Caption(filepath.Join(s.opts.Root, filepath.FromSlash(rel))),
			}
			if _, err := tx.InsertPhoto(ctx, rec); err != nil {
				return fmt.Errorf("scanner: insert %s: %w", rel, err)
			}
			res.NewPhotos++
			logging.Info("found new photo", zap.String("path", rel))
		}

		catalog, err := tx.AllPhotos(ctx)
		if err != nil {
			return err
		}
		// lost rows stay in the catalog but are invisible to the aggregates
		present := catalog[:0]
		for _, p := range catalog {
			if _, ok := walked.photos[photoKey{p.DirectoryPath, p.Filename}]; ok {
				present = append(present, p)
			}
		}
		aggs := BuildAggregates(present)
		if len(aggs) > 0 {
			res.NumDirectories = len(aggs) - 1
		}
		return tx.ReplaceAggregates(ctx, aggs)
	})
	if err != nil {
		return Result{}, err
	}

	metrics.PhotosDiscovered.Add(float64(res.NewPhotos))
	metrics.PhotosLost.Add(float64(len(res.Lost)))
	metrics.PhotosPruned.Add(float64(res.Pruned))
	return res, nil
}

// walk lists every regular file below the root and classifies it. Files are
// classified concurrently on fastwalk's goroutines.
func (s *Scanner) walk(ctx context.Context) (walkResult, error) {
	root := filepath.Clean(s.opts.Root)
	debug.Log(debug.SCAN, "walk: starting root=%q follow=%v", root, s.opts.FollowSymlinks)

	info, err := os.Stat(root)
	if err != nil {
		return walkResult{}, fmt.Errorf("%w: %s: %v", ErrEnumerate, root, err)
	}
	if !info.IsDir() {
		return walkResult{}, fmt.Errorf("%w: %s is not a directory", ErrEnumerate, root)
	}

	var mu sync.Mutex
	out := walkResult{photos: make(map[photoKey]struct{})}

	conf := &fastwalk.Config{
		Follow: s.opts.FollowSymlinks,
	}
	err = fastwalk.Walk(conf, root, func(fullPath string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if d == nil || d.IsDir() || fullPath == root {
				return fmt.Errorf("%w: %s: %v", ErrEnumerate, fullPath, err)
			}
			logging.Warn("cannot read file", zap.String("path", fullPath), zap.Error(err))
			mu.Lock()
			out.unknown++
			mu.Unlock()
			return nil
		}
		if fullPath == root {
			return nil
		}

		info, err := fastwalk.StatDirEntry(fullPath, d)
		if err != nil {
			logging.Warn("cannot stat file", zap.String("path", fullPath), zap.Error(err))
			mu.Lock()
			out.unknown++
			mu.Unlock()
			return nil
		}
		if info.IsDir() {
			debug.Log(debug.SCAN_ENTRY, "directory %s", fullPath)
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, fullPath)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if !s.opts.IsImage(fullPath) {
			logging.Warn("found unknown file", zap.String("path", rel))
			mu.Lock()
			out.unknown++
			mu.Unlock()
			return nil
		}

		dir, name := splitRel(rel)
		debug.Log(debug.SCAN_ENTRY, "photo %s", rel)
		mu.Lock()
		out.photos[photoKey{dir, name}] = struct{}{}
		mu.Unlock()
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return walkResult{}, ctx.Err()
		}
		if !errors.Is(err, ErrEnumerate) {
			err = fmt.Errorf("%w: %v", ErrEnumerate, err)
		}
		return walkResult{}, err
	}

	debug.Log(debug.SCAN, "walk: complete, %d photos, %d unknown", len(out.photos), out.unknown)
	return out, nil
}

func splitRel(rel string) (dir, name string) {
	i := strings.LastIndexByte(rel, '/')
	if i < 0 {
		return "", rel
	}
	return rel[:i], rel[i+1:]
}

func joinRel(k photoKey) string {
	if k.dir == "" {
		return k.name
	}
	return k.dir + "/" + k.name
}
