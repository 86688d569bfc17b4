package explorer

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/photoframe/internal/photo"
	"github.com/justyntemme/photoframe/internal/scanner"
	"github.com/justyntemme/photoframe/internal/store"
	"github.com/justyntemme/photoframe/internal/tristate"
)

type fixture struct {
	root string
	db   *store.DB
}

// newFixture writes the files (slash paths) as small PNGs, scans them and
// marks selected ones.
func newFixture(t *testing.T, files []string, selected ...string) fixture {
	t.Helper()
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "photos")
	require.NoError(t, os.MkdirAll(root, 0o755))
	for _, rel := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 2))))
		require.NoError(t, f.Close())
	}

	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := scanner.New(db, scanner.Options{Root: root, Caption: func(string) string { return "" }})
	_, err = s.Rescan(ctx)
	require.NoError(t, err)

	if len(selected) > 0 {
		want := map[string]bool{}
		for _, rel := range selected {
			want[rel] = true
		}
		require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error {
			all, err := tx.AllPhotos(ctx)
			if err != nil {
				return err
			}
			for _, p := range all {
				if want[filepath.ToSlash(filepath.Join(p.DirectoryPath, p.Filename))] {
					if err := tx.SetPhotoSelected(ctx, p.ID, true); err != nil {
						return err
					}
				}
			}
			return nil
		}))
		_, err = s.Rescan(ctx)
		require.NoError(t, err)
	}
	return fixture{root: root, db: db}
}

func scenario(t *testing.T) fixture {
	return newFixture(t,
		[]string{"A/a1.png", "A/a2.png", "A/a3.png", "B/b1.png", "B/b2.png"},
		"B/b1.png", "B/b2.png")
}

func (f fixture) open(t *testing.T, opts Options) *Explorer {
	t.Helper()
	opts.PhotoRoot = f.root
	if opts.ItemsPerPage == 0 {
		opts.ItemsPerPage = 2
	}
	opts.IdleWait = 5 * time.Millisecond
	return New(f.db, opts)
}

func (f fixture) selectedCount(t *testing.T) int {
	t.Helper()
	ctx := context.Background()
	tx, err := f.db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	_, n, err := tx.SelectionStats(ctx)
	require.NoError(t, err)
	return n
}

// waitFor polls until match accepts an update, failing after a deadline.
// Every polled update is checked against the current page id.
func waitFor(t *testing.T, e *Explorer, match func(Update) bool) Update {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		u, ok := e.PollUpdate()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		if _, failed := u.(FailureUpdate); !failed {
			require.Equal(t, e.current, u.PageID(), "stale update delivered: %#v", u)
		}
		if match(u) {
			return u
		}
	}
	t.Fatal("timed out waiting for update")
	return nil
}

func isSelectAll(s tristate.State) func(Update) bool {
	return func(u Update) bool {
		sa, ok := u.(SelectAllUpdate)
		return ok && sa.Selection == s
	}
}

func isSelection(index int, s tristate.State) func(Update) bool {
	return func(u Update) bool {
		su, ok := u.(SelectionUpdate)
		return ok && su.Index == index && su.Selection == s
	}
}

func TestStartDisplaysRootPage(t *testing.T) {
	f := scenario(t)
	e := f.open(t, Options{})
	defer e.Close()

	desc, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), desc.PageID)
	assert.True(t, desc.IsDirectory)
	assert.Equal(t, 1, desc.NumPages)
	assert.False(t, desc.Empty)
	assert.Empty(t, desc.Breadcrumbs)

	var got []Update
	waitFor(t, e, func(u Update) bool {
		got = append(got, u)
		_, done := u.(SelectAllUpdate)
		return done
	})

	require.Len(t, got, 6)
	dirs := got[0].(DirectionsUpdate)
	assert.False(t, dirs.Back)
	assert.False(t, dirs.Forward)
	assert.False(t, dirs.Up)
	assert.True(t, dirs.HasSelection)
	assert.Equal(t, tristate.Partial, dirs.Selection)
	assert.Equal(t, NameUpdate{Tag: Tag{0}, Index: 0, Name: "A", IsDirectory: true}, got[1])
	assert.Equal(t, NameUpdate{Tag: Tag{0}, Index: 1, Name: "B", IsDirectory: true}, got[2])
	assert.Equal(t, SelectionUpdate{Tag: Tag{0}, Index: 0, Selection: tristate.Not}, got[3])
	assert.Equal(t, SelectionUpdate{Tag: Tag{0}, Index: 1, Selection: tristate.All}, got[4])
	assert.Equal(t, SelectAllUpdate{Tag: Tag{0}, Selection: tristate.Partial}, got[5])
}

func TestScenarioSelectAllThenDeselectOne(t *testing.T) {
	f := scenario(t)
	e := f.open(t, Options{Decoder: stubDecoder{}})
	defer e.Close()

	_, err := e.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, e.SelectAll(true))
	waitFor(t, e, isSelectAll(tristate.All))
	waitFor(t, e, isSelection(0, tristate.All))
	waitFor(t, e, isSelection(1, tristate.All))

	desc, err := e.GoInto(0)
	require.NoError(t, err)
	assert.Equal(t, "A", desc.Title)
	assert.Equal(t, []string{"A"}, desc.Breadcrumbs)
	assert.Equal(t, 2, desc.NumPages)

	require.NoError(t, e.Select(0, false))
	waitFor(t, e, isSelection(0, tristate.Not))
	dirs := waitFor(t, e, func(u Update) bool {
		d, ok := u.(DirectionsUpdate)
		return ok && d.Selection == tristate.Partial
	}).(DirectionsUpdate)
	assert.True(t, dirs.Forward)
	assert.True(t, dirs.Up)
	waitFor(t, e, isSelectAll(tristate.Partial))

	desc, err = e.GoTo(Up)
	require.NoError(t, err)
	assert.Equal(t, "", desc.Title)
	waitFor(t, e, isSelection(0, tristate.Partial))
	waitFor(t, e, isSelection(1, tristate.All))
}

func TestStaleUpdatesAreDropped(t *testing.T) {
	f := scenario(t)
	e := f.open(t, Options{Decoder: stubDecoder{}})
	defer e.Close()

	first, err := e.Start(context.Background())
	require.NoError(t, err)
	// leave the root page before reading any of its updates
	next, err := e.GoInto(1)
	require.NoError(t, err)
	assert.Greater(t, next.PageID, first.PageID)

	var names []string
	waitFor(t, e, func(u Update) bool {
		assert.Equal(t, next.PageID, u.PageID())
		if n, ok := u.(NameUpdate); ok {
			names = append(names, n.Name)
		}
		_, done := u.(SelectAllUpdate)
		return done
	})
	assert.Equal(t, []string{"b1.png", "b2.png"}, names)
}

func TestCommitPersistsEdits(t *testing.T) {
	f := scenario(t)
	e := f.open(t, Options{})

	_, err := e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.SelectAll(true))
	require.NoError(t, e.CommitOrCancel(true))
	require.NoError(t, e.Close())

	assert.Equal(t, 5, f.selectedCount(t))
}

func TestCancelRestoresCatalog(t *testing.T) {
	f := scenario(t)
	e := f.open(t, Options{Decoder: stubDecoder{}})
	defer e.Close()

	_, err := e.Start(context.Background())
	require.NoError(t, err)
	_, err = e.GoInto(0)
	require.NoError(t, err)
	require.NoError(t, e.Select(0, true))
	require.NoError(t, e.Select(1, true))
	waitFor(t, e, isSelection(1, tristate.All))

	require.NoError(t, e.CommitOrCancel(false))
	waitFor(t, e, isSelection(0, tristate.Not))
	waitFor(t, e, isSelectAll(tristate.Partial))

	// the session goes on with a fresh transaction
	require.NoError(t, e.Select(1, true))
	waitFor(t, e, isSelection(1, tristate.All))
	require.NoError(t, e.CommitOrCancel(true))
	require.NoError(t, e.Close())

	assert.Equal(t, 3, f.selectedCount(t))
}

func TestCloseWithoutCommitRollsBack(t *testing.T) {
	f := scenario(t)
	e := f.open(t, Options{})

	_, err := e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.SelectAll(false))
	require.NoError(t, e.Close())

	assert.Equal(t, 2, f.selectedCount(t))
	assert.ErrorIs(t, e.Select(0, true), ErrClosed)
	assert.Panics(t, func() { _ = e.Close() })
}

func TestEmptyCatalog(t *testing.T) {
	f := newFixture(t, nil)
	e := f.open(t, Options{})
	defer e.Close()

	desc, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, desc.Empty)
	assert.Zero(t, desc.NumPages)

	dirs := waitFor(t, e, func(u Update) bool { _, ok := u.(DirectionsUpdate); return ok }).(DirectionsUpdate)
	assert.False(t, dirs.HasSelection)
	waitFor(t, e, isSelectAll(tristate.Not))
}

func TestAllPhotosLostShowsEmptyCatalog(t *testing.T) {
	f := newFixture(t, []string{"A/1.png"})
	require.NoError(t, os.RemoveAll(filepath.Join(f.root, "A")))
	res, err := scanner.New(f.db, scanner.Options{Root: f.root}).Rescan(context.Background())
	require.NoError(t, err)
	require.Zero(t, res.NumPhotos)

	e := f.open(t, Options{})
	defer e.Close()
	desc, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, desc.Empty)
	assert.Zero(t, desc.NumPages)
}

func TestContractViolationEndsSession(t *testing.T) {
	testCases := []struct {
		name string
		act  func(e *Explorer) error
	}{
		{"up at root", func(e *Explorer) error { _, err := e.GoTo(Up); return err }},
		{"previous on first page", func(e *Explorer) error { _, err := e.GoTo(Previous); return err }},
		{"index out of range", func(e *Explorer) error { _, err := e.GoInto(7); return err }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := scenario(t)
			e := f.open(t, Options{})
			defer e.Close()

			_, err := e.Start(context.Background())
			require.NoError(t, err)
			require.NoError(t, e.SelectAll(true))

			err = tc.act(e)
			assert.ErrorIs(t, err, ErrSessionFailed)
			assert.ErrorIs(t, e.Select(0, true), ErrSessionFailed)
			assert.ErrorIs(t, e.Failed(), errContract)
			assert.Equal(t, 2, f.selectedCount(t), "edits rolled back")
		})
	}
}

func TestBadSelectIndexReportsFailure(t *testing.T) {
	f := scenario(t)
	e := f.open(t, Options{})
	defer e.Close()

	_, err := e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Select(5, true))

	u := waitFor(t, e, func(u Update) bool { _, ok := u.(FailureUpdate); return ok })
	assert.ErrorIs(t, u.(FailureUpdate).Err, errContract)
	_, ok := e.PollUpdate()
	assert.False(t, ok)
}

func TestCloseReturnsWorkerFailure(t *testing.T) {
	f := scenario(t)
	e := f.open(t, Options{})

	_, err := e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.SelectAll(true))
	require.NoError(t, e.Select(5, true))

	// the failure is never polled
	err = e.Close()
	assert.ErrorIs(t, err, ErrSessionFailed)
	assert.Contains(t, err.Error(), "index 5 out of range")
	assert.Equal(t, 2, f.selectedCount(t), "edits rolled back")
}

func TestPhotoPage(t *testing.T) {
	f := scenario(t)
	e := f.open(t, Options{Decoder: photo.FileDecoder{}, Bounds: image.Pt(2, 2)})
	defer e.Close()

	_, err := e.Start(context.Background())
	require.NoError(t, err)
	_, err = e.GoInto(1)
	require.NoError(t, err)

	desc, err := e.GoInto(1)
	require.NoError(t, err)
	assert.False(t, desc.IsDirectory)
	assert.Equal(t, "b2.png", desc.Title)
	assert.Equal(t, []string{"B", "b2.png"}, desc.Breadcrumbs)

	img := waitFor(t, e, func(u Update) bool { _, ok := u.(ImageUpdate); return ok }).(ImageUpdate)
	require.False(t, img.Lost)
	assert.Equal(t, "B/b2.png", img.Path)
	assert.Equal(t, image.Pt(2, 1), img.Image.Bounds().Size())

	require.NoError(t, e.Select(0, false))
	waitFor(t, e, isSelection(0, tristate.Not))

	desc, err = e.GoTo(Up)
	require.NoError(t, err)
	assert.Equal(t, "B", desc.Title)
	waitFor(t, e, isSelection(1, tristate.Not))
	dirs := waitFor(t, e, func(u Update) bool { _, ok := u.(DirectionsUpdate); return ok }).(DirectionsUpdate)
	assert.Equal(t, tristate.Partial, dirs.Selection)
}

func TestMissingPhotoIsReportedLost(t *testing.T) {
	f := scenario(t)
	require.NoError(t, os.Remove(filepath.Join(f.root, "A", "a1.png")))
	e := f.open(t, Options{Decoder: photo.FileDecoder{}})
	defer e.Close()

	_, err := e.Start(context.Background())
	require.NoError(t, err)
	_, err = e.GoInto(0)
	require.NoError(t, err)
	_, err = e.GoInto(0)
	require.NoError(t, err)

	img := waitFor(t, e, func(u Update) bool { _, ok := u.(ImageUpdate); return ok }).(ImageUpdate)
	assert.True(t, img.Lost)
	assert.Nil(t, img.Image)

	// the session is still usable
	_, err = e.GoTo(Up)
	require.NoError(t, err)
}

func TestPhotoDeletedDuringSessionIsReportedLost(t *testing.T) {
	f := scenario(t)
	e := f.open(t, Options{})
	defer e.Close()
	isImage := func(u Update) bool { _, ok := u.(ImageUpdate); return ok }

	_, err := e.Start(context.Background())
	require.NoError(t, err)
	_, err = e.GoInto(0)
	require.NoError(t, err)
	_, err = e.GoInto(0)
	require.NoError(t, err)
	require.False(t, waitFor(t, e, isImage).(ImageUpdate).Lost)

	_, err = e.GoTo(Up)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.root, "A", "a1.png")))
	_, err = e.GoInto(0)
	require.NoError(t, err)

	img := waitFor(t, e, isImage).(ImageUpdate)
	assert.True(t, img.Lost, "cached bitmap must not hide the deletion")
	assert.Nil(t, img.Image)
}

func TestPageNavigation(t *testing.T) {
	f := scenario(t)
	e := f.open(t, Options{})
	defer e.Close()

	_, err := e.Start(context.Background())
	require.NoError(t, err)
	_, err = e.GoInto(0)
	require.NoError(t, err)

	desc, err := e.GoTo(Next)
	require.NoError(t, err)
	assert.Equal(t, 1, desc.Page)
	dirs := waitFor(t, e, func(u Update) bool { _, ok := u.(DirectionsUpdate); return ok }).(DirectionsUpdate)
	assert.True(t, dirs.Back)
	assert.False(t, dirs.Forward)
	name := waitFor(t, e, func(u Update) bool { _, ok := u.(NameUpdate); return ok }).(NameUpdate)
	assert.Equal(t, "a3.png", name.Name)

	desc, err = e.GoTo(Previous)
	require.NoError(t, err)
	assert.Equal(t, 0, desc.Page)
	assert.Equal(t, int64(3), desc.PageID)
}

func TestPollBeforeStart(t *testing.T) {
	f := scenario(t)
	e := f.open(t, Options{})
	_, ok := e.PollUpdate()
	assert.False(t, ok)
	assert.NotEqual(t, [16]byte{}, [16]byte(e.ID()))
	assert.NoError(t, e.Close())
}

type stubDecoder struct{}

func (stubDecoder) Decode(path string, bounds image.Point) (image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Join(photo.ErrNotFound, err)
	}
	return image.NewGray(image.Rect(0, 0, 1, 1)), nil
}
