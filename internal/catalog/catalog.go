// Package catalog is the in-memory, paginated view of the photo catalog used
// by one explorer session. Nodes live in an Arena and refer to each other by
// index; directory pages are loaded from the store on first access.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/justyntemme/photoframe/internal/debug"
	"github.com/justyntemme/photoframe/internal/store"
	"github.com/justyntemme/photoframe/internal/tristate"
)

// ErrPartialWrite is returned when Partial (or an invalid state) is written
// to a node. Nothing is mutated.
var ErrPartialWrite = errors.New("catalog: only All or Not can be written")

// Store is the transactional access the model needs. *store.Tx implements it.
type Store interface {
	Aggregate(ctx context.Context, path string) (store.DirectoryAggregate, error)
	ChildAggregates(ctx context.Context, path string) ([]store.DirectoryAggregate, error)
	PhotosIn(ctx context.Context, dir string) ([]store.PhotoRecord, error)
	Photo(ctx context.Context, id int64) (store.PhotoRecord, error)
	SetPhotoSelected(ctx context.Context, id int64, selected bool) error
	SetAggregateSelection(ctx context.Context, path string, s tristate.State) error
	SetSubtreeSelection(ctx context.Context, dir string, selected bool) error
}

var _ Store = (*store.Tx)(nil)

// NodeID indexes a node in its Arena.
type NodeID int

// NoNode is the parent of the root.
const NoNode NodeID = -1

// Kind tags a node as a directory or a photo.
type Kind int

const (
	KindDirectory Kind = iota
	KindPhoto
)

func (k Kind) String() string {
	if k == KindPhoto {
		return "photo"
	}
	return "directory"
}

type node struct {
	kind   Kind
	parent NodeID
	name   string
	dir    string // directory: own path; photo: containing directory

	// KindDirectory
	numPhotos  int
	numSubdirs int
	selection  tristate.State
	pages      [][]NodeID
	loaded     bool

	// KindPhoto
	photoID  int64
	caption  string
	selected bool
}

// Arena owns every node created during one session.
type Arena struct {
	st      Store
	perPage int
	nodes   []node
	root    NodeID
}

// NewArena creates an empty arena reading from st. itemsPerPage must be positive.
func NewArena(st Store, itemsPerPage int) *Arena {
	if itemsPerPage < 1 {
		panic(fmt.Sprintf("catalog: itemsPerPage must be positive, got %d", itemsPerPage))
	}
	return &Arena{st: st, perPage: itemsPerPage, root: NoNode}
}

// SetStore points the arena at a new transaction. Cached selections are kept;
// call Refresh if the old transaction was rolled back.
func (a *Arena) SetStore(st Store) {
	a.st = st
}

// ItemsPerPage returns the page size.
func (a *Arena) ItemsPerPage() int {
	return a.perPage
}

// Root returns the root directory, loading its aggregate on first use. A
// catalog without photos yields an empty root with no pages.
func (a *Arena) Root(ctx context.Context) (NodeID, error) {
	if a.root != NoNode {
		return a.root, nil
	}
	n := node{kind: KindDirectory, parent: NoNode, selection: tristate.Not}
	agg, err := a.st.Aggregate(ctx, "")
	switch {
	case errors.Is(err, store.ErrNotFound):
		n.loaded = true
		debug.Log(debug.CATALOG, "root has no aggregate, catalog is empty")
	case err != nil:
		return NoNode, fmt.Errorf("catalog: load root: %w", err)
	default:
		n.numPhotos = agg.NumPhotos
		n.numSubdirs = agg.NumSubdirectories
		n.selection = agg.Selection
	}
	a.root = a.add(n)
	return a.root, nil
}

func (a *Arena) add(n node) NodeID {
	a.nodes = append(a.nodes, n)
	return NodeID(len(a.nodes) - 1)
}

func (a *Arena) dirNode(id NodeID) *node {
	n := &a.nodes[id]
	if n.kind != KindDirectory {
		panic(fmt.Sprintf("catalog: node %d is a photo, not a directory", id))
	}
	return n
}

// LoadPages populates the pages of directory id: subdirectories by name, then
// photos by filename. Calling it again is a no-op.
func (a *Arena) LoadPages(ctx context.Context, id NodeID) error {
	if a.dirNode(id).loaded {
		return nil
	}
	dir := a.nodes[id].dir

	subdirs, err := a.st.ChildAggregates(ctx, dir)
	if err != nil {
		return fmt.Errorf("catalog: load %q: %w", dir, err)
	}
	photos, err := a.st.PhotosIn(ctx, dir)
	if err != nil {
		return fmt.Errorf("catalog: load %q: %w", dir, err)
	}

	items := make([]NodeID, 0, len(subdirs)+len(photos))
	for _, agg := range subdirs {
		items = append(items, a.add(node{
			kind:       KindDirectory,
			parent:     id,
			name:       agg.Name,
			dir:        agg.Path,
			numPhotos:  agg.NumPhotos,
			numSubdirs: agg.NumSubdirectories,
			selection:  agg.Selection,
		}))
	}
	for _, p := range photos {
		items = append(items, a.add(node{
			kind:     KindPhoto,
			parent:   id,
			name:     p.Filename,
			dir:      p.DirectoryPath,
			photoID:  p.ID,
			caption:  p.Caption,
			selected: p.Selected,
		}))
	}

	var pages [][]NodeID
	for start := 0; start < len(items); start += a.perPage {
		end := min(start+a.perPage, len(items))
		pages = append(pages, items[start:end:end])
	}

	n := &a.nodes[id]
	n.pages = pages
	n.loaded = true
	debug.Log(debug.CATALOG, "loaded %q: %d subdirectories, %d photos, %d pages",
		dir, len(subdirs), len(photos), len(pages))
	return nil
}

// NumPages returns the page count of directory id.
func (a *Arena) NumPages(ctx context.Context, id NodeID) (int, error) {
	if err := a.LoadPages(ctx, id); err != nil {
		return 0, err
	}
	return len(a.nodes[id].pages), nil
}

// Page returns page n of directory id. n must be in range.
func (a *Arena) Page(ctx context.Context, id NodeID, n int) ([]NodeID, error) {
	if err := a.LoadPages(ctx, id); err != nil {
		return nil, err
	}
	pages := a.nodes[id].pages
	if n < 0 || n >= len(pages) {
		panic(fmt.Sprintf("catalog: page %d out of range for %q (%d pages)", n, a.nodes[id].dir, len(pages)))
	}
	return pages[n], nil
}

// Items returns every child of directory id in page order.
func (a *Arena) Items(ctx context.Context, id NodeID) ([]NodeID, error) {
	if err := a.LoadPages(ctx, id); err != nil {
		return nil, err
	}
	var out []NodeID
	for _, p := range a.nodes[id].pages {
		out = append(out, p...)
	}
	return out, nil
}

func (a *Arena) Kind(id NodeID) Kind     { return a.nodes[id].kind }
func (a *Arena) Parent(id NodeID) NodeID { return a.nodes[id].parent }

// Name is the directory or file name; the root's name is "".
func (a *Arena) Name(id NodeID) string { return a.nodes[id].name }

// RelPath returns the slash-separated path of id below the photo root.
func (a *Arena) RelPath(id NodeID) string {
	n := &a.nodes[id]
	if n.kind == KindPhoto {
		return path.Join(n.dir, n.name)
	}
	return n.dir
}

// PhotoID returns the catalog row id of a photo node.
func (a *Arena) PhotoID(id NodeID) int64 {
	return a.nodes[id].photoID
}

func (a *Arena) Caption(id NodeID) string {
	return a.nodes[id].caption
}

// Counts returns the photo and subdirectory counts of a directory node.
func (a *Arena) Counts(id NodeID) (photos, subdirs int) {
	n := a.dirNode(id)
	return n.numPhotos, n.numSubdirs
}

// Selected returns the cached selection of id. Directory values are the
// stored aggregate; they are never recomputed on read.
func (a *Arena) Selected(id NodeID) tristate.State {
	n := &a.nodes[id]
	if n.kind == KindPhoto {
		return tristate.FromBool(n.selected)
	}
	return n.selection
}

// SetSelected writes v (All or Not) to id. A directory pushes v to its whole
// subtree; either kind then updates its ancestors.
func (a *Arena) SetSelected(ctx context.Context, id NodeID, v tristate.State) error {
	if v != tristate.All && v != tristate.Not {
		return fmt.Errorf("%w: %s", ErrPartialWrite, v)
	}
	n := &a.nodes[id]

	if n.kind == KindPhoto {
		sel := v == tristate.All
		if n.selected == sel {
			return nil
		}
		if err := a.st.SetPhotoSelected(ctx, n.photoID, sel); err != nil {
			return fmt.Errorf("catalog: select %s: %w", a.RelPath(id), err)
		}
		n.selected = sel
		debug.Log(debug.CATALOG, "photo %s -> %s", a.RelPath(id), v)
		return a.childChanged(ctx, n.parent, v)
	}

	if n.selection == v {
		return nil
	}
	if n.numPhotos == 0 && n.numSubdirs == 0 {
		// empty root: nothing to select
		return nil
	}
	if err := a.st.SetSubtreeSelection(ctx, n.dir, v == tristate.All); err != nil {
		return fmt.Errorf("catalog: select %q: %w", n.dir, err)
	}
	a.pushDown(id, v)
	debug.Log(debug.CATALOG, "directory %q -> %s", n.dir, v)
	return a.childChanged(ctx, n.parent, v)
}

// pushDown mirrors a subtree store update into every loaded descendant.
func (a *Arena) pushDown(id NodeID, v tristate.State) {
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &a.nodes[cur]
		if n.kind == KindPhoto {
			n.selected = v == tristate.All
			continue
		}
		n.selection = v
		for _, p := range n.pages {
			stack = append(stack, p...)
		}
	}
}

// childChanged recomputes the selection of directory id after one of its
// children changed to child, and walks up while values keep changing.
func (a *Arena) childChanged(ctx context.Context, id NodeID, child tristate.State) error {
	for id != NoNode {
		next := tristate.Partial
		if child != tristate.Partial {
			items, err := a.Items(ctx, id)
			if err != nil {
				return err
			}
			states := make([]tristate.State, len(items))
			for i, it := range items {
				states[i] = a.Selected(it)
			}
			var ok bool
			if next, ok = tristate.CombineAll(states...); !ok {
				next = tristate.Not
			}
		}

		n := &a.nodes[id]
		if n.selection == next {
			return nil
		}
		if err := a.st.SetAggregateSelection(ctx, n.dir, next); err != nil {
			return fmt.Errorf("catalog: update aggregate %q: %w", n.dir, err)
		}
		debug.Log(debug.CATALOG, "aggregate %q %s -> %s", n.dir, n.selection, next)
		n.selection = next
		child = next
		id = n.parent
	}
	return nil
}

// Refresh re-reads every cached selection from the store. Used after the
// session transaction was rolled back.
func (a *Arena) Refresh(ctx context.Context) error {
	for i := range a.nodes {
		n := &a.nodes[i]
		if n.kind == KindPhoto {
			p, err := a.st.Photo(ctx, n.photoID)
			if err != nil {
				return fmt.Errorf("catalog: refresh %s: %w", path.Join(n.dir, n.name), err)
			}
			n.selected = p.Selected
			continue
		}
		agg, err := a.st.Aggregate(ctx, n.dir)
		if errors.Is(err, store.ErrNotFound) && n.numPhotos == 0 && n.numSubdirs == 0 {
			continue
		}
		if err != nil {
			return fmt.Errorf("catalog: refresh %q: %w", n.dir, err)
		}
		n.selection = agg.Selection
	}
	debug.Log(debug.CATALOG, "refreshed %d nodes", len(a.nodes))
	return nil
}

// Len returns the number of nodes created so far.
func (a *Arena) Len() int {
	return len(a.nodes)
}
