package scanner

import (
	"maps"
	"slices"
	"strings"

	"github.com/justyntemme/photoframe/internal/store"
	"github.com/justyntemme/photoframe/internal/tristate"
)

type dirTree struct {
	name    string
	path    string
	subdirs map[string]*dirTree
	photos  []bool // selected flags of the photos directly inside
}

func newDirTree(name, path string) *dirTree {
	return &dirTree{name: name, path: path, subdirs: make(map[string]*dirTree)}
}

// BuildAggregates computes one aggregate per non-empty directory of the
// catalog. Counts are of direct children; selection combines the direct
// photos and the non-empty subdirectories. A catalog without photos yields
// no rows at all.
func BuildAggregates(photos []store.PhotoRecord) []store.DirectoryAggregate {
	root := newDirTree("", "")
	for _, p := range photos {
		t := root
		if p.DirectoryPath != "" {
			for _, part := range strings.Split(p.DirectoryPath, "/") {
				child, ok := t.subdirs[part]
				if !ok {
					childPath := part
					if t.path != "" {
						childPath = t.path + "/" + part
					}
					child = newDirTree(part, childPath)
					t.subdirs[part] = child
				}
				t = child
			}
		}
		t.photos = append(t.photos, p.Selected)
	}

	var out []store.DirectoryAggregate
	collect(root, "", &out)
	return out
}

// collect appends the aggregates of t's subtree in post-order and returns
// t's selection. ok is false when t holds no photos anywhere below it.
func collect(t *dirTree, parent string, out *[]store.DirectoryAggregate) (state tristate.State, ok bool) {
	var states []tristate.State
	numSubdirs := 0
	for _, name := range slices.Sorted(maps.Keys(t.subdirs)) {
		if s, ok := collect(t.subdirs[name], t.path, out); ok {
			states = append(states, s)
			numSubdirs++
		}
	}
	for _, sel := range t.photos {
		states = append(states, tristate.FromBool(sel))
	}

	state, ok = tristate.CombineAll(states...)
	if !ok {
		return tristate.Not, false
	}
	*out = append(*out, store.DirectoryAggregate{
		Path:              t.path,
		ParentPath:        parent,
		Name:              t.name,
		NumPhotos:         len(t.photos),
		NumSubdirectories: numSubdirs,
		Selection:         state,
	})
	return state, true
}

func sortedKeys(m map[photoKey]struct{}) []photoKey {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, func(a, b photoKey) int {
		if c := strings.Compare(a.dir, b.dir); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
	return keys
}
