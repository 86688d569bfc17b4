// Package tristate implements the Not/Partial/All selection summary shared by
// the catalog, the aggregate store and the explorer.
package tristate

import "fmt"

// State summarizes the selection of a photo or of everything below a directory.
type State int

const (
	Not State = iota
	Partial
	All
)

func (s State) String() string {
	switch s {
	case Not:
		return "not"
	case Partial:
		return "partial"
	case All:
		return "all"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Valid reports whether s is one of the three defined states.
func (s State) Valid() bool {
	return s == Not || s == Partial || s == All
}

// FromBool maps a photo's selected flag to a state.
func FromBool(selected bool) State {
	if selected {
		return All
	}
	return Not
}

// Combine merges two child states. Agreement keeps the state, any
// disagreement or any Partial yields Partial.
func Combine(a, b State) State {
	if a == b && a != Partial {
		return a
	}
	return Partial
}

// CombineAll folds Combine over states. ok is false when states is empty,
// since an empty directory has no selection summary.
func CombineAll(states ...State) (s State, ok bool) {
	if len(states) == 0 {
		return Not, false
	}
	s = states[0]
	for _, next := range states[1:] {
		if s == Partial {
			break
		}
		s = Combine(s, next)
	}
	return s, true
}

// Parse converts the persisted integer form back to a State.
func Parse(v int) (State, error) {
	s := State(v)
	if !s.Valid() {
		return Not, fmt.Errorf("tristate: invalid value %d", v)
	}
	return s, nil
}
