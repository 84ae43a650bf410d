package filetree

import "sort"

// ExpansionState is the set of folder identities the operator has opened.
// It is independent of visibility: searches read it but never change it.
type ExpansionState struct {
	open map[string]struct{}
}

// NewExpansionState returns a state with the given identities expanded.
// Everything else starts collapsed.
func NewExpansionState(ids ...string) *ExpansionState {
	e := &ExpansionState{open: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		e.open[id] = struct{}{}
	}
	return e
}

// Toggle flips membership of id and returns the new expanded flag. Only id is
// affected; enclosing folders keep their state.
func (e *ExpansionState) Toggle(id string) bool {
	if _, ok := e.open[id]; ok {
		delete(e.open, id)
		return false
	}
	e.open[id] = struct{}{}
	return true
}

// Set forces the flag for id.
func (e *ExpansionState) Set(id string, expanded bool) {
	if expanded {
		e.open[id] = struct{}{}
	} else {
		delete(e.open, id)
	}
}

// IsExpanded reports whether id is expanded.
func (e *ExpansionState) IsExpanded(id string) bool {
	if e == nil {
		return false
	}
	_, ok := e.open[id]
	return ok
}

// Prune drops identities that are not folders in f and returns how many were
// dropped.
func (e *ExpansionState) Prune(f *Forest) int {
	dropped := 0
	for id := range e.open {
		if n, ok := f.Lookup(id); !ok || !n.IsFolder() {
			delete(e.open, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of expanded folders.
func (e *ExpansionState) Len() int {
	if e == nil {
		return 0
	}
	return len(e.open)
}

// IDs returns the expanded identities in ascending order.
func (e *ExpansionState) IDs() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.open))
	for id := range e.open {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (e *ExpansionState) Clone() *ExpansionState {
	return NewExpansionState(e.IDs()...)
}

// Equal reports whether both states expand the same folders.
func (e *ExpansionState) Equal(o *ExpansionState) bool {
	if e.Len() != o.Len() {
		return false
	}
	for id := range e.open {
		if !o.IsExpanded(id) {
			return false
		}
	}
	return true
}
