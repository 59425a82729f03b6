package thread

// Expansion is the expand/collapse side table: post id to "children currently
// shown". Keeping the flags outside the tree nodes lets the tree be thrown
// away and rebuilt after every mutation while the user's choices survive by
// key-based merge. It lives only as long as the thread view is open.
type Expansion map[uint]bool

// NewExpansion returns a fresh state with the root pre-seeded as expanded.
func NewExpansion(rootID uint) Expansion {
	return Expansion{rootID: true}
}

// Expanded reports whether id's children are currently shown. Unknown ids
// default to collapsed.
func (e Expansion) Expanded(id uint) bool {
	return e[id]
}

// Toggle flips the flag for id.
func (e Expansion) Toggle(id uint) {
	e[id] = !e[id]
}

// ExpandPath marks every ancestor of id, up to and including the root, as
// expanded, so that id is guaranteed visible on the next projection.
func (e Expansion) ExpandPath(t *Tree, id uint) {
	for _, ancestor := range t.Ancestors(id) {
		e[ancestor] = true
	}
}

// MergeForward carries the flags over to a rebuilt tree: ids still present
// keep their state, ids that no longer exist are dropped, and ids new to the
// tree stay absent (collapsed by default).
func (e Expansion) MergeForward(t *Tree) Expansion {
	merged := make(Expansion, len(e))
	for id, expanded := range e {
		if t.Contains(id) {
			merged[id] = expanded
		}
	}
	return merged
}
