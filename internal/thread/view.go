package thread

import (
	"murmur/internal/models"
)

// View owns one open thread's derived state: the assembled tree, the
// expansion side table and the selection index into the latest projection.
// It is not safe for concurrent use; the client session drives it from a
// single goroutine.
type View struct {
	tree    *Tree
	exp     Expansion
	visible []uint
	// selected indexes into visible; nil means no selection. The index is
	// re-interpreted against the newest projection after every change.
	selected *int
}

// Open builds a view for a freshly fetched thread. The root starts expanded
// and selected.
func Open(root *models.Post, replies []*models.Post) *View {
	v := &View{
		tree: Assemble(root, replies),
		exp:  NewExpansion(root.ID),
	}
	v.visible = Project(v.tree, v.exp)
	zero := 0
	v.selected = &zero
	return v
}

// Tree returns the current tree.
func (v *View) Tree() *Tree {
	return v.tree
}

// Visible returns the latest visible sequence.
func (v *View) Visible() []uint {
	return v.visible
}

// Expanded reports whether a node's children are currently shown.
func (v *View) Expanded(id uint) bool {
	return v.exp.Expanded(id)
}

// SelectedIndex returns the selection index, or false when nothing is selected.
func (v *View) SelectedIndex() (int, bool) {
	if v.selected == nil {
		return 0, false
	}
	return *v.selected, true
}

// SelectedID returns the id at the selection, or false when nothing is selected.
func (v *View) SelectedID() (uint, bool) {
	if v.selected == nil {
		return 0, false
	}
	return v.visible[*v.selected], true
}

// MoveDown moves the selection one row down, clamped to the end. No
// wraparound: a collapsed node's hidden children are simply absent from the
// sequence, so movement passes over them.
func (v *View) MoveDown() {
	v.moveTo(v.nextIndex(1))
}

// MoveUp moves the selection one row up, clamped to the start.
func (v *View) MoveUp() {
	v.moveTo(v.nextIndex(-1))
}

func (v *View) nextIndex(delta int) int {
	if v.selected == nil {
		return 0
	}
	return *v.selected + delta
}

func (v *View) moveTo(idx int) {
	if len(v.visible) == 0 {
		v.selected = nil
		return
	}
	idx = clamp(idx, 0, len(v.visible)-1)
	v.selected = &idx
}

// ToggleSelected flips the expansion flag of the selected node and
// re-projects. The numeric index is left unchanged on purpose: it may now
// point at a different id when the rows above it changed visibility, which
// is accepted display behavior, not corrected.
func (v *View) ToggleSelected() {
	id, ok := v.SelectedID()
	if !ok {
		return
	}
	v.exp.Toggle(id)
	v.visible = Project(v.tree, v.exp)
	if v.selected != nil {
		v.moveTo(*v.selected)
	}
}

// Reload replaces the tree with a freshly fetched one. Expansion flags are
// merged forward by id so the user's choices survive the rebuild; the
// previous numeric selection is clamped into the new valid range.
func (v *View) Reload(root *models.Post, replies []*models.Post) {
	v.tree = Assemble(root, replies)
	v.exp = v.exp.MergeForward(v.tree)
	// The root may be a different post after teardown/reopen; keep it seeded.
	if _, ok := v.exp[v.tree.RootID]; !ok {
		v.exp[v.tree.RootID] = true
	}
	v.visible = Project(v.tree, v.exp)
	if v.selected != nil {
		v.moveTo(*v.selected)
	}
}

// RevealReply makes a newly created reply visible and selected: every
// ancestor up to the root is expanded first, then the sequence is
// recomputed and the selection jumps to the new node.
func (v *View) RevealReply(id uint) {
	if !v.tree.Contains(id) {
		return
	}
	v.exp.ExpandPath(v.tree, id)
	v.visible = Project(v.tree, v.exp)
	for i, visibleID := range v.visible {
		if visibleID == id {
			idx := i
			v.selected = &idx
			return
		}
	}
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
