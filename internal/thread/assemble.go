// Package thread implements the client-side threading core: reconstruction
// of a reply tree from an unordered flat list, projection of the tree
// through expand/collapse state into a linear visible sequence, and the
// selection bookkeeping that keeps keyboard navigation consistent across
// mutations.
package thread

import (
	"sort"

	"murmur/internal/models"
)

// Node is a post plus its derived position in the tree: distance from the
// root and the ordered ids of its direct children. Nodes never hold pointers
// to each other; relationships go through the tree's id-keyed arena, so a
// tree can be discarded and rebuilt wholesale without cycles.
type Node struct {
	Post     *models.Post
	Depth    int
	Parent   *uint
	Children []uint
}

// Tree is the assembled reply tree. It is rebuilt from scratch on every
// fetch; nothing ever mutates an existing tree in place.
type Tree struct {
	RootID uint
	Nodes  map[uint]*Node
}

// Assemble builds a tree from a root post and its unordered descendant set.
// Each descendant's ParentPostID is the only structural input; list order is
// irrelevant. Children are ordered by creation time ascending (id as a
// stable tiebreak). Descendants whose parent is absent from the set are
// dropped rather than misattached.
func Assemble(root *models.Post, descendants []*models.Post) *Tree {
	byParent := make(map[uint][]*models.Post, len(descendants))
	for _, p := range descendants {
		if p.ParentPostID == nil {
			continue
		}
		byParent[*p.ParentPostID] = append(byParent[*p.ParentPostID], p)
	}
	for _, siblings := range byParent {
		sort.Slice(siblings, func(i, j int) bool {
			if siblings[i].CreatedAt.Equal(siblings[j].CreatedAt) {
				return siblings[i].ID < siblings[j].ID
			}
			return siblings[i].CreatedAt.Before(siblings[j].CreatedAt)
		})
	}

	t := &Tree{
		RootID: root.ID,
		Nodes:  make(map[uint]*Node, len(descendants)+1),
	}
	t.Nodes[root.ID] = &Node{Post: root}
	t.attach(root.ID, 0, byParent)
	return t
}

// attach hooks up the children of id at the given depth, then recurses. The
// append-only creation order guarantees the parent relation is acyclic, so
// no visited set is needed.
func (t *Tree) attach(id uint, depth int, byParent map[uint][]*models.Post) {
	parent := t.Nodes[id]
	for _, child := range byParent[id] {
		pid := id
		t.Nodes[child.ID] = &Node{
			Post:   child,
			Depth:  depth + 1,
			Parent: &pid,
		}
		parent.Children = append(parent.Children, child.ID)
		t.attach(child.ID, depth+1, byParent)
	}
}

// Node returns the node for id, or nil when id is not in the tree.
func (t *Tree) Node(id uint) *Node {
	return t.Nodes[id]
}

// Contains reports whether id is part of the tree.
func (t *Tree) Contains(id uint) bool {
	_, ok := t.Nodes[id]
	return ok
}

// Ancestors returns the ids on the path from id's parent up to and including
// the root. Returns nil when id is the root or unknown.
func (t *Tree) Ancestors(id uint) []uint {
	var out []uint
	node := t.Nodes[id]
	for node != nil && node.Parent != nil {
		out = append(out, *node.Parent)
		node = t.Nodes[*node.Parent]
	}
	return out
}

// Size returns the number of nodes including the root.
func (t *Tree) Size() int {
	return len(t.Nodes)
}
