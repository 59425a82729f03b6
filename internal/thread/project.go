package thread

// Project turns a tree plus expansion state into the linear visible
// sequence. Index 0 is always the root; every other entry is the pre-order
// depth-first walk that descends into a node's children only while that
// node is expanded. A node below any collapsed ancestor is absent entirely.
//
// The function holds no state and is invoked fresh after every toggle or
// mutation; selection indices are only ever interpreted against the most
// recent result.
func Project(t *Tree, exp Expansion) []uint {
	out := make([]uint, 0, t.Size())
	out = append(out, t.RootID)
	if exp.Expanded(t.RootID) {
		out = projectChildren(t, exp, t.RootID, out)
	}
	return out
}

func projectChildren(t *Tree, exp Expansion, id uint, out []uint) []uint {
	for _, childID := range t.Nodes[id].Children {
		out = append(out, childID)
		if exp.Expanded(childID) {
			out = projectChildren(t, exp, childID, out)
		}
	}
	return out
}
