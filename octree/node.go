package octree

// Node is an internal octant, or a leaf node representing a uniform
// region compressed above the block level (§3.3). ChildrenAreBlocks is
// true when this node's children, if allocated, are blocks rather than
// further nodes — true exactly when edge/2 == blockEdge.
type Node struct {
	octantCommon

	childMask         uint8
	childrenAreBlocks bool
	children          [8]int32 // NodeID or BlockID depending on childrenAreBlocks; 0 = absent

	// MinData / MaxData / Observed summarise the subtree for occupancy
	// maps (§3.3, §3.5). For TSDF maps these fields are left at their
	// zero value and never consulted: TSDF nodes carry no data, and
	// free-space node collapsing for TSDF is represented purely by the
	// node's existence as a childless leaf (see DESIGN.md, Open Question
	// decision 2, "TSDF nodes carry no data").
	MinData  int32
	MaxData  int32
	Observed bool
}

// IsLeaf reports whether every child slot is empty, §4.1 invariant.
func (n *Node) IsLeaf() bool { return n.childMask == 0 }

// ChildMask returns the 8-bit child-present mask.
func (n *Node) ChildMask() uint8 { return n.childMask }

// ChildrenAreBlocks reports whether this node's children (if any) are
// blocks rather than nodes.
func (n *Node) ChildrenAreBlocks() bool { return n.childrenAreBlocks }

// Child returns child index i (0..7) as a Ref, or the empty Ref if
// absent.
func (n *Node) Child(i int) Ref {
	if n.childMask&(1<<uint(i)) == 0 {
		return NilRef
	}
	if n.childrenAreBlocks {
		return BlockRef(BlockID(n.children[i]))
	}
	return NodeRef(NodeID(n.children[i]))
}

