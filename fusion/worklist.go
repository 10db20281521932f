package fusion

import (
	"sync"

	"github.com/voxelcore/voxelcore/octree"
)

// worklist is the depth-indexed set of nodes awaiting bottom-up
// propagation, §4.4.1, §4.4.4. §4.4.2's "freed_block_list appended to
// propagation sources" is satisfied by inserting each freed block's
// parent directly (freeSubtree, fusion.go) rather than keeping a
// separate freed-block vector here.
type worklist struct {
	nodesMu sync.Mutex
	nodes   map[int]map[octree.NodeID]struct{}
}

func newWorklist() *worklist {
	return &worklist{nodes: make(map[int]map[octree.NodeID]struct{})}
}

func (w *worklist) insertNode(depth int, id octree.NodeID) {
	if !id.Valid() {
		return
	}
	w.nodesMu.Lock()
	defer w.nodesMu.Unlock()
	set, ok := w.nodes[depth]
	if !ok {
		set = make(map[octree.NodeID]struct{})
		w.nodes[depth] = set
	}
	set[id] = struct{}{}
}

// depthsDescending returns every depth with pending nodes, sorted from
// deepest to shallowest, for the propagation sweep.
func (w *worklist) depthsDescending() []int {
	w.nodesMu.Lock()
	defer w.nodesMu.Unlock()
	depths := make([]int, 0, len(w.nodes))
	for d := range w.nodes {
		depths = append(depths, d)
	}
	for i := 1; i < len(depths); i++ {
		for j := i; j > 0 && depths[j-1] < depths[j]; j-- {
			depths[j-1], depths[j] = depths[j], depths[j-1]
		}
	}
	return depths
}

func (w *worklist) nodesAt(depth int) []octree.NodeID {
	w.nodesMu.Lock()
	defer w.nodesMu.Unlock()
	set := w.nodes[depth]
	out := make([]octree.NodeID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
