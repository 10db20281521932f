package fusion

import (
	"github.com/voxelcore/voxelcore/config"
	"github.com/voxelcore/voxelcore/logging"
	"github.com/voxelcore/voxelcore/octree"
)

// propagate implements §4.4.4: a depth-descending sweep reducing each
// worklist node's eight children, with saturated-free subtree pruning,
// down to and including the root. The sweep runs sequentially — each
// depth's reduction depends on the depth below having already been
// finalised, so there is no useful intra-sweep parallelism; §5's
// ordering guarantee ("each block touched by exactly one worker per
// frame") is what the block-list pass already provides.
//
// propagateOne inserts each processed node's parent at the next
// shallower depth as it runs, so the set of depths to visit grows
// *during* the sweep (every seeded depth is itself finite and the root
// sits at depth 0, but a tree deeper than the shallowest seeded entry
// needs every intermediate depth visited too). depthsDescending's
// maximum is computed once up front — the loop only ever descends, so
// no depth greater than that maximum is ever inserted — and every depth
// down to 0 is then visited explicitly, re-reading wl.nodesAt(d) each
// time so the parents inserted by the depth above are picked up.
func propagate(tree *octree.Octree, wl *worklist, touched *TouchedSet, timestamp uint64, cfg config.Map, logger logging.Logger) {
	depths := wl.depthsDescending()
	if len(depths) == 0 {
		return
	}
	for d := depths[0]; d >= 0; d-- {
		for _, id := range wl.nodesAt(d) {
			propagateOne(tree, id, wl, touched, timestamp, cfg, logger)
		}
	}
}

func propagateOne(tree *octree.Octree, id octree.NodeID, wl *worklist, touched *TouchedSet, timestamp uint64, cfg config.Map, logger logging.Logger) {
	n := tree.Pool().Node(id)
	if n.Timestamp() == timestamp {
		return // already processed this frame, §4.4.4 idempotency guard
	}

	minData, maxData := int32(0), int32(0)
	observed := true
	any := false
	for i := 0; i < 8; i++ {
		child := n.Child(i)
		if child.Empty() {
			continue
		}
		var cMin, cMax int32
		var cObserved bool
		if child.IsBlock {
			b := tree.Pool().Block(child.Block)
			var bOk bool
			cMin, cMax, bOk = b.ReduceCurrentScale()
			if !bOk {
				continue // never integrated at any scale: contributes nothing
			}
			cObserved = b.CurrObservedCount() > 0
		} else {
			cn := tree.Pool().Node(child.Node)
			cMin, cMax, cObserved = cn.MinData, cn.MaxData, cn.Observed
		}
		if !any || cMin < minData {
			minData = cMin
		}
		if !any || cMax > maxData {
			maxData = cMax
		}
		observed = observed && cObserved
		any = true
	}
	if !any {
		return
	}

	n.MinData, n.MaxData, n.Observed = minData, maxData, observed
	n.SetTimestamp(timestamp)

	if touched != nil {
		touched.Add(n.Handle())
	}

	if n.Observed && cfg.Model != config.TSDF && float64(n.MaxData) <= 0.95*float64(cfg.FieldMin) {
		if logger != nil {
			logger.Debugf("fusion: pruning saturated-free subtree at node %v edge %d, max_data %d", n.Corner(), n.Edge(), n.MaxData)
		}
		pruneSubtree(tree, id, touched)
	}

	if n.Parent().Valid() {
		wl.insertNode(tree.Depth(n.Edge())-1, n.Parent())
	}
}

// pruneSubtree deletes n's children (§4.4.4's "delete the whole subtree
// under n, making n a leaf") and drops every removed descendant's handle
// from touched, so the caller never resolves a dangling reference.
func pruneSubtree(tree *octree.Octree, id octree.NodeID, touched *TouchedSet) {
	if touched != nil {
		handles := collectHandles(tree, id)
		defer touched.RemoveAll(handles)
	}
	tree.DeleteChildren(id)
}

func collectHandles(tree *octree.Octree, id octree.NodeID) []octree.Handle {
	var out []octree.Handle
	n := tree.Pool().Node(id)
	for i := 0; i < 8; i++ {
		child := n.Child(i)
		if child.Empty() {
			continue
		}
		if child.IsBlock {
			out = append(out, tree.Pool().Block(child.Block).Handle())
			continue
		}
		out = append(out, tree.Pool().Node(child.Node).Handle())
		out = append(out, collectHandles(tree, child.Node)...)
	}
	return out
}
