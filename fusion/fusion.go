// Package fusion implements the occupancy/TSDF updater (component F,
// §4.4): the node-list pass over free-space subtrees, the parallel
// block-list pass, and bottom-up propagation with pruning.
//
// Grounded on viamrobotics-rdk's parallel fan-out idioms
// (utils.PanicCapturingGo / WaitGroup-style worker pools generalised here
// to golang.org/x/sync/errgroup, already wired in internal/parallel) and
// on the octree package's Morton-order child layout for the 2x2x2
// ancestor reduction.
package fusion

import (
	"context"

	"github.com/pkg/errors"

	"github.com/voxelcore/voxelcore/carve"
	"github.com/voxelcore/voxelcore/config"
	"github.com/voxelcore/voxelcore/internal/parallel"
	"github.com/voxelcore/voxelcore/logging"
	"github.com/voxelcore/voxelcore/octree"
	"github.com/voxelcore/voxelcore/sensor"
	"github.com/voxelcore/voxelcore/spatial"
	"github.com/voxelcore/voxelcore/voxerr"
)

// Integrate runs the full updater pass for one frame: the node-list pass,
// the parallel block-list pass, and bottom-up propagation, §4.4. It MUST
// NOT be called concurrently with itself or the carver on the same
// octree. touched may be nil if the caller does not need stable-handle
// tracking. logger may be nil, in which case failed-switch and pruned-
// subtree diagnostics are simply not emitted.
func Integrate(ctx context.Context, tree *octree.Octree, result *carve.Result, frame sensor.Frame, model sensor.Model, touched *TouchedSet, logger logging.Logger) error {
	cfg := tree.Config()
	sWT := frame.TWS.Inverse()
	wl := newWorklist()

	if err := nodeListPass(tree, result.NodeList, wl, frame, model, sWT, cfg, logger); err != nil {
		return errors.Wrap(err, "fusion: node-list pass")
	}

	if err := blockListPass(ctx, tree, result, wl, frame, model, sWT, cfg, logger); err != nil {
		return errors.Wrap(err, "fusion: block-list pass")
	}

	propagate(tree, wl, touched, tree.Timestamp(), cfg, logger)
	return nil
}

// ResetBuffer discards a block's in-progress scale-switch buffer, §4.5's
// explicit lifecycle operation. A caller that changes sensor configuration
// mid-session (e.g. swaps resolution) calls this instead of waiting for
// the next integration to either succeed the switch or retry it: the
// block falls back to integrating only at its current scale until a new
// buffer is started by a future updateBlock call.
func ResetBuffer(tree *octree.Octree, id octree.BlockID) error {
	if !id.Valid() {
		return voxerr.NewBoundaryError("fusion: invalid block id")
	}
	tree.Pool().Block(id).ResetBuffer()
	return nil
}

// nodeListPass implements §4.4.1. It runs sequentially: node_list is
// typically small (whole free-space subtrees collapse to few entries)
// and every write touches the shared worklist, so there
// is no profitable parallelism here — the concurrency budget goes to the
// block-list pass instead.
func nodeListPass(tree *octree.Octree, nodeList []octree.NodeID, wl *worklist, frame sensor.Frame, model sensor.Model, sWT spatial.Isometry, cfg config.Map, logger logging.Logger) error {
	for _, id := range nodeList {
		if err := freeSubtree(tree, id, wl, frame, model, sWT, cfg, logger); err != nil {
			return err
		}
	}
	return nil
}

// freeSubtree processes one node_list entry, recursing through internal
// nodes and running FREE-BLOCK on every block descendant.
func freeSubtree(tree *octree.Octree, id octree.NodeID, wl *worklist, frame sensor.Frame, model sensor.Model, sWT spatial.Isometry, cfg config.Map, logger logging.Logger) error {
	n := tree.Pool().Node(id)
	if n.IsLeaf() {
		updated := clampInt32(addLogOdds(n.MinData, cfg.LogOddMin), cfg.FieldMin, cfg.FieldMax)
		n.MinData, n.MaxData = updated, updated
		n.Observed = true
		wl.insertNode(tree.Depth(n.Edge())-1, n.Parent())
		return nil
	}
	for i := 0; i < 8; i++ {
		child := n.Child(i)
		if child.Empty() {
			continue
		}
		if child.IsBlock {
			if err := updateBlock(tree, child.Block, carve.Constant, false, frame, model, sWT, cfg, logger); err != nil {
				return err
			}
			blk := tree.Pool().Block(child.Block)
			wl.insertNode(tree.Depth(blk.Edge())-1, blk.Parent())
			continue
		}
		if err := freeSubtree(tree, child.Node, wl, frame, model, sWT, cfg, logger); err != nil {
			return err
		}
	}
	return nil
}

// blockListPass implements §4.4.2: UPDATE-BLOCK runs once per entry,
// fork-joined across a worker pool since each worker writes exclusively
// to its own block (§5, "no synchronisation is required for voxel
// data"). Parent insertion into the worklist is the one shared write and
// goes through worklist's own locking.
func blockListPass(ctx context.Context, tree *octree.Octree, result *carve.Result, wl *worklist, frame sensor.Frame, model sensor.Model, sWT spatial.Isometry, cfg config.Map, logger logging.Logger) error {
	return parallel.ForEachIndex(ctx, len(result.BlockList), func(_ context.Context, i int) error {
		blockID := result.BlockList[i]
		vs := result.VarianceStateList[i]
		inside := result.ProjectsInsideList[i]
		if err := updateBlock(tree, blockID, vs, inside, frame, model, sWT, cfg, logger); err != nil {
			return err
		}
		blk := tree.Pool().Block(blockID)
		wl.insertNode(tree.Depth(blk.Edge())-1, blk.Parent())
		return nil
	})
}
