// Package iterator implements depth-first traversal over an octree with
// pluggable visit/skip-subtree predicates (component H, §4.7), plus the
// pre-built iterators every bulk query and the mesh driver need.
package iterator

import (
	"github.com/golang/geo/r3"

	"github.com/voxelcore/voxelcore/octree"
	"github.com/voxelcore/voxelcore/sensor"
	"github.com/voxelcore/voxelcore/spatial"
)

// sqrt3 is the diagonal length of a unit cube; half of it times a block's
// edge bounds the block's extent by a sphere.
const sqrt3 = 1.7320508075688772

// Predicate decides something about an octant during traversal.
type Predicate func(t *octree.Octree, ref octree.Ref) bool

// Iterator is a DFS traversal with an explicit stack (no recursion, so
// traversal depth is bounded only by available memory, not the Go call
// stack), §4.7.
type Iterator struct {
	tree        *octree.Octree
	stack       []octree.Ref
	visit       Predicate
	skipSubtree Predicate
}

// New builds an iterator rooted at the tree's root. Either predicate may
// be nil: nil visit yields every octant the traversal reaches; nil
// skipSubtree prunes nothing.
func New(t *octree.Octree, visit, skipSubtree Predicate) *Iterator {
	return &Iterator{
		tree:  t,
		stack: []octree.Ref{octree.NodeRef(t.Root())},
		visit: visit, skipSubtree: skipSubtree,
	}
}

// Next advances the traversal, returning the next yielded octant and
// true, or the zero Ref and false once exhausted.
func (it *Iterator) Next() (octree.Ref, bool) {
	for len(it.stack) > 0 {
		ref := it.stack[len(it.stack)-1]
		it.stack = it.stack[:len(it.stack)-1]

		if it.skipSubtree != nil && it.skipSubtree(it.tree, ref) {
			continue
		}

		if !ref.IsBlock {
			n := it.tree.Pool().Node(ref.Node)
			// Push in reverse Morton order so children pop 0..7, matching
			// the carver's deterministic tie-break, §4.3.
			for i := 7; i >= 0; i-- {
				c := n.Child(i)
				if !c.Empty() {
					it.stack = append(it.stack, c)
				}
			}
		}

		if it.visit == nil || it.visit(it.tree, ref) {
			return ref, true
		}
	}
	return octree.NilRef, false
}

// Each drains the iterator, calling fn for every yielded octant until fn
// returns false or the iterator is exhausted.
func Each(it *Iterator, fn func(octree.Ref) bool) {
	for {
		ref, ok := it.Next()
		if !ok {
			return
		}
		if !fn(ref) {
			return
		}
	}
}

// All yields every octant.
func All(t *octree.Octree) *Iterator { return New(t, nil, nil) }

// NodesOnly yields only node octants (internal or leaf nodes, never
// blocks).
func NodesOnly(t *octree.Octree) *Iterator {
	return New(t, func(_ *octree.Octree, r octree.Ref) bool { return !r.IsBlock }, nil)
}

// BlocksOnly yields only block (leaf) octants.
func BlocksOnly(t *octree.Octree) *Iterator {
	return New(t, func(_ *octree.Octree, r octree.Ref) bool { return r.IsBlock }, nil)
}

// LeavesOnly yields every leaf octant: blocks, plus leaf nodes (childMask
// == 0).
func LeavesOnly(t *octree.Octree) *Iterator {
	return New(t, func(tr *octree.Octree, r octree.Ref) bool {
		if r.IsBlock {
			return true
		}
		return tr.Pool().Node(r.Node).IsLeaf()
	}, nil)
}

// BlocksSince yields blocks whose timestamp is at or after ts.
func BlocksSince(t *octree.Octree, ts uint64) *Iterator {
	return New(t, func(tr *octree.Octree, r octree.Ref) bool {
		if !r.IsBlock {
			return false
		}
		return tr.Pool().Block(r.Block).Timestamp() >= ts
	}, nil)
}

// BlocksInFrustum yields blocks whose bounding sphere intersects the
// given sensor's frustum, §4.7, grounded directly on
// sensor.Model.SphereInFrustum (already required for the carver) rather
// than inventing a second frustum test. tWS is the sensor's world pose;
// block centres are transformed into sensor space via its inverse.
func BlocksInFrustum(t *octree.Octree, model sensor.Model, tWS spatial.Isometry) *Iterator {
	res := t.Config().Resolution
	sWT := tWS.Inverse()
	return New(t, func(tr *octree.Octree, ref octree.Ref) bool {
		if !ref.IsBlock {
			return false
		}
		blk := tr.Pool().Block(ref.Block)
		corner := blk.Corner()
		edge := blk.Edge()
		centreWorld := r3.Vector{
			X: (float64(corner[0]) + float64(edge)/2) * res,
			Y: (float64(corner[1]) + float64(edge)/2) * res,
			Z: (float64(corner[2]) + float64(edge)/2) * res,
		}
		centreSensor := sWT.Transform(centreWorld)
		radius := float64(edge) * res * 0.5 * sqrt3
		return model.SphereInFrustum(centreSensor, radius)
	}, nil)
}
