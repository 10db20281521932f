// Package octree implements the sparse 8-way octree that backs the map:
// Octant, Node and Block storage (§3), the memory pool (§4.2), and the
// coordinate service (§4.1, component C). Allocation happens only through
// the volume carver (package carve); destruction happens only through
// bottom-up propagation (package fusion); Octree has no Close method.
//
// Grounded on viamrobotics-rdk/octree (NodeType-tagged nodes, recursive
// octant structure) generalised from a single-point-per-leaf pointcloud
// index to a fixed-edge voxel block leaf, and on viamrobotics-rdk's
// index-handle style storage idioms (spec §4.2 allows "index handles into
// grow-only vectors" in place of pointer-stable slabs).
package octree

import (
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
)

// NodeID indexes into a Pool's node storage. The zero value means "no
// node".
type NodeID int32

// BlockID indexes into a Pool's block storage. The zero value means
// "no block".
type BlockID int32

// Valid reports whether id refers to an actual node.
func (id NodeID) Valid() bool { return id != 0 }

// Valid reports whether id refers to an actual block.
func (id BlockID) Valid() bool { return id != 0 }

// Ref is a tagged reference to either a node or a block octant, used
// anywhere the tree mixes the two (children, iterator yields, worklists).
type Ref struct {
	IsBlock bool
	Node    NodeID
	Block   BlockID
}

// NilRef is the zero Ref, matching neither a node nor a block.
var NilRef = Ref{}

// Empty reports whether r refers to nothing.
func (r Ref) Empty() bool {
	if r.IsBlock {
		return !r.Block.Valid()
	}
	return !r.Node.Valid()
}

// BlockRef builds a Ref to a block.
func BlockRef(id BlockID) Ref { return Ref{IsBlock: true, Block: id} }

// NodeRef builds a Ref to a node.
func NodeRef(id NodeID) Ref { return Ref{IsBlock: false, Node: id} }

// Handle is a stable, opaque reference to an octant that survives across
// frames independently of the underlying storage index, per SPEC_FULL's
// "touched_octants as stable handles" supplement. Once the octant it
// names is pruned, Octree.Resolve(h) returns the empty Ref and false.
type Handle uuid.UUID

// octantCommon holds the fields every octant carries regardless of node
// or block kind, §3.2.
type octantCommon struct {
	corner    [3]int32 // minimum corner, voxel coordinates
	edge      int32    // edge length in voxels, power of two
	parent    NodeID   // absent (0) for the root
	timestamp uint64
	handle    Handle
}

// Corner returns the octant's minimum voxel corner.
func (o octantCommon) Corner() [3]int32 { return o.corner }

// Edge returns the octant's edge length in voxels.
func (o octantCommon) Edge() int32 { return o.edge }

// Scale returns log2(edge), the octant's scale.
func (o octantCommon) Scale() int { return log2i(o.edge) }

// Timestamp returns the last-update timestamp.
func (o octantCommon) Timestamp() uint64 { return o.timestamp }

// Handle returns the octant's stable handle.
func (o octantCommon) Handle() Handle { return o.handle }

// Parent returns the octant's parent node, or 0 if this is the root.
func (o octantCommon) Parent() NodeID { return o.parent }

// SetTimestamp updates the octant's last-touched frame timestamp, used by
// propagation's per-frame idempotency guard (§4.4.4).
func (o *octantCommon) SetTimestamp(ts uint64) { o.timestamp = ts }

// WorldCorner converts the voxel-space corner to world-metric coordinates
// given a resolution in metres/voxel.
func (o octantCommon) WorldCorner(resolution float64) r3.Vector {
	return r3.Vector{
		X: float64(o.corner[0]) * resolution,
		Y: float64(o.corner[1]) * resolution,
		Z: float64(o.corner[2]) * resolution,
	}
}

func log2i(v int32) int {
	n := 0
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}

// childOffset returns the voxel offset of child index i (0..7) within a
// parent of the given half-edge, per §4.1: "offset (i&1, (i>>1)&1,
// (i>>2)&1) scaled by half the parent edge."
func childOffset(i int, halfEdge int32) [3]int32 {
	return [3]int32{
		int32(i&1) * halfEdge,
		int32((i>>1)&1) * halfEdge,
		int32((i>>2)&1) * halfEdge,
	}
}
