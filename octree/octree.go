package octree

import (
	"github.com/golang/geo/r3"

	"github.com/voxelcore/voxelcore/config"
	"github.com/voxelcore/voxelcore/voxerr"
)

// Octree owns the side length N, the memory pool, the root pointer and
// the incrementally maintained AABB of allocated leaf octants (§3.6).
type Octree struct {
	cfg  config.Map
	pool *Pool
	root NodeID

	n        int32 // side length in voxels
	aabbMin  [3]int32
	aabbMax  [3]int32
	aabbSet  bool

	timestamp uint64
}

// New builds an octree sized per cfg, allocating the root node (§3.1,
// §3.6). cfg must already have passed Validate.
func New(cfg config.Map, maxNodes, maxBlocks int) (*Octree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := int32(cfg.SideVoxels())
	pool := NewPool(maxNodes, maxBlocks)
	childrenAreBlocks := n/2 == int32(cfg.BlockEdge)
	rootID, err := pool.AllocNode(0, [3]int32{0, 0, 0}, n, childrenAreBlocks, 0)
	if err != nil {
		return nil, err
	}
	return &Octree{cfg: cfg, pool: pool, root: rootID, n: n}, nil
}

// Config returns the octree's map configuration.
func (t *Octree) Config() config.Map { return t.cfg }

// Pool exposes the backing pool to collaborating packages (carve,
// fusion, visitor, iterator, mesh) within this module.
func (t *Octree) Pool() *Pool { return t.pool }

// Root returns the root node, §4.1.
func (t *Octree) Root() NodeID { return t.root }

// N returns the octree's side length in voxels.
func (t *Octree) N() int32 { return t.n }

// Timestamp returns the octree's current frame timestamp.
func (t *Octree) Timestamp() uint64 { return t.timestamp }

// Tick advances the frame timestamp and returns the new value; called
// once per frame by the controller before carve+integrate, so
// propagation's timestamp guard (§4.4.4) is per-frame.
func (t *Octree) Tick() uint64 {
	t.timestamp++
	return t.timestamp
}

// Contains reports whether a voxel coordinate lies within [0, N)^3,
// §4.1.
func (t *Octree) Contains(v [3]int32) bool {
	return v[0] >= 0 && v[0] < t.n && v[1] >= 0 && v[1] < t.n && v[2] >= 0 && v[2] < t.n
}

// AllocateChild allocates child index i (0..7) of parent, returning the
// new octant and true, or the existing one and false if already present.
// If the child's edge equals the configured block edge, a Block is
// allocated; otherwise a Node, §4.1.
func (t *Octree) AllocateChild(parent NodeID, i int) (Ref, bool, error) {
	if !parent.Valid() {
		return NilRef, false, voxerr.NewBoundaryError("allocate_child: invalid parent")
	}
	pn := t.pool.Node(parent)
	if pn.childMask&(1<<uint(i)) != 0 {
		return pn.Child(i), false, nil
	}

	halfEdge := pn.edge / 2
	offset := childOffset(i, halfEdge)
	corner := [3]int32{pn.corner[0] + offset[0], pn.corner[1] + offset[1], pn.corner[2] + offset[2]}

	var ref Ref
	if pn.childrenAreBlocks {
		id, err := t.pool.AllocBlock(parent, corner, halfEdge, log2i(halfEdge), t.timestamp)
		if err != nil {
			return NilRef, false, err
		}
		ref = BlockRef(id)
		pn.children[i] = int32(id)
	} else {
		grandchildrenAreBlocks := halfEdge/2 == int32(t.cfg.BlockEdge)
		id, err := t.pool.AllocNode(parent, corner, halfEdge, grandchildrenAreBlocks, t.timestamp)
		if err != nil {
			return NilRef, false, err
		}
		ref = NodeRef(id)
		// AllocNode may have grown p.nodes past capacity and reallocated its
		// backing array, so pn (fetched before the call) can be dangling:
		// re-fetch before writing back, or the new child is orphaned and
		// childMask never records it (§4.2's back-reference invariant).
		pn = t.pool.Node(parent)
		pn.children[i] = int32(id)
	}
	pn.childMask |= 1 << uint(i)
	t.extendAABB(corner, halfEdge)
	return ref, true, nil
}

// AllocateAllChildren allocates every missing child of parent, in Morton
// order 0..7 (§4.3's carver tie-break relies on this order being
// deterministic).
func (t *Octree) AllocateAllChildren(parent NodeID) ([8]Ref, error) {
	var refs [8]Ref
	for i := 0; i < 8; i++ {
		ref, _, err := t.AllocateChild(parent, i)
		if err != nil {
			return refs, err
		}
		refs[i] = ref
	}
	return refs, nil
}

// DeleteChildren frees every child of parent (and their subtrees,
// recursively) and clears parent's child mask, making it a leaf. Used by
// prune_subtree, §4.4.4.
func (t *Octree) DeleteChildren(parent NodeID) {
	pn := t.pool.Node(parent)
	for i := 0; i < 8; i++ {
		if pn.childMask&(1<<uint(i)) == 0 {
			continue
		}
		if pn.childrenAreBlocks {
			t.pool.FreeBlock(BlockID(pn.children[i]))
		} else {
			t.deleteSubtree(NodeID(pn.children[i]))
		}
		pn.children[i] = 0
	}
	pn.childMask = 0
}

func (t *Octree) deleteSubtree(id NodeID) {
	n := t.pool.Node(id)
	for i := 0; i < 8; i++ {
		if n.childMask&(1<<uint(i)) == 0 {
			continue
		}
		if n.childrenAreBlocks {
			t.pool.FreeBlock(BlockID(n.children[i]))
		} else {
			t.deleteSubtree(NodeID(n.children[i]))
		}
	}
	t.pool.FreeNode(id)
}

// AABB returns the axis-aligned bounding box (in voxel coordinates) of
// every allocated leaf octant, or ok=false if nothing has been allocated
// yet (§3.6, §8 property 4).
func (t *Octree) AABB() (min, max [3]int32, ok bool) {
	return t.aabbMin, t.aabbMax, t.aabbSet
}

// AABBExtend grows the incremental AABB to include a newly allocated leaf
// octant of the given corner and edge. Allocators call this explicitly,
// §3.6.
func (t *Octree) AABBExtend(corner [3]int32, edge int32) {
	t.extendAABB(corner, edge)
}

func (t *Octree) extendAABB(corner [3]int32, edge int32) {
	max := [3]int32{corner[0] + edge, corner[1] + edge, corner[2] + edge}
	if !t.aabbSet {
		t.aabbMin, t.aabbMax, t.aabbSet = corner, max, true
		return
	}
	for k := 0; k < 3; k++ {
		if corner[k] < t.aabbMin[k] {
			t.aabbMin[k] = corner[k]
		}
		if max[k] > t.aabbMax[k] {
			t.aabbMax[k] = max[k]
		}
	}
}

// Depth returns an octant's depth below the root, given its edge length:
// 0 at the root, increasing by one per halving. Used by propagation's
// depth-indexed worklist (§4.4.4).
func (t *Octree) Depth(edge int32) int {
	return log2i(t.n) - log2i(edge)
}

// Resolve looks up a stable Handle, returning false if it names an
// octant that has since been pruned.
func (t *Octree) Resolve(h Handle) (Ref, bool) {
	return t.pool.Resolve(h)
}

// WorldToVoxel converts a world-metric point to a voxel-space float
// coordinate, component C.
func (t *Octree) WorldToVoxel(p r3.Vector) r3.Vector {
	return r3.Vector{X: p.X / t.cfg.Resolution, Y: p.Y / t.cfg.Resolution, Z: p.Z / t.cfg.Resolution}
}

// VoxelToWorld converts a voxel-space float coordinate to a world-metric
// point, component C.
func (t *Octree) VoxelToWorld(v r3.Vector) r3.Vector {
	return r3.Vector{X: v.X * t.cfg.Resolution, Y: v.Y * t.cfg.Resolution, Z: v.Z * t.cfg.Resolution}
}

// Locate descends from the root to the deepest allocated octant
// containing voxel v: a Block if fully resolved, or the deepest Node
// whose relevant child slot is empty otherwise. Returns !ok if v is
// outside [0, N)^3.
func (t *Octree) Locate(v [3]int32) (Ref, bool) {
	if !t.Contains(v) {
		return NilRef, false
	}
	cur := t.root
	for {
		n := t.pool.Node(cur)
		half := n.edge / 2
		i := childIndexFor(n.corner, half, v)
		child := n.Child(i)
		if child.Empty() {
			return NodeRef(cur), true
		}
		if child.IsBlock {
			return child, true
		}
		cur = child.Node
	}
}

// childIndexFor returns which of a node's eight children (corner at
// half-edge granularity) contains v, inverting childOffset.
func childIndexFor(corner [3]int32, half int32, v [3]int32) int {
	i := 0
	if v[0] >= corner[0]+half {
		i |= 1
	}
	if v[1] >= corner[1]+half {
		i |= 2
	}
	if v[2] >= corner[2]+half {
		i |= 4
	}
	return i
}

// WorldAABB returns the world-metric bounding box implied by N and
// resolution — the octree's total representable extent (distinct from
// AABB, which covers only allocated leaves).
func (t *Octree) WorldAABB() (min, max r3.Vector) {
	max = r3.Vector{X: float64(t.n) * t.cfg.Resolution, Y: float64(t.n) * t.cfg.Resolution, Z: float64(t.n) * t.cfg.Resolution}
	return r3.Vector{}, max
}
