package octree

import (
	"github.com/google/uuid"

	"github.com/voxelcore/voxelcore/voxerr"
)

// Pool owns all node and block storage for one octree (component B,
// §4.2). It gives amortised-O(1) allocation and deallocation via
// grow-only backing slices plus free lists of reusable indices — the
// "index handles into grow-only vectors" option spec §4.2 explicitly
// allows in place of a pointer-stable slab. Indices remain valid for the
// pool's lifetime even as the backing slices grow, since Go slice growth
// relocates the backing array but never the index.
//
// A zero NodeID/BlockID always means "absent"; index 0 of each backing
// slice is an unused sentinel so a freshly zeroed Ref or child slot reads
// as empty without a separate validity bit.
type Pool struct {
	nodes  []Node
	blocks []Block

	freeNodes  []NodeID
	freeBlocks []BlockID

	handles map[Handle]Ref

	// MaxNodes / MaxBlocks cap pool growth; 0 means unlimited. Exhaustion
	// surfaces as voxerr.KindAllocation.
	MaxNodes, MaxBlocks int
}

// NewPool returns an empty pool.
func NewPool(maxNodes, maxBlocks int) *Pool {
	return &Pool{
		nodes:     make([]Node, 1, 64),
		blocks:    make([]Block, 1, 64),
		handles:   make(map[Handle]Ref),
		MaxNodes:  maxNodes,
		MaxBlocks: maxBlocks,
	}
}

// AllocNode allocates a node, assigning it a fresh handle.
func (p *Pool) AllocNode(parent NodeID, corner [3]int32, edge int32, childrenAreBlocks bool, ts uint64) (NodeID, error) {
	var id NodeID
	if n := len(p.freeNodes); n > 0 {
		id = p.freeNodes[n-1]
		p.freeNodes = p.freeNodes[:n-1]
	} else {
		if p.MaxNodes > 0 && len(p.nodes) >= p.MaxNodes+1 {
			return 0, voxerr.NewAllocationError("node pool exhausted (max %d)", p.MaxNodes)
		}
		p.nodes = append(p.nodes, Node{})
		id = NodeID(len(p.nodes) - 1)
	}
	h := Handle(uuid.New())
	p.nodes[id] = Node{
		octantCommon: octantCommon{corner: corner, edge: edge, parent: parent, timestamp: ts, handle: h},
		childrenAreBlocks: childrenAreBlocks,
	}
	p.handles[h] = NodeRef(id)
	return id, nil
}

// AllocBlock allocates a block, assigning it a fresh handle. Per §3.7 it
// begins at current_scale = log2(B) (coarsest, a single voxel) with
// min_scale = -1.
func (p *Pool) AllocBlock(parent NodeID, corner [3]int32, edge int32, maxLevel int, ts uint64) (BlockID, error) {
	var id BlockID
	if n := len(p.freeBlocks); n > 0 {
		id = p.freeBlocks[n-1]
		p.freeBlocks = p.freeBlocks[:n-1]
	} else {
		if p.MaxBlocks > 0 && len(p.blocks) >= p.MaxBlocks+1 {
			return 0, voxerr.NewAllocationError("block pool exhausted (max %d)", p.MaxBlocks)
		}
		p.blocks = append(p.blocks, Block{})
		id = BlockID(len(p.blocks) - 1)
	}
	h := Handle(uuid.New())
	p.blocks[id] = Block{
		octantCommon: octantCommon{corner: corner, edge: edge, parent: parent, timestamp: ts, handle: h},
		maxLevel:     maxLevel,
		currentScale: maxLevel,
		minScale:     -1,
	}
	p.handles[h] = BlockRef(id)
	return id, nil
}

// Node returns a pointer to node id's storage. Callers must have already
// checked id.Valid().
func (p *Pool) Node(id NodeID) *Node { return &p.nodes[id] }

// Block returns a pointer to block id's storage.
func (p *Pool) Block(id BlockID) *Block { return &p.blocks[id] }

// FreeNode releases a node back to the pool and invalidates its handle.
func (p *Pool) FreeNode(id NodeID) {
	delete(p.handles, p.nodes[id].handle)
	p.nodes[id] = Node{}
	p.freeNodes = append(p.freeNodes, id)
}

// FreeBlock releases a block back to the pool and invalidates its handle.
func (p *Pool) FreeBlock(id BlockID) {
	delete(p.handles, p.blocks[id].handle)
	p.blocks[id] = Block{}
	p.freeBlocks = append(p.freeBlocks, id)
}

// Resolve looks up a handle, returning false if it was never issued or
// its octant has since been pruned.
func (p *Pool) Resolve(h Handle) (Ref, bool) {
	ref, ok := p.handles[h]
	return ref, ok
}

// NodeCount / BlockCount return the number of live (allocated,
// non-freed) nodes and blocks, for tests and diagnostics.
func (p *Pool) NodeCount() int  { return len(p.nodes) - 1 - len(p.freeNodes) }
func (p *Pool) BlockCount() int { return len(p.blocks) - 1 - len(p.freeBlocks) }
