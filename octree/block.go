package octree

import "github.com/voxelcore/voxelcore/voxel"

// Block is a leaf octant of edge B voxels holding mip-mapped per-voxel
// data (§3.4, §3.5). maxLevel is log2(B), the coarsest scale (a single
// voxel); level 0 is the finest (B^3 voxels).
type Block struct {
	octantCommon

	maxLevel int

	// data[s] holds (B/2^s)^3 field records at scale s, for s in
	// [minScale, maxLevel]. Scales finer than minScale are nil.
	data [][]voxel.Field

	// minStack / maxStack hold the mip-map min/max aggregates for scales
	// strictly coarser than minScale (§3.5's aliasing rule: at minScale
	// itself, min/max come from data directly via MinMaxAt rather than
	// separate storage — spec §9 calls the real aliasing "a storage
	// optimization, not a semantic requirement"). Only meaningful for
	// Occupancy blocks.
	minStack [][]int32
	maxStack [][]int32

	// pastData mirrors data's shape and is updated only by SnapshotPast
	// and read back by PastCellAt (§3.5's TSDF "past data" array,
	// generalised to either model). No code in this module, the mesh
	// driver included, calls SnapshotPast.
	pastData [][]voxel.Field

	colour [][]voxel.Colour // parallel to data, only allocated if configured
	id     [][]voxel.Id     // parallel to data, only allocated if configured

	currentScale      int
	minScale          int // -1 before first integration
	currIntegrCount   uint32
	currObservedCount uint32

	buffer blockBuffer
}

// MaxLevel returns log2(B), the coarsest mip level.
func (b *Block) MaxLevel() int { return b.maxLevel }

// CurrentScale returns the scale last integrated into.
func (b *Block) CurrentScale() int { return b.currentScale }

// MinScale returns the finest allocated scale, or -1 before first
// integration.
func (b *Block) MinScale() int { return b.minScale }

// Fresh reports whether the block has never been integrated into.
func (b *Block) Fresh() bool { return b.minScale == -1 }

// CurrIntegrCount / CurrObservedCount return the current-scale tallies,
// §3.5.
func (b *Block) CurrIntegrCount() uint32   { return b.currIntegrCount }
func (b *Block) CurrObservedCount() uint32 { return b.currObservedCount }

// sideAt returns the edge length, in voxels, of a cell at scale s.
func (b *Block) sideAt(s int) int {
	return int(b.edge) >> uint(s)
}

// cellsAt returns the number of cells at scale s (sideAt(s)^3).
func (b *Block) cellsAt(s int) int {
	side := b.sideAt(s)
	return side * side * side
}

// ensureLevel lazily allocates data[s] (and colour[s]/id[s] if
// configured), initialised from initField.
func (b *Block) ensureLevel(s int, hasColour, hasID bool, initField voxel.Field) {
	if b.data == nil {
		b.data = make([][]voxel.Field, b.maxLevel+1)
		b.pastData = make([][]voxel.Field, b.maxLevel+1)
		b.minStack = make([][]int32, b.maxLevel+1)
		b.maxStack = make([][]int32, b.maxLevel+1)
		if hasColour {
			b.colour = make([][]voxel.Colour, b.maxLevel+1)
		}
		if hasID {
			b.id = make([][]voxel.Id, b.maxLevel+1)
		}
	}
	if b.data[s] != nil {
		return
	}
	n := b.cellsAt(s)
	cells := make([]voxel.Field, n)
	for i := range cells {
		cells[i] = initField
	}
	b.data[s] = cells
	b.pastData[s] = make([]voxel.Field, n)
	if hasColour && b.colour != nil {
		b.colour[s] = make([]voxel.Colour, n)
	}
	if hasID && b.id != nil {
		b.id[s] = make([]voxel.Id, n)
	}
}

// ensureAggregateLevel lazily allocates min/max arrays at scale s (used
// for scales strictly coarser than minScale).
func (b *Block) ensureAggregateLevel(s int) {
	if b.minStack[s] == nil {
		n := b.cellsAt(s)
		b.minStack[s] = make([]int32, n)
		b.maxStack[s] = make([]int32, n)
	}
}

// releaseFinerThan drops data (and aggregate) storage for scales strictly
// finer than s, used when a scale switch moves to a coarser scale
// (§4.5's delete_up_to).
func (b *Block) releaseFinerThan(s int) {
	for lvl := 0; lvl < s; lvl++ {
		b.data[lvl] = nil
		b.pastData[lvl] = nil
		b.minStack[lvl] = nil
		b.maxStack[lvl] = nil
		if b.colour != nil {
			b.colour[lvl] = nil
		}
		if b.id != nil {
			b.id[lvl] = nil
		}
	}
}

// LocalCoord converts a global voxel coordinate known to lie within this
// block into local (lx,ly,lz) cell coordinates at scale s.
func (b *Block) LocalCoord(global [3]int32, s int) (lx, ly, lz int) {
	cellEdge := int32(1) << uint(s)
	lx = int((global[0] - b.corner[0]) / cellEdge)
	ly = int((global[1] - b.corner[1]) / cellEdge)
	lz = int((global[2] - b.corner[2]) / cellEdge)
	return
}

// GlobalCoord is LocalCoord's inverse: the global voxel coordinate of a
// local cell's minimum corner at scale s.
func (b *Block) GlobalCoord(lx, ly, lz, s int) [3]int32 {
	cellEdge := int32(1) << uint(s)
	return [3]int32{
		b.corner[0] + int32(lx)*cellEdge,
		b.corner[1] + int32(ly)*cellEdge,
		b.corner[2] + int32(lz)*cellEdge,
	}
}

// SideAt / CellsAt expose a scale's per-axis and total cell counts to
// collaborating packages (fusion, mesh, visitor).
func (b *Block) SideAt(s int) int  { return b.sideAt(s) }
func (b *Block) CellsAt(s int) int { return b.cellsAt(s) }

// InitAtScale allocates a fresh block's storage at the chosen scale and
// sets it as both the block's minimum and current scale, §4.4.3 step 2
// ("allocate down to recommended_scale ... initialise counters from
// init_data").
func (b *Block) InitAtScale(s int, hasColour, hasID bool, initField voxel.Field) {
	b.ensureLevel(s, hasColour, hasID, initField)
	b.minScale = s
	b.currentScale = s
	b.currIntegrCount = 0
	b.currObservedCount = 0
}

// SetCellAt writes the field facet at local coordinate (lx,ly,lz) at
// scale s.
func (b *Block) SetCellAt(lx, ly, lz, s int, v voxel.Field) {
	b.data[s][b.localIndex(lx, ly, lz, s)] = v
}

// SetColourAt / SetIdAt write the optional colour/id facets at scale s,
// no-ops if the facet was not configured.
func (b *Block) SetColourAt(lx, ly, lz, s int, c voxel.Colour) {
	if b.colour == nil || b.colour[s] == nil {
		return
	}
	b.colour[s][b.localIndex(lx, ly, lz, s)] = c
}

func (b *Block) SetIdAt(lx, ly, lz, s int, id voxel.Id) {
	if b.id == nil || b.id[s] == nil {
		return
	}
	b.id[s][b.localIndex(lx, ly, lz, s)] = id
}

// IncrementIntegr / MarkObserved bump the block's current-scale tallies,
// §3.5: curr_integr_count once per UPDATE-BLOCK call, curr_observed_count
// once per voxel that transitions from unobserved to observed.
func (b *Block) IncrementIntegr() { b.currIntegrCount++ }

func (b *Block) MarkObserved(wasObserved bool) {
	if !wasObserved {
		b.currObservedCount++
	}
}

// localIndex maps a local voxel coordinate (within the block, at scale s)
// to a flat index into the scale-s arrays.
func (b *Block) localIndex(lx, ly, lz, s int) int {
	side := b.sideAt(s)
	return (lz*side+ly)*side + lx
}

// CellAt returns the field value at local coordinate (lx,ly,lz) at scale
// s, and whether s is currently allocated (>= minScale).
func (b *Block) CellAt(lx, ly, lz, s int) (voxel.Field, bool) {
	if b.minScale < 0 || s < b.minScale || s > b.maxLevel || b.data[s] == nil {
		return voxel.Field{}, false
	}
	return b.data[s][b.localIndex(lx, ly, lz, s)], true
}

// MinMaxAt returns the min/max log-odds aggregate at scale s, honouring
// the finest-scale aliasing rule from §3.5: at minScale, min and max both
// equal the cell's own value.
func (b *Block) MinMaxAt(lx, ly, lz, s int) (min, max int32, ok bool) {
	if b.minScale < 0 || s < b.minScale || s > b.maxLevel {
		return 0, 0, false
	}
	if s == b.minScale {
		v, ok := b.CellAt(lx, ly, lz, s)
		if !ok {
			return 0, 0, false
		}
		return v.Raw, v.Raw, true
	}
	if b.minStack[s] == nil {
		return 0, 0, false
	}
	idx := b.localIndex(lx, ly, lz, s)
	return b.minStack[s][idx], b.maxStack[s][idx], true
}

// ReduceCurrentScale scans every cell at CurrentScale and returns the
// min/max over data[currentScale] directly, §3.5's mip root computed on
// demand rather than maintained incrementally: minStack/maxStack above
// minScale are only ever filled for the one level a scale switch just
// vacated (recomputeAggregateLevel), never for MaxLevel in general, so a
// block integrated at a scale finer than MaxLevel has no standing
// aggregate there for a caller (propagation) to read. ok is false only
// when the block has never been initialised at any scale.
func (b *Block) ReduceCurrentScale() (min, max int32, ok bool) {
	if b.minScale < 0 {
		return 0, 0, false
	}
	data := b.data[b.currentScale]
	if data == nil {
		return 0, 0, false
	}
	min, max = data[0].Raw, data[0].Raw
	for _, v := range data[1:] {
		if v.Raw < min {
			min = v.Raw
		}
		if v.Raw > max {
			max = v.Raw
		}
	}
	return min, max, true
}

// SnapshotPast copies data[s] into pastData[s] for every allocated scale,
// so that a later comparison against pastData (via PastCellAt) reflects
// only changes integrated after the snapshot.
func (b *Block) SnapshotPast() {
	for s := range b.data {
		if b.data[s] == nil {
			continue
		}
		copy(b.pastData[s], b.data[s])
	}
}

// PastCellAt returns the snapshot taken at the last SnapshotPast call.
func (b *Block) PastCellAt(lx, ly, lz, s int) (voxel.Field, bool) {
	if b.pastData == nil || s < 0 || s > b.maxLevel || b.pastData[s] == nil {
		return voxel.Field{}, false
	}
	return b.pastData[s][b.localIndex(lx, ly, lz, s)], true
}

// ColourAt / IdAt return the colour/id facets at scale s, if configured
// and allocated.
func (b *Block) ColourAt(lx, ly, lz, s int) (voxel.Colour, bool) {
	if b.colour == nil || s < 0 || s > b.maxLevel || b.colour[s] == nil {
		return voxel.Colour{}, false
	}
	return b.colour[s][b.localIndex(lx, ly, lz, s)], true
}

func (b *Block) IdAt(lx, ly, lz, s int) (voxel.Id, bool) {
	if b.id == nil || s < 0 || s > b.maxLevel || b.id[s] == nil {
		return voxel.Id{}, false
	}
	return b.id[s][b.localIndex(lx, ly, lz, s)], true
}
