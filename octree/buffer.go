package octree

import "github.com/voxelcore/voxelcore/voxel"

// blockBuffer is a block's shadow working copy at a candidate scale, used
// to decide whether to migrate the block to that scale (§3.5, §4.5).
type blockBuffer struct {
	active bool
	scale  int
	data   []voxel.Field
	colour []voxel.Colour
	id     []voxel.Id

	integrCount   uint32
	observedCount uint32
}

// BufferActive reports whether a buffer is currently in use.
func (b *Block) BufferActive() bool { return b.buffer.active }

// BufferScale returns the buffer's candidate scale; only meaningful when
// BufferActive.
func (b *Block) BufferScale() int { return b.buffer.scale }

// BufferCounts returns the buffer's integration/observation tallies.
func (b *Block) BufferCounts() (integr, observed uint32) {
	return b.buffer.integrCount, b.buffer.observedCount
}

// InitBuffer creates (or re-creates) the buffer at the given scale as a
// freshly allocated, zero-valued array, whether the scale is finer or
// coarser than current. A coarser buffer neither aliases nor copies the
// block's existing data at that scale, and nothing seeds it afterwards.
// hasColour and hasID mirror the map's configuration.
//
// When moving to a finer scale, every buffer voxel is initialised from
// its parent at current_scale with the observed bit cleared, §4.4.3 step
// 3, so counting restarts from scratch; InitBuffer itself only allocates
// the arrays — seeding happens in the caller (package fusion), which has
// the parent-lookup logic already in hand.
func (b *Block) InitBuffer(scale int, hasColour, hasID bool) {
	if b.buffer.active && b.buffer.scale == scale {
		return
	}
	n := b.cellsAt(scale)
	b.buffer = blockBuffer{
		active: true,
		scale:  scale,
		data:   make([]voxel.Field, n),
	}
	if hasColour {
		b.buffer.colour = make([]voxel.Colour, n)
	}
	if hasID {
		b.buffer.id = make([]voxel.Id, n)
	}
}

// ResetBuffer discards the buffer without switching, per §4.5 and
// SPEC_FULL's explicit reset_buffer exposure.
func (b *Block) ResetBuffer() {
	b.buffer = blockBuffer{}
}

// BufferCellAt / SetBufferCellAt access the buffer's field array by local
// coordinate.
func (b *Block) BufferCellAt(lx, ly, lz int) voxel.Field {
	return b.buffer.data[b.localIndex(lx, ly, lz, b.buffer.scale)]
}

func (b *Block) SetBufferCellAt(lx, ly, lz int, v voxel.Field) {
	b.buffer.data[b.localIndex(lx, ly, lz, b.buffer.scale)] = v
}

func (b *Block) BufferColourAt(lx, ly, lz int) (voxel.Colour, bool) {
	if b.buffer.colour == nil {
		return voxel.Colour{}, false
	}
	return b.buffer.colour[b.localIndex(lx, ly, lz, b.buffer.scale)], true
}

func (b *Block) SetBufferColourAt(lx, ly, lz int, c voxel.Colour) {
	if b.buffer.colour == nil {
		return
	}
	b.buffer.colour[b.localIndex(lx, ly, lz, b.buffer.scale)] = c
}

func (b *Block) BufferIdAt(lx, ly, lz int) (voxel.Id, bool) {
	if b.buffer.id == nil {
		return voxel.Id{}, false
	}
	return b.buffer.id[b.localIndex(lx, ly, lz, b.buffer.scale)], true
}

func (b *Block) SetBufferIdAt(lx, ly, lz int, id voxel.Id) {
	if b.buffer.id == nil {
		return
	}
	b.buffer.id[b.localIndex(lx, ly, lz, b.buffer.scale)] = id
}

// BufferSideAt / BufferCellsTotal expose the buffer's geometry for
// seeding/iteration by package fusion.
func (b *Block) BufferSideAt() int    { return b.sideAt(b.buffer.scale) }
func (b *Block) BufferCellsTotal() int { return b.cellsAt(b.buffer.scale) }

// IncrementBufferIntegr bumps the buffer's integration tally;
// MarkBufferObserved bumps its observation tally when wasObserved is
// false. Neither tally is capped.
func (b *Block) IncrementBufferIntegr() { b.buffer.integrCount++ }

func (b *Block) MarkBufferObserved(wasObserved bool) {
	if !wasObserved {
		b.buffer.observedCount++
	}
}

// SwitchSucceeds reports whether switch_data's two-part condition holds,
// §4.5:
//
//	buffer_integr_count >= minIntegrCount, AND
//	buffer_observed_count * (2^buffer_scale)^3 >=
//	    minCoverage * curr_observed_count * (2^current_scale)^3
func (b *Block) SwitchSucceeds(minIntegrCount int, minCoverage float64) bool {
	if !b.buffer.active {
		return false
	}
	if int(b.buffer.integrCount) < minIntegrCount {
		return false
	}
	bufferVoxels := float64(b.buffer.observedCount) * cellVolume(b.buffer.scale)
	currVoxels := float64(b.currObservedCount) * cellVolume(b.currentScale)
	return bufferVoxels >= minCoverage*currVoxels
}

func cellVolume(scale int) float64 {
	side := float64(int(1) << uint(scale))
	return side * side * side
}

// SwitchData performs the scale switch once SwitchSucceeds is true,
// §4.5. It returns false (doing nothing) if the buffer isn't active or
// the condition no longer holds; callers should check SwitchSucceeds
// first if they want to distinguish "not ready" from "already switched".
func (b *Block) SwitchData(minIntegrCount int, minCoverage float64, hasColour, hasID bool) bool {
	if !b.SwitchSucceeds(minIntegrCount, minCoverage) {
		return false
	}

	newScale := b.buffer.scale
	if newScale < b.currentScale {
		// Finer: the buffer becomes the new finest level.
		if b.data == nil {
			b.ensureLevel(b.maxLevel, hasColour, hasID, voxel.Field{})
		}
		b.data[newScale] = b.buffer.data
		b.pastData[newScale] = make([]voxel.Field, len(b.buffer.data))
		if hasColour {
			b.colour[newScale] = b.buffer.colour
		}
		if hasID {
			b.id[newScale] = b.buffer.id
		}
		// Finer scales no longer alias min/max at the old minScale; give
		// it real aggregate storage now that it is not the finest level.
		b.ensureAggregateLevel(b.minScale)
		b.recomputeAggregateLevel(b.minScale)
		b.minScale = newScale
	} else if newScale > b.currentScale {
		// Coarser: drop finer-scale storage, aliasing moves to newScale.
		b.data[newScale] = b.buffer.data
		b.pastData[newScale] = make([]voxel.Field, len(b.buffer.data))
		if hasColour {
			b.colour[newScale] = b.buffer.colour
		}
		if hasID {
			b.id[newScale] = b.buffer.id
		}
		b.releaseFinerThan(newScale)
		b.minScale = newScale
	}
	// Walk buffer voxels: any voxel with weight>0 but not observed gets
	// observed set, catching voxels that inherited unobserved parent
	// state but have since been integrated, §4.5.
	for i := range b.buffer.data {
		if b.buffer.data[i].Weight > 0 && !b.buffer.data[i].Observed {
			b.buffer.data[i].Observed = true
		}
	}

	b.currentScale = newScale
	b.currIntegrCount = b.buffer.integrCount
	b.currObservedCount = b.buffer.observedCount
	b.ResetBuffer()
	return true
}

// recomputeAggregateLevel fills minStack[s]/maxStack[s] with the Raw
// value of each cell of data[s] itself, used once a scale stops being
// the finest allocated level and needs real (non-aliased) aggregates.
// It does not read the finer-scale data beneath level s.
func (b *Block) recomputeAggregateLevel(s int) {
	if b.data[s] == nil {
		return
	}
	b.ensureAggregateLevel(s)
	for i, v := range b.data[s] {
		b.minStack[s][i] = v.Raw
		b.maxStack[s][i] = v.Raw
	}
}
