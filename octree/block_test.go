package octree

import (
	"testing"

	"go.viam.com/test"

	"github.com/voxelcore/voxelcore/voxel"
)

func newTestBlock() *Block {
	b := &Block{octantCommon: octantCommon{corner: [3]int32{0, 0, 0}, edge: 8}, maxLevel: 3, currentScale: 3, minScale: -1}
	return b
}

func TestBlockFreshBeforeFirstIntegration(t *testing.T) {
	b := newTestBlock()
	test.That(t, b.Fresh(), test.ShouldBeTrue)
	b.InitAtScale(1, false, false, voxel.Field{})
	test.That(t, b.Fresh(), test.ShouldBeFalse)
	test.That(t, b.MinScale(), test.ShouldEqual, 1)
	test.That(t, b.CurrentScale(), test.ShouldEqual, 1)
}

func TestBlockMinMaxAliasesFinestScale(t *testing.T) {
	b := newTestBlock()
	b.InitAtScale(0, false, false, voxel.Field{})
	b.SetCellAt(0, 0, 0, 0, voxel.Field{Raw: 42, Weight: 1})

	min, max, ok := b.MinMaxAt(0, 0, 0, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, min, test.ShouldEqual, int32(42))
	test.That(t, max, test.ShouldEqual, int32(42))

	field, ok := b.CellAt(0, 0, 0, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, field.Raw, test.ShouldEqual, int32(42))
}

func TestBlockLocalGlobalCoordRoundTrip(t *testing.T) {
	b := &Block{octantCommon: octantCommon{corner: [3]int32{16, 32, 48}, edge: 8}, maxLevel: 3}
	global := b.GlobalCoord(1, 2, 3, 1)
	lx, ly, lz := b.LocalCoord(global, 1)
	test.That(t, [3]int{lx, ly, lz}, test.ShouldResemble, [3]int{1, 2, 3})
}

func TestBlockColourAndIdFacetsNoOpWhenUnconfigured(t *testing.T) {
	b := newTestBlock()
	b.InitAtScale(2, false, false, voxel.Field{})
	b.SetColourAt(0, 0, 0, 2, voxel.Colour{R: 1})
	_, ok := b.ColourAt(0, 0, 0, 2)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestBlockColourFacetRoundTrip(t *testing.T) {
	b := newTestBlock()
	b.InitAtScale(2, true, false, voxel.Field{})
	b.SetColourAt(0, 0, 0, 2, voxel.Colour{R: 9, G: 8, B: 7, Weight: 1})
	c, ok := b.ColourAt(0, 0, 0, 2)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, c.R, test.ShouldEqual, uint8(9))
}

func TestSwitchDataMovesToFinerScaleAndResetsBuffer(t *testing.T) {
	b := newTestBlock()
	b.InitAtScale(3, false, false, voxel.Field{})
	// Scale 3 is the block's coarsest level (a single cell), so
	// currObservedCount can be at most 1 here.
	b.currObservedCount = 1
	b.currIntegrCount = 10

	b.InitBuffer(2, false, false)
	for i := 0; i < b.BufferCellsTotal(); i++ {
		b.buffer.data[i] = voxel.Field{Weight: 1, Observed: true}
	}
	b.buffer.integrCount = 25
	b.buffer.observedCount = uint32(b.BufferCellsTotal())

	ok := b.SwitchData(20, 0.9, false, false)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, b.CurrentScale(), test.ShouldEqual, 2)
	test.That(t, b.MinScale(), test.ShouldEqual, 2)
	test.That(t, b.BufferActive(), test.ShouldBeFalse)
}

func TestSwitchDataNoOpBelowThreshold(t *testing.T) {
	b := newTestBlock()
	b.InitAtScale(3, false, false, voxel.Field{})
	b.InitBuffer(2, false, false)
	b.buffer.integrCount = 1 // below MinSwitchIntegrCount

	ok := b.SwitchData(20, 0.9, false, false)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, b.CurrentScale(), test.ShouldEqual, 3)
}
