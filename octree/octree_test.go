package octree

import (
	"testing"

	"go.viam.com/test"

	"github.com/voxelcore/voxelcore/config"
)

func testConfig() config.Map {
	return config.Map{
		Model:                config.Occupancy,
		BlockEdge:            4,
		RequestedSideVoxels:  32,
		Resolution:           0.1,
		SigmaMinFactor:       1,
		SigmaMaxFactor:       4,
		TauMin:               0.05,
		TauMax:               0.2,
		MaxWeight:            32,
		FieldMin:             -128,
		FieldMax:             128,
		LogOddMin:            1,
		LogOddMax:            5,
		PixelToVoxelRatioMin: 1,
		PixelToVoxelRatioMax: 4,
		FsIntegrScale:        1,
		MaxScale:             3,
		MinSwitchIntegrCount: 20,
		MinSwitchCoverage:    0.9,
	}
}

func TestNewRootCoversConfiguredSide(t *testing.T) {
	tree, err := New(testConfig(), 0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.N(), test.ShouldEqual, int32(32))
	root := tree.Pool().Node(tree.Root())
	test.That(t, root.Edge(), test.ShouldEqual, int32(32))
	test.That(t, root.Corner(), test.ShouldResemble, [3]int32{0, 0, 0})
}

func TestAllocateChildMortonOffsets(t *testing.T) {
	tree, err := New(testConfig(), 0, 0)
	test.That(t, err, test.ShouldBeNil)

	refs, err := tree.AllocateAllChildren(tree.Root())
	test.That(t, err, test.ShouldBeNil)

	half := int32(16)
	for i, ref := range refs {
		corner := tree.Pool().Node(ref.Node).Corner()
		want := [3]int32{
			int32(i&1) * half,
			int32((i>>1)&1) * half,
			int32((i>>2)&1) * half,
		}
		test.That(t, corner, test.ShouldResemble, want)
	}
}

func TestAllocateChildIsIdempotent(t *testing.T) {
	tree, err := New(testConfig(), 0, 0)
	test.That(t, err, test.ShouldBeNil)

	ref1, fresh1, err := tree.AllocateChild(tree.Root(), 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fresh1, test.ShouldBeTrue)

	ref2, fresh2, err := tree.AllocateChild(tree.Root(), 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fresh2, test.ShouldBeFalse)
	test.That(t, ref2, test.ShouldResemble, ref1)
}

func TestLocateFindsDeepestAllocatedOctant(t *testing.T) {
	tree, err := New(testConfig(), 0, 0)
	test.That(t, err, test.ShouldBeNil)

	// Nothing allocated below the root yet: Locate should return the root.
	ref, ok := tree.Locate([3]int32{1, 1, 1})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ref.IsBlock, test.ShouldBeFalse)
	test.That(t, ref.Node, test.ShouldEqual, tree.Root())

	// Subdividing down to blocks (block edge 4, root edge 32: three halvings,
	// 32 -> 16 -> 8 -> 4, before children are blocks) should make Locate
	// return a block.
	refs, err := tree.AllocateAllChildren(tree.Root())
	test.That(t, err, test.ShouldBeNil)
	refs, err = tree.AllocateAllChildren(refs[0].Node)
	test.That(t, err, test.ShouldBeNil)
	_, err = tree.AllocateAllChildren(refs[0].Node)
	test.That(t, err, test.ShouldBeNil)

	ref, ok = tree.Locate([3]int32{1, 1, 1})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ref.IsBlock, test.ShouldBeTrue)
}

func TestLocateOutOfBounds(t *testing.T) {
	tree, err := New(testConfig(), 0, 0)
	test.That(t, err, test.ShouldBeNil)
	_, ok := tree.Locate([3]int32{-1, 0, 0})
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = tree.Locate([3]int32{32, 0, 0})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestDeleteChildrenFreesSubtreeAndInvalidatesHandles(t *testing.T) {
	tree, err := New(testConfig(), 0, 0)
	test.That(t, err, test.ShouldBeNil)

	refs, err := tree.AllocateAllChildren(tree.Root())
	test.That(t, err, test.ShouldBeNil)

	handle := tree.Pool().Node(refs[0].Node).Handle()
	_, ok := tree.Resolve(handle)
	test.That(t, ok, test.ShouldBeTrue)

	tree.DeleteChildren(tree.Root())
	_, ok = tree.Resolve(handle)
	test.That(t, ok, test.ShouldBeFalse)

	root := tree.Pool().Node(tree.Root())
	test.That(t, root.IsLeaf(), test.ShouldBeTrue)
}

func TestAABBGrowsWithAllocation(t *testing.T) {
	tree, err := New(testConfig(), 0, 0)
	test.That(t, err, test.ShouldBeNil)

	_, _, ok := tree.AABB()
	test.That(t, ok, test.ShouldBeFalse)

	_, err = tree.AllocateAllChildren(tree.Root())
	test.That(t, err, test.ShouldBeNil)

	min, max, ok := tree.AABB()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, min, test.ShouldResemble, [3]int32{0, 0, 0})
	test.That(t, max, test.ShouldResemble, [3]int32{32, 32, 32})
}

func TestDepth(t *testing.T) {
	tree, err := New(testConfig(), 0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.Depth(32), test.ShouldEqual, 0)
	test.That(t, tree.Depth(16), test.ShouldEqual, 1)
	test.That(t, tree.Depth(4), test.ShouldEqual, 3)
}

func TestAllocationErrorOnPoolExhaustion(t *testing.T) {
	tree, err := New(testConfig(), 1, 0)
	test.That(t, err, test.ShouldBeNil)
	_, err = tree.AllocateAllChildren(tree.Root())
	test.That(t, err, test.ShouldNotBeNil)
}
