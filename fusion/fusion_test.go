package fusion

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/voxelcore/voxelcore/carve"
	"github.com/voxelcore/voxelcore/config"
	"github.com/voxelcore/voxelcore/octree"
	"github.com/voxelcore/voxelcore/sensor"
	"github.com/voxelcore/voxelcore/sensor/mock"
	"github.com/voxelcore/voxelcore/spatial"
	"github.com/voxelcore/voxelcore/voxerr"
)

func fusionTestMap() config.Map {
	return config.Map{
		Model:                config.Occupancy,
		BlockEdge:            4,
		RequestedSideVoxels:  8,
		Resolution:           1,
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
		FsIntegrScale:        0,
		MaxScale:             2,
		MinSwitchIntegrCount: 20,
		MinSwitchCoverage:    0.9,
	}
}

func fusionTestModel() mock.Pinhole {
	return mock.Pinhole{
		Width: 32, Height: 32,
		Fx: 30, Fy: 30, Cx: 16, Cy: 16,
		Near: 0.1, Far: 50,
		PixelRatioMin: 1, PixelRatioMax: 4,
	}
}

func TestResetBufferDiscardsActiveBuffer(t *testing.T) {
	tree, err := octree.New(fusionTestMap(), 0, 0)
	test.That(t, err, test.ShouldBeNil)

	ref, _, err := tree.AllocateChild(tree.Root(), 0)
	test.That(t, err, test.ShouldBeNil)
	blk := tree.Pool().Block(ref.Block)
	blk.InitBuffer(1, false, false)
	test.That(t, blk.BufferActive(), test.ShouldBeTrue)

	err = ResetBuffer(tree, ref.Block)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blk.BufferActive(), test.ShouldBeFalse)
}

func TestResetBufferRejectsInvalidBlockID(t *testing.T) {
	tree, err := octree.New(fusionTestMap(), 0, 0)
	test.That(t, err, test.ShouldBeNil)

	err = ResetBuffer(tree, octree.BlockID(0))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, voxerr.IsKind(err, voxerr.KindBoundary), test.ShouldBeTrue)
}

func TestIntegrateConstantBlockRaisesFieldTowardsLogOddMax(t *testing.T) {
	tree, err := octree.New(fusionTestMap(), 0, 0)
	test.That(t, err, test.ShouldBeNil)

	ref, _, err := tree.AllocateChild(tree.Root(), 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ref.IsBlock, test.ShouldBeTrue)

	result := &carve.Result{
		BlockList:          []octree.BlockID{ref.Block},
		VarianceStateList:  []carve.VarianceState{carve.Constant},
		ProjectsInsideList: []bool{true},
	}

	model := fusionTestModel()
	frame := sensor.Frame{
		Depth:      sensor.NewImage(model.Width, model.Height),
		DepthSigma: sensor.NewImage(model.Width, model.Height),
		TWS:        spatial.Identity(),
		Timestamp:  1,
	}

	tree.Tick()
	touched := NewTouchedSet()
	err = Integrate(context.Background(), tree, result, frame, model, touched, nil)
	test.That(t, err, test.ShouldBeNil)

	blk := tree.Pool().Block(ref.Block)
	test.That(t, blk.Fresh(), test.ShouldBeFalse)
	min, max, ok := blk.MinMaxAt(0, 0, 0, blk.MaxLevel())
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, min, test.ShouldBeGreaterThan, int32(0))
	test.That(t, max, test.ShouldBeGreaterThan, int32(0))

	root := tree.Pool().Node(tree.Root())
	test.That(t, root.Observed, test.ShouldBeTrue)
	test.That(t, touched.Len(), test.ShouldBeGreaterThan, 0)
}

func TestIntegrateRepeatedFreeUpdatesCapWeight(t *testing.T) {
	tree, err := octree.New(fusionTestMap(), 0, 0)
	test.That(t, err, test.ShouldBeNil)

	ref, _, err := tree.AllocateChild(tree.Root(), 0)
	test.That(t, err, test.ShouldBeNil)

	result := &carve.Result{
		BlockList:          []octree.BlockID{ref.Block},
		VarianceStateList:  []carve.VarianceState{carve.Constant},
		ProjectsInsideList: []bool{true},
	}

	model := fusionTestModel()
	frame := sensor.Frame{
		Depth:      sensor.NewImage(model.Width, model.Height),
		DepthSigma: sensor.NewImage(model.Width, model.Height),
		TWS:        spatial.Identity(),
	}

	for i := 0; i < 40; i++ {
		tree.Tick()
		err = Integrate(context.Background(), tree, result, frame, model, nil, nil)
		test.That(t, err, test.ShouldBeNil)
	}

	blk := tree.Pool().Block(ref.Block)
	field, ok := blk.CellAt(0, 0, 0, blk.CurrentScale())
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, field.Weight, test.ShouldEqual, fusionTestMap().MaxWeight)
}

func TestFreeSubtreePassAppliesLogOddMinAtLeafNode(t *testing.T) {
	tree, err := octree.New(fusionTestMap(), 0, 0)
	test.That(t, err, test.ShouldBeNil)

	root := tree.Pool().Node(tree.Root())
	test.That(t, root.IsLeaf(), test.ShouldBeTrue)

	result := &carve.Result{NodeList: []octree.NodeID{tree.Root()}}

	model := fusionTestModel()
	frame := sensor.Frame{
		Depth:      sensor.NewImage(model.Width, model.Height),
		DepthSigma: sensor.NewImage(model.Width, model.Height),
		TWS:        spatial.Identity(),
	}

	tree.Tick()
	err = Integrate(context.Background(), tree, result, frame, model, nil, nil)
	test.That(t, err, test.ShouldBeNil)

	root = tree.Pool().Node(tree.Root())
	test.That(t, root.Observed, test.ShouldBeTrue)
	test.That(t, root.MinData, test.ShouldEqual, fusionTestMap().LogOddMin)
	test.That(t, root.MaxData, test.ShouldEqual, fusionTestMap().LogOddMin)
}
