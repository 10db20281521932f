package carve

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/voxelcore/voxelcore/config"
	"github.com/voxelcore/voxelcore/octree"
	"github.com/voxelcore/voxelcore/sensor"
	"github.com/voxelcore/voxelcore/sensor/mock"
	"github.com/voxelcore/voxelcore/spatial"
	"github.com/voxelcore/voxelcore/voxerr"
)

func testMap() config.Map {
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

func testModel() mock.Pinhole {
	return mock.Pinhole{
		Width: 64, Height: 64,
		Fx: 50, Fy: 50, Cx: 32, Cy: 32,
		Near: 0.1, Far: 50,
		PixelRatioMin: 1, PixelRatioMax: 4,
	}
}

func nanImage(w, h int) sensor.Image {
	img := sensor.NewImage(w, h)
	for i := range img.Data {
		img.Data[i] = float32(math.NaN())
	}
	return img
}

func TestCarveEmptyFrameAllocatesNothingBeyondRoot(t *testing.T) {
	tree, err := octree.New(testMap(), 0, 0)
	test.That(t, err, test.ShouldBeNil)

	model := testModel()
	depth := nanImage(model.Width, model.Height)
	sigma := sensor.NewImage(model.Width, model.Height)
	tWS := spatial.NewFromPoint(r3.Vector{X: 4, Y: 4, Z: -10})

	result, err := Carve(tree, model, depth, sigma, tWS, 1, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.NodeList, test.ShouldHaveLength, 0)
	test.That(t, result.BlockList, test.ShouldHaveLength, 0)

	_, _, ok := tree.AABB()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestCarveMismatchedDepthDimensionsReturnsConfigError(t *testing.T) {
	tree, err := octree.New(testMap(), 0, 0)
	test.That(t, err, test.ShouldBeNil)

	model := testModel()
	depth := sensor.NewImage(model.Width+1, model.Height)
	sigma := sensor.NewImage(model.Width+1, model.Height)
	tWS := spatial.Identity()

	_, err = Carve(tree, model, depth, sigma, tWS, 1, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, voxerr.IsKind(err, voxerr.KindConfig), test.ShouldBeTrue)
}

func TestCarveMismatchedSigmaDimensionsReturnsConfigError(t *testing.T) {
	tree, err := octree.New(testMap(), 0, 0)
	test.That(t, err, test.ShouldBeNil)

	model := testModel()
	depth := sensor.NewImage(model.Width, model.Height)
	sigma := sensor.NewImage(model.Width, model.Height+1)
	tWS := spatial.Identity()

	_, err = Carve(tree, model, depth, sigma, tWS, 1, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, voxerr.IsKind(err, voxerr.KindConfig), test.ShouldBeTrue)
}

// When the camera sits inside the root octant's AABB, projection is
// degenerate and carving goes straight to subdivision (§4.3 step 2). The
// one child block whose own AABB still contains the camera has nowhere
// left to subdivide and terminates as Undefined.
func TestCarveCameraInsideOctantSubdividesAndTerminatesUndefined(t *testing.T) {
	tree, err := octree.New(testMap(), 0, 0)
	test.That(t, err, test.ShouldBeNil)

	model := testModel()
	depth := nanImage(model.Width, model.Height)
	sigma := sensor.NewImage(model.Width, model.Height)
	tWS := spatial.NewFromPoint(r3.Vector{X: 6, Y: 6, Z: 6})

	result, err := Carve(tree, model, depth, sigma, tWS, 1, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.NodeList, test.ShouldHaveLength, 0)

	ref, ok := tree.Locate([3]int32{7, 7, 7})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ref.IsBlock, test.ShouldBeTrue)

	idx := -1
	for i, id := range result.BlockList {
		if id == ref.Block {
			idx = i
		}
	}
	test.That(t, idx, test.ShouldBeGreaterThanOrEqualTo, 0)
	test.That(t, result.VarianceStateList[idx], test.ShouldEqual, Undefined)
	test.That(t, result.ProjectsInsideList[idx], test.ShouldBeFalse)
}

func TestVarianceStateConstantWhenEntirelyOutsideBand(t *testing.T) {
	vs := varianceState(10, 11, 1, 2, 0.05, false)
	test.That(t, vs, test.ShouldEqual, Constant)
}

func TestVarianceStateGradientWhenBandOverlaps(t *testing.T) {
	vs := varianceState(1, 11, 5, 6, 0.05, false)
	test.That(t, vs, test.ShouldEqual, Gradient)
}

func TestVarianceStateUndefinedOnCoverageGap(t *testing.T) {
	vs := varianceState(1, 2, 1, 2, 0.05, true)
	test.That(t, vs, test.ShouldEqual, Undefined)
}
