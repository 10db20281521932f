package mesh

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/voxelcore/voxelcore/config"
	"github.com/voxelcore/voxelcore/octree"
	"github.com/voxelcore/voxelcore/spatial"
	"github.com/voxelcore/voxelcore/voxel"
)

func meshTestMap() config.Map {
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
		PixelToVoxelRatioMin: 1,
		PixelToVoxelRatioMax: 4,
		FsIntegrScale:        0,
		MaxScale:             2,
	}
}

// originVertexExtractor is a test double for Extractor: every block
// extracts to a single vertex at its own local origin and no triangles.
type originVertexExtractor struct{}

func (originVertexExtractor) Extract(blk *octree.Block, scale int) (TriangleMesh, error) {
	return TriangleMesh{Vertices: []Vertex{{Position: r3.Vector{}}}}, nil
}

func twoAdjacentBlocks(t *testing.T) (*octree.Octree, octree.BlockID, octree.BlockID) {
	tree, err := octree.New(meshTestMap(), 0, 0)
	test.That(t, err, test.ShouldBeNil)

	refA, _, err := tree.AllocateChild(tree.Root(), 0) // corner {0,0,0}
	test.That(t, err, test.ShouldBeNil)
	refB, _, err := tree.AllocateChild(tree.Root(), 1) // corner {4,0,0}
	test.That(t, err, test.ShouldBeNil)

	blkA := tree.Pool().Block(refA.Block)
	blkA.InitAtScale(0, false, false, voxel.Field{})
	blkB := tree.Pool().Block(refB.Block)
	blkB.InitAtScale(1, false, false, voxel.Field{})

	return tree, refA.Block, refB.Block
}

func TestMeshTransformsVertexIntoOutputSpace(t *testing.T) {
	tree, blockA, blockB := twoAdjacentBlocks(t)

	out, _, err := Mesh(tree, originVertexExtractor{}, spatial.Identity(), 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Vertices, test.ShouldHaveLength, 2)

	cornerA := tree.Pool().Block(blockA).Corner()
	cornerB := tree.Pool().Block(blockB).Corner()

	var gotA, gotB bool
	for _, v := range out.Vertices {
		if v.Position.X == float64(cornerA[0]) {
			gotA = true
		}
		if v.Position.X == float64(cornerB[0]) {
			gotB = true
		}
	}
	test.That(t, gotA, test.ShouldBeTrue)
	test.That(t, gotB, test.ShouldBeTrue)
}

func TestMeshReportsSeamBetweenAdjacentBlocksAtDifferentScales(t *testing.T) {
	tree, _, _ := twoAdjacentBlocks(t)

	_, report, err := Mesh(tree, originVertexExtractor{}, spatial.Identity(), 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, report.Seams, test.ShouldHaveLength, 1)
	test.That(t, report.Seams[0].ScaleA, test.ShouldNotEqual, report.Seams[0].ScaleB)
}

func TestAdjacentDetectsFaceSharingCornersOnly(t *testing.T) {
	test.That(t, adjacent([3]int32{0, 0, 0}, [3]int32{4, 0, 0}, 4), test.ShouldBeTrue)
	test.That(t, adjacent([3]int32{0, 0, 0}, [3]int32{4, 4, 0}, 4), test.ShouldBeFalse)
	test.That(t, adjacent([3]int32{0, 0, 0}, [3]int32{8, 0, 0}, 4), test.ShouldBeFalse)
}

func TestStructureEmitsOneBoxPerLeafBlock(t *testing.T) {
	tree, _, _ := twoAdjacentBlocks(t)

	qm := Structure(tree, spatial.Identity(), true)
	test.That(t, qm.Vertices, test.ShouldHaveLength, 16)
	test.That(t, qm.Quads, test.ShouldHaveLength, 12)
}

func TestStructureAllOctantsIncludesInternalNode(t *testing.T) {
	tree, _, _ := twoAdjacentBlocks(t)

	qm := Structure(tree, spatial.Identity(), false)
	// Root plus its two allocated block children.
	test.That(t, qm.Vertices, test.ShouldHaveLength, 24)
}
