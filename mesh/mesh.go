// Package mesh implements the extraction driver (component I, §6.3): it
// iterates leaf blocks, hands each one to an external marching-cubes
// capability at the block's current scale, and stitches the per-block
// results into one mesh. Marching cubes itself stays out of scope (§1);
// this package states the interface it consumes (Extractor) and produces
// the triangle/quad mesh types plus file-path encoders.
//
// Grounded on viamrobotics-rdk/pointcloud's export drivers (PCD/PLY
// writers in pointcloud/pcd.go, pointcloud/pointcloud.go) for the
// extension-dispatch and atomic-write idiom, generalised to three output
// formats.
package mesh

import (
	"github.com/golang/geo/r3"

	"github.com/voxelcore/voxelcore/iterator"
	"github.com/voxelcore/voxelcore/octree"
	"github.com/voxelcore/voxelcore/spatial"
	"github.com/voxelcore/voxelcore/voxel"
)

// Vertex is one triangle-mesh vertex, carrying the optional colour/id
// facets alongside position, §6.3's TriangleMesh<col, id>.
type Vertex struct {
	Position r3.Vector
	Colour   voxel.Colour
	Id       voxel.Id
}

// Triangle indexes three Vertices.
type Triangle [3]int

// TriangleMesh is the §6.3 octree.mesh(...) output.
type TriangleMesh struct {
	Vertices  []Vertex
	Triangles []Triangle
}

// QuadVertex is one structure-mesh vertex: position only, §6.3's
// QuadMesh<_, _> carries no facets.
type QuadVertex struct {
	Position r3.Vector
}

// Quad indexes four QuadVertices.
type Quad [4]int

// QuadMesh is the §6.3 octree.structure(...) output: one quad per leaf
// octant's visible face, used for structure visualisation rather than a
// watertight surface.
type QuadMesh struct {
	Vertices []QuadVertex
	Quads    []Quad
}

// Extractor is the external marching-cubes capability this driver
// consumes, one call per leaf block. Implementations read the block's
// field data at the given scale and return a local mesh fragment in the
// block's own voxel-local coordinate frame (origin at the block's minimum
// corner, units of voxels at that scale); the driver transforms fragments
// into output space and merges them.
type Extractor interface {
	Extract(blk *octree.Block, scale int) (TriangleMesh, error)
}

// SeamReport records, per pair of adjacent blocks extracted at different
// scales, that a seam exists and may need stitching — a SPEC_FULL
// supplement: the marching-cubes pass itself is out of scope, but a
// complete driver still owes its caller the information needed to run an
// external stitcher.
type SeamReport struct {
	Seams []Seam
}

// Seam names one pair of adjacent leaf blocks whose extraction scales
// differ, identified by stable handle so the caller can still resolve
// them after extraction completes.
type Seam struct {
	A, B         octree.Handle
	ScaleA, ScaleB int
}

// Mesh implements octree.mesh(T_OV, min_desired_scale), §6.3: walk every
// leaf block via iterator.BlocksOnly, extract each at
// max(block.CurrentScale(), minDesiredScale), transform vertices from
// voxel-local into T_OV's output frame, and concatenate. tOV transforms a
// world-metric point into the caller's chosen output frame (identity for
// "world", or the inverse of a viewer pose).
func Mesh(tree *octree.Octree, ex Extractor, tOV spatial.Isometry, minDesiredScale int) (TriangleMesh, SeamReport, error) {
	cfg := tree.Config()
	var out TriangleMesh
	var report SeamReport

	type placed struct {
		handle octree.Handle
		corner [3]int32
		scale  int
	}
	var blocks []placed

	it := iterator.BlocksOnly(tree)
	iterator.Each(it, func(ref octree.Ref) bool {
		blk := tree.Pool().Block(ref.Block)
		scale := blk.CurrentScale()
		if minDesiredScale > scale {
			scale = minDesiredScale
		}
		if scale > blk.MaxLevel() {
			scale = blk.MaxLevel()
		}

		frag, err := ex.Extract(blk, scale)
		if err != nil {
			return true
		}

		base := len(out.Vertices)
		cellEdge := float64(int(1) << uint(scale))
		corner := blk.Corner()
		for _, v := range frag.Vertices {
			worldLocal := r3.Vector{
				X: (float64(corner[0]) + v.Position.X*cellEdge) * cfg.Resolution,
				Y: (float64(corner[1]) + v.Position.Y*cellEdge) * cfg.Resolution,
				Z: (float64(corner[2]) + v.Position.Z*cellEdge) * cfg.Resolution,
			}
			v.Position = tOV.Transform(worldLocal)
			out.Vertices = append(out.Vertices, v)
		}
		for _, tri := range frag.Triangles {
			out.Triangles = append(out.Triangles, Triangle{base + tri[0], base + tri[1], base + tri[2]})
		}

		blocks = append(blocks, placed{handle: blk.Handle(), corner: corner, scale: scale})
		return true
	})

	for i := range blocks {
		for j := i + 1; j < len(blocks); j++ {
			if blocks[i].scale == blocks[j].scale {
				continue
			}
			if !adjacent(blocks[i].corner, blocks[j].corner, cfg.BlockEdge) {
				continue
			}
			report.Seams = append(report.Seams, Seam{
				A: blocks[i].handle, B: blocks[j].handle,
				ScaleA: blocks[i].scale, ScaleB: blocks[j].scale,
			})
		}
	}

	return out, report, nil
}

// adjacent reports whether two blocks of the given edge share a face,
// i.e. their corners differ by exactly one block-edge along exactly one
// axis and coincide on the other two.
func adjacent(a, b [3]int32, edge int) bool {
	diffs := 0
	for k := 0; k < 3; k++ {
		d := a[k] - b[k]
		if d == 0 {
			continue
		}
		if d != int32(edge) && d != -int32(edge) {
			return false
		}
		diffs++
	}
	return diffs == 1
}

// Structure implements octree.structure(T_OV, only_leaves), §6.3: one
// quad per leaf octant's axis-aligned bounding box, emitted as its six
// faces (or, when onlyLeaves is false, every allocated octant's box,
// matching the structure-visualisation use case of showing interior
// subdivision as well).
func Structure(tree *octree.Octree, tOV spatial.Isometry, onlyLeaves bool) QuadMesh {
	cfg := tree.Config()
	var out QuadMesh

	emit := func(corner [3]int32, edge int32) {
		base := len(out.Vertices)
		res := cfg.Resolution
		for i := 0; i < 8; i++ {
			local := r3.Vector{
				X: (float64(corner[0]) + float64((i&1))*float64(edge)) * res,
				Y: (float64(corner[1]) + float64((i>>1)&1)*float64(edge)) * res,
				Z: (float64(corner[2]) + float64((i>>2)&1)*float64(edge)) * res,
			}
			out.Vertices = append(out.Vertices, QuadVertex{Position: tOV.Transform(local)})
		}
		faces := [6][4]int{
			{0, 1, 3, 2}, {4, 6, 7, 5},
			{0, 4, 5, 1}, {2, 3, 7, 6},
			{0, 2, 6, 4}, {1, 5, 7, 3},
		}
		for _, f := range faces {
			out.Quads = append(out.Quads, Quad{base + f[0], base + f[1], base + f[2], base + f[3]})
		}
	}

	var it *iterator.Iterator
	if onlyLeaves {
		it = iterator.LeavesOnly(tree)
	} else {
		it = iterator.All(tree)
	}
	iterator.Each(it, func(ref octree.Ref) bool {
		if ref.IsBlock {
			b := tree.Pool().Block(ref.Block)
			emit(b.Corner(), b.Edge())
			return true
		}
		n := tree.Pool().Node(ref.Node)
		emit(n.Corner(), n.Edge())
		return true
	})

	return out
}
