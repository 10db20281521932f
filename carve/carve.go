// Package carve implements the frustum-bounded volume carver (component
// E, §4.3): a top-down recursive walk of the octree that allocates and
// classifies octants against one frame's depth measurement, producing
// the four parallel worklists the updater (package fusion) consumes.
//
// Grounded on viamrobotics-rdk's recursive octree descent
// (pointcloud/collision_octree.go's recursive bounding-box tests against
// a query volume), generalised from point-in-box collision testing to
// frustum-relationship classification against a pooling image.
package carve

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/voxelcore/voxelcore/config"
	"github.com/voxelcore/voxelcore/logging"
	"github.com/voxelcore/voxelcore/octree"
	"github.com/voxelcore/voxelcore/pooling"
	"github.com/voxelcore/voxelcore/sensor"
	"github.com/voxelcore/voxelcore/spatial"
	"github.com/voxelcore/voxelcore/voxerr"
)

// VarianceState classifies an octant's depth variance against the
// surface band, §4.3 step 4.
type VarianceState int

const (
	// Constant means the octant lies entirely on one side of the surface
	// band.
	Constant VarianceState = iota
	// Gradient means the surface band overlaps the octant.
	Gradient
	// Undefined means the pooling image reported a coverage gap over the
	// octant's projected rectangle.
	Undefined
)

func (v VarianceState) String() string {
	switch v {
	case Constant:
		return "constant"
	case Gradient:
		return "gradient"
	case Undefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// Result holds the carver's four parallel output lists, §4.3.
type Result struct {
	NodeList  []octree.NodeID
	BlockList []octree.BlockID

	VarianceStateList  []VarianceState
	ProjectsInsideList []bool
}

const sqrt3 = 1.7320508075688772

// Carve walks tree top-down from the root, classifying and allocating
// octants against one frame's depth measurement. On error the octree is
// left with whatever octants were allocated before the failure (per
// §4.3's "allocator's newly created octants are not populated with data;
// they remain valid as unobserved" failure mode) but no list entries are
// returned.
// Carve runs the carver over one frame. logger may be nil, in which case
// dropped-octant diagnostics are simply not emitted.
func Carve(tree *octree.Octree, model sensor.Model, depth, sigma sensor.Image, tWS spatial.Isometry, timestamp uint64, logger logging.Logger) (*Result, error) {
	if depth.Width != model.ImageWidth() || depth.Height != model.ImageHeight() {
		return nil, voxerr.NewConfigError(
			"depth image %dx%d does not match sensor model %dx%d",
			depth.Width, depth.Height, model.ImageWidth(), model.ImageHeight())
	}
	if sigma.Width != depth.Width || sigma.Height != depth.Height {
		return nil, voxerr.NewConfigError(
			"sigma image %dx%d does not match depth image %dx%d",
			sigma.Width, sigma.Height, depth.Width, depth.Height)
	}

	c := &carver{
		tree:      tree,
		cfg:       tree.Config(),
		model:     model,
		sigma:     sigma,
		sWT:       tWS.Inverse(),
		cameraW:   tWS.Point(),
		timestamp: timestamp,
		res:       tree.Config().Resolution,
		pooled:    pooling.Build(depth, model.NearPlane()),
		result:    &Result{},
		logger:    logger,
	}

	root := tree.Pool().Node(tree.Root())
	if err := c.visit(octree.NodeRef(tree.Root()), root.Corner(), root.Edge()); err != nil {
		return nil, err
	}
	return c.result, nil
}

type carver struct {
	tree      *octree.Octree
	cfg       config.Map
	model     sensor.Model
	sigma     sensor.Image
	sWT       spatial.Isometry
	cameraW   r3.Vector
	timestamp uint64
	res       float64
	pooled    *pooling.Image
	result    *Result
	logger    logging.Logger
}

// debugf logs at Debug if the carver was given a logger; a nil logger
// means the caller doesn't want dropped-octant diagnostics.
func (c *carver) debugf(template string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(template, args...)
	}
}

// visit implements §4.3's algorithm for one octant.
func (c *carver) visit(ref octree.Ref, corner [3]int32, edge int32) error {
	worldCorners := c.worldCorners(corner, edge)

	var pixels [8]sensor.Pixel
	var statuses [8]sensor.Status
	var sensorCorners [8]r3.Vector
	allOutside := true
	for i, wc := range worldCorners {
		sc := c.sWT.Transform(wc)
		sensorCorners[i] = sc
		px, st := c.model.Project(sc)
		pixels[i], statuses[i] = px, st
		if st == sensor.Ok {
			allOutside = false
		}
	}

	cameraInside := c.cameraInsideOctant(corner, edge)

	if allOutside && !cameraInside {
		c.debugf("carve: dropping octant %v edge %d, entirely outside frustum", corner, edge)
		return nil // DROP (and its subtree)
	}

	if cameraInside {
		// Projections are degenerate; go straight to subdivision. A
		// block has nowhere to subdivide, so it terminates as Undefined.
		if ref.IsBlock {
			c.emitBlock(ref.Block, Undefined, false)
			return nil
		}
		return c.subdivide(ref.Node)
	}

	rect := c.pixelRect(pixels, statuses, c.model.ImageWidth(), c.model.ImageHeight())
	dMin, dMax, hit, gap := c.pooled.Query(rect)
	if !hit {
		c.debugf("carve: dropping octant %v edge %d, no depth sample in projected rectangle %v", corner, edge, rect)
		return nil // DROP: no depth sample observed in the rectangle
	}
	_, sigmaMax, sigmaHit := pooling.SigmaStats(c.sigma, rect)
	if !sigmaHit {
		sigmaMax = c.cfg.SigmaMax()
	}

	zMin, zMax := math.Inf(1), math.Inf(-1)
	for _, sc := range sensorCorners {
		z := c.model.MeasurementFromPoint(sc)
		if z < zMin {
			zMin = z
		}
		if z > zMax {
			zMax = z
		}
	}

	if zMin > dMax+c.cfg.TauMax+sigmaMax {
		return c.classifyFree(ref, statuses)
	}

	vs := varianceState(zMin, zMax, dMin, dMax, sigmaMax, gap)

	if ref.IsBlock {
		c.emitBlock(ref.Block, vs, projectsInside(statuses, c.model.ImageWidth(), c.model.ImageHeight()))
		return nil
	}

	diag := float64(edge) * c.res * sqrt3
	if diag <= 2*c.cfg.SigmaMin() {
		c.emitNode(ref.Node)
		return nil
	}

	if vs == Constant {
		return c.classifyFree(ref, statuses)
	}

	return c.subdivide(ref.Node)
}

// subdivide allocates every missing child of node (Morton order 0..7,
// §4.3's tie-break) and recurses into each.
func (c *carver) subdivide(parent octree.NodeID) error {
	refs, err := c.tree.AllocateAllChildren(parent)
	if err != nil {
		return errors.Wrap(err, "carve: subdivide")
	}
	for _, ref := range refs {
		corner, edge := c.geometry(ref)
		if err := c.visit(ref, corner, edge); err != nil {
			return err
		}
	}
	return nil
}

func (c *carver) geometry(ref octree.Ref) (corner [3]int32, edge int32) {
	if ref.IsBlock {
		b := c.tree.Pool().Block(ref.Block)
		return b.Corner(), b.Edge()
	}
	n := c.tree.Pool().Node(ref.Node)
	return n.Corner(), n.Edge()
}

func (c *carver) classifyFree(ref octree.Ref, statuses [8]sensor.Status) error {
	if ref.IsBlock {
		c.emitBlock(ref.Block, Constant, projectsInside(statuses, c.model.ImageWidth(), c.model.ImageHeight()))
		return nil
	}
	c.emitNode(ref.Node)
	return nil
}

func (c *carver) emitNode(id octree.NodeID) {
	c.result.NodeList = append(c.result.NodeList, id)
}

func (c *carver) emitBlock(id octree.BlockID, vs VarianceState, inside bool) {
	c.result.BlockList = append(c.result.BlockList, id)
	c.result.VarianceStateList = append(c.result.VarianceStateList, vs)
	c.result.ProjectsInsideList = append(c.result.ProjectsInsideList, inside)
}

// worldCorners returns the octant's eight world-space corners.
func (c *carver) worldCorners(corner [3]int32, edge int32) [8]r3.Vector {
	var out [8]r3.Vector
	for i := 0; i < 8; i++ {
		ox, oy, oz := int32(i&1)*edge, int32((i>>1)&1)*edge, int32((i>>2)&1)*edge
		out[i] = r3.Vector{
			X: float64(corner[0]+ox) * c.res,
			Y: float64(corner[1]+oy) * c.res,
			Z: float64(corner[2]+oz) * c.res,
		}
	}
	return out
}

// cameraInsideOctant reports whether the sensor's world position lies
// within the octant's world-space AABB.
func (c *carver) cameraInsideOctant(corner [3]int32, edge int32) bool {
	min := r3.Vector{X: float64(corner[0]) * c.res, Y: float64(corner[1]) * c.res, Z: float64(corner[2]) * c.res}
	max := r3.Vector{X: float64(corner[0]+edge) * c.res, Y: float64(corner[1]+edge) * c.res, Z: float64(corner[2]+edge) * c.res}
	p := c.cameraW
	return p.X >= min.X && p.X <= max.X && p.Y >= min.Y && p.Y <= max.Y && p.Z >= min.Z && p.Z <= max.Z
}

// pixelRect computes the axis-aligned pixel rectangle enclosing the
// non-Behind projections, clamped to the image. If every corner projects
// Behind the sensor (fully degenerate), the whole image is used
// conservatively.
func (c *carver) pixelRect(pixels [8]sensor.Pixel, statuses [8]sensor.Status, w, h int) pooling.Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	any := false
	for i, st := range statuses {
		if st == sensor.Behind {
			continue
		}
		any = true
		if pixels[i].X < minX {
			minX = pixels[i].X
		}
		if pixels[i].X > maxX {
			maxX = pixels[i].X
		}
		if pixels[i].Y < minY {
			minY = pixels[i].Y
		}
		if pixels[i].Y > maxY {
			maxY = pixels[i].Y
		}
	}
	if !any {
		return pooling.Rect{MinX: 0, MinY: 0, MaxX: w, MaxY: h}
	}
	rect := pooling.Rect{
		MinX: int(math.Floor(minX)),
		MinY: int(math.Floor(minY)),
		MaxX: int(math.Ceil(maxX)) + 1,
		MaxY: int(math.Ceil(maxY)) + 1,
	}
	if rect.MinX < 0 {
		rect.MinX = 0
	}
	if rect.MinY < 0 {
		rect.MinY = 0
	}
	if rect.MaxX > w {
		rect.MaxX = w
	}
	if rect.MaxY > h {
		rect.MaxY = h
	}
	return rect
}

// projectsInside reports whether every corner projects strictly inside
// the image, §4.3's projects_inside_list.
func projectsInside(statuses [8]sensor.Status, w, h int) bool {
	for _, st := range statuses {
		if st != sensor.Ok {
			return false
		}
	}
	return true
}

// varianceState implements §4.3 step 4.
func varianceState(zMin, zMax, dMin, dMax, sigmaMax float64, gap bool) VarianceState {
	if gap {
		return Undefined
	}
	threshold := 3 * sigmaMax
	if zMax < dMin-threshold || zMin > dMax+threshold {
		return Constant
	}
	return Gradient
}
