package fusion

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/voxelcore/voxelcore/carve"
	"github.com/voxelcore/voxelcore/config"
	"github.com/voxelcore/voxelcore/logging"
	"github.com/voxelcore/voxelcore/octree"
	"github.com/voxelcore/voxelcore/sensor"
	"github.com/voxelcore/voxelcore/spatial"
	"github.com/voxelcore/voxelcore/voxel"
)

// updateBlock implements UPDATE-BLOCK / FREE-BLOCK, §4.4.3. variance_state
// == carve.Constant takes the bulk free-space path (step 4's "free branch
// of step 4 only": no per-voxel projection, sensor or frame are only used
// for scale selection); otherwise every voxel is projected individually.
func updateBlock(tree *octree.Octree, id octree.BlockID, vs carve.VarianceState, projectsInside bool, frame sensor.Frame, model sensor.Model, sWT spatial.Isometry, cfg config.Map, logger logging.Logger) error {
	blk := tree.Pool().Block(id)

	lastScale := 0
	if !blk.Fresh() {
		lastScale = blk.CurrentScale()
	}

	centreWorld := blockCentreWorld(blk, cfg.Resolution)
	centreSensor := sWT.Transform(centreWorld)
	computedScale := model.ComputeIntegrationScale(centreSensor, cfg.Resolution, lastScale, 0, cfg.MaxScale)

	wellBelowMin := false
	if !blk.Fresh() {
		if _, maxAgg, ok := blk.ReduceCurrentScale(); ok {
			wellBelowMin = float64(maxAgg) <= 0.95*float64(cfg.FieldMin)
		}
	}

	minAllowed := lastScale - 1
	if vs == carve.Constant && (blk.Fresh() || wellBelowMin) {
		minAllowed = cfg.FsIntegrScale
	} else if minAllowed < 0 {
		minAllowed = 0
	}

	maxAllowed := lastScale + 1
	if blk.Fresh() {
		maxAllowed = blk.MaxLevel()
	} else if maxAllowed > cfg.MaxScale {
		maxAllowed = cfg.MaxScale
	}

	recommended := clampInt(computedScale, minAllowed, maxAllowed)

	switch {
	case blk.Fresh():
		blk.InitAtScale(recommended, cfg.HasColour, cfg.HasID, voxel.Field{})
		blk.ResetBuffer()
		integrateMain(blk, recommended, vs, frame, model, sWT, cfg, logger)

	case recommended != lastScale:
		if !blk.BufferActive() || blk.BufferScale() != recommended {
			blk.InitBuffer(recommended, cfg.HasColour, cfg.HasID)
			if recommended < lastScale {
				seedBufferFromCurrent(blk, recommended, lastScale)
			}
		}
		integrateBuffer(blk, vs, frame, model, sWT, cfg, logger)
		if blk.SwitchData(cfg.MinSwitchIntegrCount, cfg.MinSwitchCoverage, cfg.HasColour, cfg.HasID) {
			return nil
		}
		if logger != nil {
			logger.Debugf("fusion: scale switch to %d not ready for block at %v, retrying at current scale %d",
				recommended, blk.Corner(), lastScale)
		}
		integrateMain(blk, lastScale, vs, frame, model, sWT, cfg, logger)

	default:
		integrateMain(blk, lastScale, vs, frame, model, sWT, cfg, logger)
	}
	return nil
}

// seedBufferFromCurrent initialises each buffer voxel from its covering
// parent voxel at the block's current (coarser) scale, with the observed
// bit cleared so counting restarts, §4.4.3 step 3.
func seedBufferFromCurrent(blk *octree.Block, bufferScale, currentScale int) {
	side := blk.SideAt(bufferScale)
	ratio := 1 << uint(currentScale-bufferScale)
	for lz := 0; lz < side; lz++ {
		for ly := 0; ly < side; ly++ {
			for lx := 0; lx < side; lx++ {
				v, ok := blk.CellAt(lx/ratio, ly/ratio, lz/ratio, currentScale)
				if !ok {
					continue
				}
				v.Observed = false
				blk.SetBufferCellAt(lx, ly, lz, v)
			}
		}
	}
}

func blockCentreWorld(blk *octree.Block, res float64) r3.Vector {
	corner := blk.Corner()
	half := float64(blk.Edge()) / 2
	return r3.Vector{
		X: (float64(corner[0]) + half) * res,
		Y: (float64(corner[1]) + half) * res,
		Z: (float64(corner[2]) + half) * res,
	}
}

// integrateMain integrates the frame into the block's main data at scale
// s, §4.4.3 step 4.
func integrateMain(blk *octree.Block, s int, vs carve.VarianceState, frame sensor.Frame, model sensor.Model, sWT spatial.Isometry, cfg config.Map, logger logging.Logger) {
	blk.IncrementIntegr()
	side := blk.SideAt(s)
	for lz := 0; lz < side; lz++ {
		for ly := 0; ly < side; ly++ {
			for lx := 0; lx < side; lx++ {
				field, ok := blk.CellAt(lx, ly, lz, s)
				if !ok {
					continue
				}
				updated, changed := updateVoxel(blk, lx, ly, lz, s, field, vs, frame, model, sWT, cfg, false, logger)
				if !changed {
					continue
				}
				blk.MarkObserved(field.Observed)
				blk.SetCellAt(lx, ly, lz, s, updated)
			}
		}
	}
}

// integrateBuffer is integrateMain's buffer-scale counterpart, §4.4.3
// step 3.
func integrateBuffer(blk *octree.Block, vs carve.VarianceState, frame sensor.Frame, model sensor.Model, sWT spatial.Isometry, cfg config.Map, logger logging.Logger) {
	blk.IncrementBufferIntegr()
	side := blk.BufferSideAt()
	s := blk.BufferScale()
	for lz := 0; lz < side; lz++ {
		for ly := 0; ly < side; ly++ {
			for lx := 0; lx < side; lx++ {
				field := blk.BufferCellAt(lx, ly, lz)
				updated, changed := updateVoxel(blk, lx, ly, lz, s, field, vs, frame, model, sWT, cfg, true, logger)
				if !changed {
					continue
				}
				blk.MarkBufferObserved(field.Observed)
				blk.SetBufferCellAt(lx, ly, lz, updated)
			}
		}
	}
}

// updateVoxel implements §4.4.3's per-voxel update rule, both the
// bulk-free branch (variance_state == Constant) and the general
// projected branch. It returns the updated field and whether anything
// changed (false means "skip", per the rule's own skip conditions).
func updateVoxel(blk *octree.Block, lx, ly, lz, s int, field voxel.Field, vs carve.VarianceState, frame sensor.Frame, model sensor.Model, sWT spatial.Isometry, cfg config.Map, buffer bool, logger logging.Logger) (voxel.Field, bool) {
	if vs == carve.Constant {
		field.Raw = clampInt32(addLogOdds(field.Raw, cfg.LogOddMax), cfg.FieldMin, cfg.FieldMax)
		field.Weight = capWeight(field.Weight+1, cfg.MaxWeight)
		field.Observed = true
		return field, true
	}

	global := blk.GlobalCoord(lx, ly, lz, s)
	cellEdge := float64(int(1) << uint(s))
	pointWorld := r3.Vector{
		X: (float64(global[0]) + cellEdge/2) * cfg.Resolution,
		Y: (float64(global[1]) + cellEdge/2) * cfg.Resolution,
		Z: (float64(global[2]) + cellEdge/2) * cfg.Resolution,
	}
	pointSensor := sWT.Transform(pointWorld)

	px, status := model.Project(pointSensor)
	if status != sensor.Ok {
		return field, false
	}
	ix, iy := int(math.Round(px.X)), int(math.Round(px.Y))
	if ix < 0 || ix >= frame.Depth.Width || iy < 0 || iy >= frame.Depth.Height {
		return field, false
	}
	d := float64(frame.Depth.At(ix, iy))
	if math.IsNaN(d) || d < model.NearPlane() {
		return field, false
	}

	measurement := model.MeasurementFromPoint(pointSensor)
	rho := measurement - d
	tau := computeTau(d, model.FarPlane(), cfg.TauMin, cfg.TauMax)
	threeSigma := 3 * float64(frame.DepthSigma.At(ix, iy))

	var logOddUpdate float64
	switch {
	case rho < -threeSigma:
		logOddUpdate = float64(cfg.LogOddMax)
	case math.Abs(rho) <= tau/2:
		logOddUpdate = float64(cfg.LogOddMin)
	case rho >= -threeSigma && rho < -tau/2:
		t := (rho + threeSigma) / (threeSigma - tau/2)
		logOddUpdate = float64(cfg.LogOddMax) + t*float64(cfg.LogOddMin-cfg.LogOddMax)
	default:
		return field, false // behind the surface
	}

	field.Raw = clampInt32(addLogOdds(field.Raw, int32(logOddUpdate)), cfg.FieldMin, cfg.FieldMax)
	field.Weight = capWeight(field.Weight+1, cfg.MaxWeight)
	field.Observed = true

	if cfg.HasColour && frame.Colour != nil && d <= model.FarPlane() {
		updateColour(blk, lx, ly, lz, s, frame, model, sWT, pointSensor, px, cfg, buffer, logger)
	}
	if cfg.HasID && frame.Id != nil {
		updateId(blk, lx, ly, lz, s, frame.Id.At(ix, iy), buffer)
	}

	return field, true
}

// computeTau implements §4.4.3's compute_tau: the surface-thickness band
// grows linearly with range between τ_min (near) and τ_max (far), per
// DESIGN.md's Open Question decision 7 (the spec names the signature but
// not the formula).
func computeTau(d, farPlane, tauMin, tauMax float64) float64 {
	if farPlane <= 0 {
		return tauMin
	}
	t := d / farPlane
	if t > 1 {
		t = 1
	}
	return tauMin + (tauMax-tauMin)*t
}

func updateColour(blk *octree.Block, lx, ly, lz, s int, frame sensor.Frame, model sensor.Model, sWT spatial.Isometry, pointSensor r3.Vector, px sensor.Pixel, cfg config.Map, buffer bool, logger logging.Logger) {
	ray := model.BackProject(px)
	reconstructed := ray.Mul(model.MeasurementFromPoint(pointSensor))
	pointWorld := frame.TWS.Transform(reconstructed)
	pointCc := frame.Colour.TWC.Inverse().Transform(pointWorld)
	pxC, status := frame.Colour.Sensor.Project(pointCc)
	if status != sensor.Ok {
		if logger != nil {
			logger.Debugf("fusion: skipping colour re-projection for voxel %d,%d,%d at scale %d, status %v", lx, ly, lz, s, status)
		}
		return
	}
	ix, iy := int(math.Round(pxC.X)), int(math.Round(pxC.Y))
	img := frame.Colour.Image
	if ix < 0 || ix >= img.Width || iy < 0 || iy >= img.Height {
		if logger != nil {
			logger.Debugf("fusion: skipping colour re-projection for voxel %d,%d,%d at scale %d, pixel %d,%d out of image bounds", lx, ly, lz, s, ix, iy)
		}
		return
	}
	sample := img.At(ix, iy)

	var c voxel.Colour
	var ok bool
	if buffer {
		c, ok = blk.BufferColourAt(lx, ly, lz)
	} else {
		c, ok = blk.ColourAt(lx, ly, lz, s)
	}
	if !ok {
		c = voxel.Colour{}
	}
	c.Update(sample.R, sample.G, sample.B, cfg.MaxWeight)
	if buffer {
		blk.SetBufferColourAt(lx, ly, lz, c)
	} else {
		blk.SetColourAt(lx, ly, lz, s, c)
	}
}

func updateId(blk *octree.Block, lx, ly, lz, s int, sample uint16, buffer bool) {
	var id voxel.Id
	var ok bool
	if buffer {
		id, ok = blk.BufferIdAt(lx, ly, lz)
	} else {
		id, ok = blk.IdAt(lx, ly, lz, s)
	}
	if !ok {
		id = voxel.Id{}
	}
	id.Update(sample)
	if buffer {
		blk.SetBufferIdAt(lx, ly, lz, id)
	} else {
		blk.SetIdAt(lx, ly, lz, s, id)
	}
}

func addLogOdds(raw, delta int32) int64 { return int64(raw) + int64(delta) }

func clampInt32(v int64, min, max int32) int32 {
	if v < int64(min) {
		return min
	}
	if v > int64(max) {
		return max
	}
	return int32(v)
}

func capWeight(w, max uint32) uint32 {
	if w > max {
		return max
	}
	return w
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
