// Package config holds the constructor-validated configuration structs
// consumed by the octree, carver, updater and visitor. There is
// deliberately no YAML/flag loading here (out of scope, §1); callers
// build a Map by hand or via whatever external config layer they use and
// pass it to constructors, per spec §9 "Global state: None".
package config

import "github.com/voxelcore/voxelcore/voxerr"

// FieldModel selects the fusion model a Map uses, §3.4.
type FieldModel int

const (
	// TSDF is the signed-distance fusion model.
	TSDF FieldModel = iota
	// Occupancy is the log-odds fusion model.
	Occupancy
)

// Map is the map-wide configuration: block edge, octree side, metric
// resolution and the per-field thresholds derived from it (§4.3 "Config
// derived from the map").
type Map struct {
	// Model selects TSDF or Occupancy fusion.
	Model FieldModel

	// BlockEdge is B, the block edge length in voxels. Must be a power of
	// two, §3.1.
	BlockEdge int

	// RequestedSideVoxels is the caller's requested octree side length in
	// voxels; the octree rounds it up to the smallest power of two that is
	// both >= RequestedSideVoxels and >= 2*BlockEdge, §3.1.
	RequestedSideVoxels int

	// Resolution is metres per voxel ("res" in §4.3).
	Resolution float64

	// SigmaMinFactor / SigmaMaxFactor scale Resolution into the carver's
	// sigma_min / sigma_max thresholds, §4.3.
	SigmaMinFactor, SigmaMaxFactor float64

	// TauMin / TauMax bound compute_tau's surface-thickness band, §4.4.3.
	TauMin, TauMax float64

	// MaxWeight caps the per-voxel integration weight, §3.4.
	MaxWeight uint32

	// FieldMin / FieldMax bound the stored field value (TSDF: [-1,1] scaled
	// to an integer range; Occupancy: log-odds range), §3.4, §4.4.3 step 5.
	FieldMin, FieldMax int32

	// LogOddMin / LogOddMax are the occupancy per-update increments applied
	// on hit/miss, §4.4.3 step 4. Unused for TSDF maps.
	LogOddMin, LogOddMax int32

	// PixelToVoxelRatioMin / Max bound compute_integration_scale's choice of
	// scale so the back-projected pixel size stays within range, §4.4.3
	// step 1. Must be ascending (Min < Max).
	PixelToVoxelRatioMin, PixelToVoxelRatioMax float64

	// FsIntegrScale is the coarse scale used for free space integration
	// when a block is fresh or already saturated free, §4.4.3 step 1.
	FsIntegrScale int

	// MaxScale bounds how coarse a block's current_scale may grow, §4.4.3
	// step 1's max_allowed.
	MaxScale int

	// MinSwitchIntegrCount and MinSwitchCoverage are the switch_data
	// thresholds from §4.5: buffer_integr_count >= MinSwitchIntegrCount and
	// buffer coverage >= MinSwitchCoverage * current coverage.
	MinSwitchIntegrCount int
	MinSwitchCoverage    float64

	// HasColour / HasID enable the optional colour and identifier facets,
	// §3.4.
	HasColour bool
	HasID     bool
}

// Validate checks every invariant spec §7 assigns to ConfigError. It does
// not check sensor/image agreement; that is checked per-frame by the
// carver once it has an actual depth image in hand.
func (m Map) Validate() error {
	if m.Resolution <= 0 {
		return voxerr.NewConfigError("resolution must be > 0, got %v", m.Resolution)
	}
	if m.BlockEdge <= 0 || !isPowerOfTwo(m.BlockEdge) {
		return voxerr.NewConfigError("block edge %d must be a power of two", m.BlockEdge)
	}
	if m.RequestedSideVoxels <= 0 {
		return voxerr.NewConfigError("requested side %d must be > 0", m.RequestedSideVoxels)
	}
	if m.PixelToVoxelRatioMin >= m.PixelToVoxelRatioMax {
		return voxerr.NewConfigError(
			"pixel-to-voxel ratio bounds must be ascending, got [%v, %v]",
			m.PixelToVoxelRatioMin, m.PixelToVoxelRatioMax)
	}
	if m.TauMin > m.TauMax {
		return voxerr.NewConfigError("tau bounds must be ascending, got [%v, %v]", m.TauMin, m.TauMax)
	}
	if m.SigmaMinFactor > m.SigmaMaxFactor {
		return voxerr.NewConfigError(
			"sigma factor bounds must be ascending, got [%v, %v]", m.SigmaMinFactor, m.SigmaMaxFactor)
	}
	if m.FieldMin >= m.FieldMax {
		return voxerr.NewConfigError("field bounds must be ascending, got [%v, %v]", m.FieldMin, m.FieldMax)
	}
	if m.MaxScale < 0 {
		return voxerr.NewConfigError("max scale must be >= 0, got %d", m.MaxScale)
	}
	if m.FsIntegrScale < 0 || m.FsIntegrScale > m.MaxScale {
		return voxerr.NewConfigError("free-space integration scale %d out of [0, %d]", m.FsIntegrScale, m.MaxScale)
	}
	return nil
}

// SigmaMin returns sigma_min_factor * resolution, §4.3.
func (m Map) SigmaMin() float64 { return m.SigmaMinFactor * m.Resolution }

// SigmaMax returns sigma_max_factor * resolution, §4.3.
func (m Map) SigmaMax() float64 { return m.SigmaMaxFactor * m.Resolution }

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// SideVoxels returns the octree's actual side length: the smallest power
// of two >= RequestedSideVoxels and >= 2*BlockEdge, §3.1.
func (m Map) SideVoxels() int {
	n := 1
	for n < m.RequestedSideVoxels || n < 2*m.BlockEdge {
		n <<= 1
	}
	return n
}
