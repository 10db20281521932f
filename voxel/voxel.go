// Package voxel defines the per-voxel data facets stored in a block
// (§3.4): the field (TSDF or occupancy), colour, and identifier. Each
// facet is independently optional per map configuration.
//
// The field facet is a single tagged struct, Field, rather than two
// separate TSDF/Occupancy types: spec §9 describes the field model as "a
// sum type tagged once per map" — the tag (config.FieldModel) lives on
// the Map and its blocks, not on every voxel, so a bare Field carries
// only the raw scaled value, the weight, and the observed bit, and every
// caller that needs model-specific meaning goes through the Field
// methods below with the block's model in hand.
package voxel

// TSDFScale is the integer scale factor mapping the float range [-1, 1]
// to a Field's Raw domain when the owning block's model is TSDF.
const TSDFScale = 1 << 20

// Field is one voxel's field-facet record, shared by both fusion models
// (§3.4). Interpretation of Raw depends on the owning block's
// config.FieldModel: TSDF stores a pre-scaled signed distance in
// [-TSDFScale, TSDFScale]; Occupancy stores a log-odds value directly.
type Field struct {
	Raw      int32
	Weight   uint32
	Observed bool
}

// Valid reports whether this voxel has ever been integrated, §3.4:
// "valid ⇔ weight > 0" for both models.
func (f Field) Valid() bool { return f.Weight > 0 }

// TSDFValue returns the signed distance in [-1, 1]. Only meaningful when
// the owning block's model is TSDF.
func (f Field) TSDFValue() float64 { return float64(f.Raw) / float64(TSDFScale) }

// FromTSDFValue returns the Raw encoding of a signed distance in [-1, 1],
// clamping defensively.
func FromTSDFValue(v float64) int32 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int32(v * float64(TSDFScale))
}

// InsideSurfaceTSDF reports tsdf < 0, §3.4, for TSDF-model blocks.
func (f Field) InsideSurfaceTSDF() bool { return f.Raw < 0 }

// InsideSurfaceOccupancy reports log_odds * weight > 0, §3.4, for
// Occupancy-model blocks.
func (f Field) InsideSurfaceOccupancy() bool {
	return int64(f.Raw)*int64(f.Weight) > 0
}

// Colour holds the optional colour facet, §3.4. Updated only when the
// field facet was updated in the same voxel in the same call.
type Colour struct {
	R, G, B uint8
	Weight  uint32
}

// Update blends sample into the running colour average, capping Weight at
// maxWeight, mirroring the field weight-accumulation rule.
func (c *Colour) Update(r, g, b uint8, maxWeight uint32) {
	if c.Weight == 0 {
		c.R, c.G, c.B = r, g, b
		c.Weight = 1
		return
	}
	w := float64(c.Weight)
	c.R = uint8((float64(c.R)*w + float64(r)) / (w + 1))
	c.G = uint8((float64(c.G)*w + float64(g)) / (w + 1))
	c.B = uint8((float64(c.B)*w + float64(b)) / (w + 1))
	if c.Weight < maxWeight {
		c.Weight++
	}
}

// Id holds the optional 16-bit identifier facet, §3.4. 0 means
// "no identifier", 0xFFFF means "not mapped". Sticky: once non-zero it is
// never overwritten by a zero input.
type Id struct {
	Value uint16
}

// NotMappedId is the sentinel identifier value meaning "not mapped".
const NotMappedId uint16 = 0xFFFF

// Update applies the sticky-nonzero rule from §3.4.
func (id *Id) Update(sample uint16) {
	if id.Value != 0 {
		return
	}
	id.Value = sample
}
