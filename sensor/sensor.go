// Package sensor defines the depth/colour sensor capability the core
// consumes (§6.1, §6.2). Projection math, camera/LiDAR calibration and
// image decoding are out of scope (§1); this package only states the
// interface external collaborators implement and the per-frame
// measurement bundle the carver and updater read from.
package sensor

import (
	"github.com/golang/geo/r3"

	"github.com/voxelcore/voxelcore/spatial"
)

// Status is the result of projecting a sensor-space point into the
// image, §6.1.
type Status int

const (
	// Ok means the point projects to a pixel inside the image.
	Ok Status = iota
	// Behind means the point is behind the sensor (beyond a measurement
	// axis sign flip, or before the near plane).
	Behind
	// OutOfImage means the point projects outside the image bounds.
	OutOfImage
)

// Pixel is an image-space coordinate; sub-pixel precision is kept for
// projection math. The updater turns a Pixel into image indices by
// rounding to the nearest integer; the carver's pixel rectangle floors
// its lower and ceils its upper bounds.
type Pixel struct {
	X, Y float64
}

// Model is the capability a calibrated depth sensor (pinhole camera or
// rotating LiDAR) must provide, §6.1. The core calls Model uniformly and
// has no code path specific to a concrete sensor type, including none
// for a LiDAR's cylindrical wrap-around.
type Model interface {
	// NearPlane / FarPlane bound valid measurement range, metres.
	NearPlane() float64
	FarPlane() float64

	// Project maps a sensor-frame point to a pixel and a status.
	Project(pointS r3.Vector) (Pixel, Status)

	// BackProject maps a pixel to a unit-length (or length-1-along-the-
	// measurement-axis) ray in sensor space.
	BackProject(px Pixel) r3.Vector

	// MeasurementFromPoint returns the sensor's measurement axis value
	// for a sensor-frame point: z for a pinhole camera, ||p|| for a
	// LiDAR.
	MeasurementFromPoint(pointS r3.Vector) float64

	// PointInFrustum / SphereInFrustum test visibility. SphereInFrustum
	// is used by the frustum-intersecting-blocks iterator (§4.7); the
	// carver's camera-inside-octant check (§4.3 step 2) uses its own
	// bounding-box test, and nothing in the core calls PointInFrustum.
	PointInFrustum(pointS r3.Vector) bool
	SphereInFrustum(centreS r3.Vector, radius float64) bool

	// ComputeIntegrationScale returns the scale at which the
	// back-projected pixel size of a block at blockCentreS stays within
	// the configured pixel-to-voxel ratio bounds, §4.4.3 step 1.
	ComputeIntegrationScale(blockCentreS r3.Vector, mapRes float64, lastScale, minScale, maxScale int) int

	// ImageWidth / ImageHeight report the dimensions this model expects,
	// used by the carver's depth-image-matches-sensor check (§4.3,
	// ConfigError).
	ImageWidth() int
	ImageHeight() int
}

// Image is a dense float32 raster, used for both the depth image and the
// per-pixel sigma image, §6.2. NaN (or a value < a sensor's near plane,
// for depth) denotes "no measurement".
type Image struct {
	Width, Height int
	Data          []float32
}

// NewImage allocates a zero-filled image.
func NewImage(w, h int) Image {
	return Image{Width: w, Height: h, Data: make([]float32, w*h)}
}

// At returns the value at (x,y); callers must pre-check bounds, matching
// the teacher's depth-map indexing convention (rimage.DepthMap.Get).
func (img Image) At(x, y int) float32 { return img.Data[y*img.Width+x] }

// Set stores a value at (x,y).
func (img *Image) Set(x, y int, v float32) { img.Data[y*img.Width+x] = v }

// RGB is a packed colour sample, used by the optional colour image.
type RGB struct{ R, G, B uint8 }

// ColourImage is a dense RGB raster.
type ColourImage struct {
	Width, Height int
	Data          []RGB
}

func (img ColourImage) At(x, y int) RGB { return img.Data[y*img.Width+x] }

// ColourFrame bundles the optional colour measurement, §6.2.
type ColourFrame struct {
	Image  ColourImage
	Sensor Model
	TWC    spatial.Isometry
}

// IdImage is a dense per-pixel identifier raster, aligned 1:1 with the
// depth image's pixel grid. §3.4/§4.4.3 require an "id.update(sample)"
// step but §6.2's measurement list does not name an id source; this is a
// SPEC_FULL supplement filling that gap with the natural analogue of the
// colour image.
type IdImage struct {
	Width, Height int
	Data          []uint16
}

func (img IdImage) At(x, y int) uint16 { return img.Data[y*img.Width+x] }

// Frame bundles one frame's full measurement set, §6.2.
type Frame struct {
	Depth      Image
	DepthSigma Image
	TWS        spatial.Isometry
	Timestamp  uint64
	Colour     *ColourFrame // nil when no colour measurement is configured
	Id         *IdImage     // nil when no identifier measurement is configured
}
