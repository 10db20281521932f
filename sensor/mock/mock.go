// Package mock provides a trivial pinhole-like sensor.Model used only by
// this module's own tests (carve, fusion, iterator). It is not a
// real calibrated camera model — actual projection math is out of scope
// (§1) and is expected to come from an external collaborator.
package mock

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/voxelcore/voxelcore/sensor"
)

// Pinhole is a minimal rectangular-image sensor model: a standard pinhole
// projection with no distortion.
type Pinhole struct {
	Width, Height int
	Fx, Fy        float64
	Cx, Cy        float64
	Near, Far     float64
	// PixelRatioMin/Max and the scale bounds drive ComputeIntegrationScale.
	PixelRatioMin, PixelRatioMax float64
}

var _ sensor.Model = Pinhole{}

func (p Pinhole) NearPlane() float64 { return p.Near }
func (p Pinhole) FarPlane() float64  { return p.Far }
func (p Pinhole) ImageWidth() int    { return p.Width }
func (p Pinhole) ImageHeight() int   { return p.Height }

func (p Pinhole) Project(pt r3.Vector) (sensor.Pixel, sensor.Status) {
	if pt.Z <= 0 {
		return sensor.Pixel{}, sensor.Behind
	}
	u := p.Fx*pt.X/pt.Z + p.Cx
	v := p.Fy*pt.Y/pt.Z + p.Cy
	if u < 0 || u >= float64(p.Width) || v < 0 || v >= float64(p.Height) {
		return sensor.Pixel{X: u, Y: v}, sensor.OutOfImage
	}
	return sensor.Pixel{X: u, Y: v}, sensor.Ok
}

func (p Pinhole) BackProject(px sensor.Pixel) r3.Vector {
	x := (px.X - p.Cx) / p.Fx
	y := (px.Y - p.Cy) / p.Fy
	return r3.Vector{X: x, Y: y, Z: 1}
}

func (p Pinhole) MeasurementFromPoint(pt r3.Vector) float64 { return pt.Z }

func (p Pinhole) PointInFrustum(pt r3.Vector) bool {
	if pt.Z < p.Near || pt.Z > p.Far {
		return false
	}
	_, status := p.Project(pt)
	return status == sensor.Ok
}

func (p Pinhole) SphereInFrustum(centre r3.Vector, radius float64) bool {
	if centre.Z+radius < p.Near || centre.Z-radius > p.Far {
		return false
	}
	// Conservative test: project the centre and pad the image bounds by
	// the back-projected radius at the centre's depth.
	if centre.Z <= 0 {
		return true
	}
	padX := p.Fx * radius / centre.Z
	padY := p.Fy * radius / centre.Z
	u := p.Fx*centre.X/centre.Z + p.Cx
	v := p.Fy*centre.Y/centre.Z + p.Cy
	return u >= -padX && u < float64(p.Width)+padX && v >= -padY && v < float64(p.Height)+padY
}

func (p Pinhole) ComputeIntegrationScale(blockCentre r3.Vector, mapRes float64, lastScale, minScale, maxScale int) int {
	depth := blockCentre.Z
	if depth <= 0 {
		depth = p.Near
	}
	// Average focal length in pixels/metre at unit depth.
	f := (p.Fx + p.Fy) / 2
	for s := minScale; s <= maxScale; s++ {
		voxelSize := mapRes * float64(int(1)<<uint(s))
		backprojectedPixels := f * voxelSize / depth
		if backprojectedPixels >= p.PixelRatioMin && backprojectedPixels <= p.PixelRatioMax {
			return s
		}
	}
	return maxScale
}

// LiDAR is a minimal cylindrical sensor model: azimuth/elevation
// projection with horizontal wrap-around, grounded on §6.1's mention of
// "cylindrical, with horizontal wrap-around and elevation clamping."
type LiDAR struct {
	Width, Height           int
	AzimuthRes, ElevMin, ElevRes float64
	Near, Far               float64
	PixelRatioMin, PixelRatioMax float64
}

var _ sensor.Model = LiDAR{}

func (l LiDAR) NearPlane() float64 { return l.Near }
func (l LiDAR) FarPlane() float64  { return l.Far }
func (l LiDAR) ImageWidth() int    { return l.Width }
func (l LiDAR) ImageHeight() int   { return l.Height }

func (l LiDAR) Project(pt r3.Vector) (sensor.Pixel, sensor.Status) {
	r := pt.Norm()
	if r < 1e-9 {
		return sensor.Pixel{}, sensor.Behind
	}
	azimuth := math.Atan2(pt.Y, pt.X) // (-pi, pi]
	elevation := math.Asin(pt.Z / r)

	u := wrapAzimuth(azimuth) / l.AzimuthRes
	v := (elevation - l.ElevMin) / l.ElevRes
	if v < 0 || v >= float64(l.Height) {
		return sensor.Pixel{X: u, Y: v}, sensor.OutOfImage
	}
	// u always wraps into [0, Width) by construction; no OutOfImage case
	// on the horizontal axis.
	return sensor.Pixel{X: math.Mod(u, float64(l.Width)), Y: v}, sensor.Ok
}

// wrapAzimuth maps an azimuth in (-pi, pi] to [0, 2*pi).
func wrapAzimuth(a float64) float64 {
	const twoPi = 2 * math.Pi
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	return a
}

func (l LiDAR) BackProject(px sensor.Pixel) r3.Vector {
	azimuth := px.X * l.AzimuthRes
	elevation := l.ElevMin + px.Y*l.ElevRes
	return r3.Vector{
		X: math.Cos(elevation) * math.Cos(azimuth),
		Y: math.Cos(elevation) * math.Sin(azimuth),
		Z: math.Sin(elevation),
	}
}

func (l LiDAR) MeasurementFromPoint(pt r3.Vector) float64 { return pt.Norm() }

func (l LiDAR) PointInFrustum(pt r3.Vector) bool {
	r := pt.Norm()
	if r < l.Near || r > l.Far {
		return false
	}
	_, status := l.Project(pt)
	return status == sensor.Ok
}

func (l LiDAR) SphereInFrustum(centre r3.Vector, radius float64) bool {
	r := centre.Norm()
	return r+radius >= l.Near && r-radius <= l.Far
}

func (l LiDAR) ComputeIntegrationScale(blockCentre r3.Vector, mapRes float64, lastScale, minScale, maxScale int) int {
	depth := blockCentre.Norm()
	if depth <= 0 {
		depth = l.Near
	}
	angularRes := l.AzimuthRes
	for s := minScale; s <= maxScale; s++ {
		voxelSize := mapRes * float64(int(1)<<uint(s))
		backprojectedPixels := voxelSize / (depth * angularRes)
		if backprojectedPixels >= l.PixelRatioMin && backprojectedPixels <= l.PixelRatioMax {
			return s
		}
	}
	return maxScale
}
