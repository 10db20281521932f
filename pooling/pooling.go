// Package pooling implements the dense pooling image (component D,
// §4.4): given a depth image, answer "what is the min/max depth within
// this axis-aligned pixel rectangle?" without visiting every pixel of
// the rectangle. The carver calls this once per visited octant.
//
// The bound comes from a min/max mip pyramid, the same shape as a
// GPU hierarchical-Z occlusion pyramid: level 0 is the original
// resolution, each level l+1 halves width and height by taking the
// min/max of each 2x2 cell block in level l. A query first picks the
// coarsest level whose cell size fits inside both sides of the
// rectangle, then combines every cell at that level that overlaps it: at
// most three along the shorter side, and proportionally more along the
// longer side of an elongated rectangle. The query cost therefore grows
// with the rectangle's aspect ratio, not with its area; it is constant
// only for rectangles of bounded aspect ratio. Building the pyramid is
// O(image size) precomputation done once per frame.
package pooling

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/voxelcore/voxelcore/sensor"
)

// noHit marks a pyramid cell where every contributing pixel was
// "no measurement" (NaN or below the sensor's near plane).
const noHit = math.MaxFloat32

type level struct {
	width, height int
	min, max      []float32
	// anyMiss marks cells whose subtree contains at least one no-hit
	// pixel, used by Query's gap signal for variance_state == Undefined
	// (§4.3 step 4).
	anyMiss []bool
}

// Image is a precomputed min/max pyramid over one frame's depth image.
type Image struct {
	levels []level
}

// Build constructs the pyramid from a depth image. near is the sensor's
// near plane; depth values below it are treated as "no measurement",
// matching §6.2 ("< near_plane or NaN denotes no measurement").
func Build(depth sensor.Image, near float64) *Image {
	w, h := depth.Width, depth.Height
	l0 := level{width: w, height: h, min: make([]float32, w*h), max: make([]float32, w*h), anyMiss: make([]bool, w*h)}
	for i, d := range depth.Data {
		if math.IsNaN(float64(d)) || float64(d) < near {
			l0.min[i] = noHit
			l0.max[i] = -noHit
			l0.anyMiss[i] = true
			continue
		}
		l0.min[i] = d
		l0.max[i] = d
	}
	img := &Image{levels: []level{l0}}
	for prev := l0; prev.width > 1 || prev.height > 1; {
		nw, nh := (prev.width+1)/2, (prev.height+1)/2
		next := level{width: nw, height: nh, min: make([]float32, nw*nh), max: make([]float32, nw*nh), anyMiss: make([]bool, nw*nh)}
		for y := 0; y < nh; y++ {
			for x := 0; x < nw; x++ {
				mn, mx := float32(noHit), float32(-noHit)
				miss := false
				for dy := 0; dy < 2; dy++ {
					for dx := 0; dx < 2; dx++ {
						sx, sy := x*2+dx, y*2+dy
						if sx >= prev.width || sy >= prev.height {
							miss = true
							continue
						}
						idx := sy*prev.width + sx
						if prev.min[idx] < mn {
							mn = prev.min[idx]
						}
						if prev.max[idx] > mx {
							mx = prev.max[idx]
						}
						if prev.anyMiss[idx] {
							miss = true
						}
					}
				}
				next.min[y*nw+x] = mn
				next.max[y*nw+x] = mx
				next.anyMiss[y*nw+x] = miss
			}
		}
		img.levels = append(img.levels, next)
		prev = next
	}
	return img
}

// Rect is an axis-aligned, half-open pixel rectangle [MinX,MaxX) x
// [MinY,MaxY).
type Rect struct {
	MinX, MinY, MaxX, MaxY int
}

// Query returns the min/max depth over rect, whether at least one pixel
// in rect had a measurement, and whether rect contains a mix of hit and
// no-hit pixels (a "gap", feeding variance_state == Undefined, §4.3 step
// 4). When no pixel in rect had a measurement, hit is false and gap is
// true. An empty or degenerate rect reports hit=false and gap=false.
func (img *Image) Query(rect Rect) (dMin, dMax float64, hit bool, gap bool) {
	rect = img.clamp(rect)
	if rect.MaxX <= rect.MinX || rect.MaxY <= rect.MinY {
		return 0, 0, false, false
	}

	cellW, cellH := rect.MaxX-rect.MinX, rect.MaxY-rect.MinY
	l := 0
	for l+1 < len(img.levels) {
		next := img.levels[l+1]
		if next.width == 0 || next.height == 0 {
			break
		}
		cellSizeX := (1 << uint(l+1))
		cellSizeY := (1 << uint(l+1))
		if cellSizeX > cellW || cellSizeY > cellH {
			break
		}
		l++
	}

	lvl := img.levels[l]
	scale := 1 << uint(l)
	x0, y0 := rect.MinX/scale, rect.MinY/scale
	x1, y1 := (rect.MaxX-1)/scale, (rect.MaxY-1)/scale
	if x1 >= lvl.width {
		x1 = lvl.width - 1
	}
	if y1 >= lvl.height {
		y1 = lvl.height - 1
	}

	// anyMiss is tracked per pyramid cell, not per pixel: once some pixel
	// had a measurement, gap is reported when any selected cell contains
	// a no-hit pixel. Selected cells can reach past rect's edges, and the
	// padding beyond an odd-sized level counts as no-hit, so the signal
	// can over-report but never misses a no-hit pixel inside rect, which
	// is what the conservative Undefined classification needs.
	mn, mx := float32(noHit), float32(-noHit)
	anyMiss := false
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			idx := y*lvl.width + x
			if lvl.min[idx] < mn {
				mn = lvl.min[idx]
			}
			if lvl.max[idx] > mx {
				mx = lvl.max[idx]
			}
			if lvl.anyMiss[idx] {
				anyMiss = true
			}
		}
	}
	if mn == noHit && mx == -noHit {
		return 0, 0, false, anyMiss
	}
	return float64(mn), float64(mx), true, anyMiss
}

func (img *Image) clamp(r Rect) Rect {
	base := img.levels[0]
	if r.MinX < 0 {
		r.MinX = 0
	}
	if r.MinY < 0 {
		r.MinY = 0
	}
	if r.MaxX > base.width {
		r.MaxX = base.width
	}
	if r.MaxY > base.height {
		r.MaxY = base.height
	}
	return r
}

// SigmaStats scans the sigma image directly over rect (no pyramid: only
// the depth min/max query needs to be O(1) per §4.4) and returns the
// mean (via gonum/stat.Mean, weighting every pixel equally) and max
// sigma. hit is false if rect contains no pixels.
func SigmaStats(sigma sensor.Image, rect Rect) (mean, max float64, hit bool) {
	if rect.MinX < 0 {
		rect.MinX = 0
	}
	if rect.MinY < 0 {
		rect.MinY = 0
	}
	if rect.MaxX > sigma.Width {
		rect.MaxX = sigma.Width
	}
	if rect.MaxY > sigma.Height {
		rect.MaxY = sigma.Height
	}
	if rect.MaxX <= rect.MinX || rect.MaxY <= rect.MinY {
		return 0, 0, false
	}
	values := make([]float64, 0, (rect.MaxX-rect.MinX)*(rect.MaxY-rect.MinY))
	for y := rect.MinY; y < rect.MaxY; y++ {
		for x := rect.MinX; x < rect.MaxX; x++ {
			v := float64(sigma.At(x, y))
			values = append(values, v)
			if v > max {
				max = v
			}
		}
	}
	if len(values) == 0 {
		return 0, 0, false
	}
	return stat.Mean(values, nil), max, true
}
