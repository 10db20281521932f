// Package spatial provides the minimal rigid-transform type the core
// needs for sensor-to-world and sensor-to-colour-camera poses (§6.2's
// T_WS, T_WV, T_CcC), grounded on the Pose/r3.Vector idioms visible
// across viamrobotics-rdk (spatialmath.NewPoseFromPoint,
// spatialmath.PoseAlmostEqual in pointcloud/collision_octree.go) but
// trimmed to a plain rotation-plus-translation struct: this core composes
// and inverts poses and transforms points, nothing more.
package spatial

import "github.com/golang/geo/r3"

// Isometry is a rigid transform: a rotation followed by a translation.
type Isometry struct {
	R [3][3]float64
	T r3.Vector
}

// Identity returns the identity transform.
func Identity() Isometry {
	iso := Isometry{}
	iso.R[0][0], iso.R[1][1], iso.R[2][2] = 1, 1, 1
	return iso
}

// NewFromPoint returns a pure-translation isometry, mirroring
// spatialmath.NewPoseFromPoint's role in the teacher.
func NewFromPoint(p r3.Vector) Isometry {
	iso := Identity()
	iso.T = p
	return iso
}

// Point returns the isometry's translation component.
func (iso Isometry) Point() r3.Vector { return iso.T }

// Transform applies the isometry to a point: R*p + T.
func (iso Isometry) Transform(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: iso.R[0][0]*p.X + iso.R[0][1]*p.Y + iso.R[0][2]*p.Z + iso.T.X,
		Y: iso.R[1][0]*p.X + iso.R[1][1]*p.Y + iso.R[1][2]*p.Z + iso.T.Y,
		Z: iso.R[2][0]*p.X + iso.R[2][1]*p.Y + iso.R[2][2]*p.Z + iso.T.Z,
	}
}

// TransformDirection applies only the rotation, for vectors (e.g. sensor
// ray directions) that should not pick up the translation.
func (iso Isometry) TransformDirection(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: iso.R[0][0]*v.X + iso.R[0][1]*v.Y + iso.R[0][2]*v.Z,
		Y: iso.R[1][0]*v.X + iso.R[1][1]*v.Y + iso.R[1][2]*v.Z,
		Z: iso.R[2][0]*v.X + iso.R[2][1]*v.Y + iso.R[2][2]*v.Z,
	}
}

// Inverse returns iso^-1: R^T, -R^T*T.
func (iso Isometry) Inverse() Isometry {
	var out Isometry
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.R[i][j] = iso.R[j][i]
		}
	}
	out.T = out.TransformDirection(iso.T).Mul(-1)
	return out
}

// Compose returns the isometry equivalent to applying iso first, then
// other: other * iso.
func (iso Isometry) Compose(other Isometry) Isometry {
	var out Isometry
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += other.R[i][k] * iso.R[k][j]
			}
			out.R[i][j] = sum
		}
	}
	out.T = other.Transform(iso.T)
	return out
}

// AlmostEqual reports whether two isometries are equal within eps on
// every component, mirroring spatialmath.PoseAlmostEqual's role in the
// teacher's collision-octree transform tests.
func (iso Isometry) AlmostEqual(other Isometry, eps float64) bool {
	if iso.T.Sub(other.T).Norm() > eps {
		return false
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d := iso.R[i][j] - other.R[i][j]
			if d > eps || d < -eps {
				return false
			}
		}
	}
	return true
}
