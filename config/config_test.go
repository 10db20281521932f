package config

import (
	"testing"

	"go.viam.com/test"

	"github.com/voxelcore/voxelcore/voxerr"
)

func validMap() Map {
	return Map{
		Model:                 Occupancy,
		BlockEdge:             8,
		RequestedSideVoxels:   256,
		Resolution:            0.1,
		SigmaMinFactor:        1,
		SigmaMaxFactor:        4,
		TauMin:                0.05,
		TauMax:                0.2,
		MaxWeight:             32,
		FieldMin:              -128,
		FieldMax:              128,
		LogOddMin:             1,
		LogOddMax:             5,
		PixelToVoxelRatioMin:  1,
		PixelToVoxelRatioMax:  4,
		FsIntegrScale:         1,
		MaxScale:              3,
		MinSwitchIntegrCount:  20,
		MinSwitchCoverage:     0.9,
	}
}

func TestValidateAccepts(t *testing.T) {
	test.That(t, validMap().Validate(), test.ShouldBeNil)
}

func TestValidateRejectsBadResolution(t *testing.T) {
	m := validMap()
	m.Resolution = 0
	err := m.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, voxerr.IsKind(err, voxerr.KindConfig), test.ShouldBeTrue)
}

func TestValidateRejectsNonPowerOfTwoBlockEdge(t *testing.T) {
	m := validMap()
	m.BlockEdge = 6
	test.That(t, m.Validate(), test.ShouldNotBeNil)
}

func TestValidateRejectsDescendingRatios(t *testing.T) {
	m := validMap()
	m.PixelToVoxelRatioMin, m.PixelToVoxelRatioMax = 4, 1
	test.That(t, m.Validate(), test.ShouldNotBeNil)
}

func TestValidateRejectsDescendingTau(t *testing.T) {
	m := validMap()
	m.TauMin, m.TauMax = 0.3, 0.1
	test.That(t, m.Validate(), test.ShouldNotBeNil)
}

func TestValidateRejectsDescendingFieldBounds(t *testing.T) {
	m := validMap()
	m.FieldMin, m.FieldMax = 10, -10
	test.That(t, m.Validate(), test.ShouldNotBeNil)
}

func TestValidateRejectsFsIntegrScaleOutOfRange(t *testing.T) {
	m := validMap()
	m.FsIntegrScale = m.MaxScale + 1
	test.That(t, m.Validate(), test.ShouldNotBeNil)
}

func TestSideVoxelsRoundsUpToPowerOfTwoAndDoubleBlockEdge(t *testing.T) {
	m := validMap()
	m.BlockEdge = 8
	m.RequestedSideVoxels = 100
	test.That(t, m.SideVoxels(), test.ShouldEqual, 128)

	m.RequestedSideVoxels = 8
	test.That(t, m.SideVoxels(), test.ShouldEqual, 16) // >= 2*BlockEdge wins
}

func TestSigmaBounds(t *testing.T) {
	m := validMap()
	m.Resolution = 0.1
	m.SigmaMinFactor, m.SigmaMaxFactor = 1, 4
	test.That(t, m.SigmaMin(), test.ShouldAlmostEqual, 0.1)
	test.That(t, m.SigmaMax(), test.ShouldAlmostEqual, 0.4)
}
