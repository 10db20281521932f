package spatial

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestTransformAppliesTranslation(t *testing.T) {
	iso := NewFromPoint(r3.Vector{X: 1, Y: 2, Z: 3})
	got := iso.Transform(r3.Vector{X: 1, Y: 1, Z: 1})
	test.That(t, got, test.ShouldResemble, r3.Vector{X: 2, Y: 3, Z: 4})
}

func TestInverseCancelsTransform(t *testing.T) {
	iso := NewFromPoint(r3.Vector{X: 4, Y: -2, Z: 7})
	p := r3.Vector{X: 3, Y: 5, Z: -1}

	roundTripped := iso.Inverse().Transform(iso.Transform(p))
	test.That(t, roundTripped.X, test.ShouldAlmostEqual, p.X, 1e-9)
	test.That(t, roundTripped.Y, test.ShouldAlmostEqual, p.Y, 1e-9)
	test.That(t, roundTripped.Z, test.ShouldAlmostEqual, p.Z, 1e-9)
}

func TestComposeWithIdentityIsNoOp(t *testing.T) {
	iso := NewFromPoint(r3.Vector{X: 1, Y: 2, Z: 3})
	composed := iso.Compose(Identity())
	test.That(t, composed.AlmostEqual(iso, 1e-9), test.ShouldBeTrue)
}

func TestAlmostEqualDetectsTranslationDifference(t *testing.T) {
	a := NewFromPoint(r3.Vector{X: 0, Y: 0, Z: 0})
	b := NewFromPoint(r3.Vector{X: 0, Y: 0, Z: 0.5})
	test.That(t, a.AlmostEqual(b, 1e-9), test.ShouldBeFalse)
	test.That(t, a.AlmostEqual(b, 1), test.ShouldBeTrue)
}
