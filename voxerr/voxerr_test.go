package voxerr

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestIsKindMatchesWrappedError(t *testing.T) {
	err := errors.Wrap(NewConfigError("bad resolution %v", -1), "context")
	test.That(t, IsKind(err, KindConfig), test.ShouldBeTrue)
	test.That(t, IsKind(err, KindAllocation), test.ShouldBeFalse)
}

func TestIOErrorUnwrapsToCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewIOError(cause, "mesh: write failed")
	test.That(t, errors.Unwrap(err), test.ShouldEqual, cause)
	test.That(t, err.Error(), test.ShouldContainSubstring, "disk full")
}

func TestErrorIsMatchesSameKindRegardlessOfMessage(t *testing.T) {
	a := NewBoundaryError("voxel %v out of range", [3]int32{1, 2, 3})
	b := NewBoundaryError("a different message entirely")
	test.That(t, errors.Is(a, b), test.ShouldBeTrue)
	test.That(t, errors.Is(a, NewConfigError("x")), test.ShouldBeFalse)
}

func TestKindStringNames(t *testing.T) {
	test.That(t, KindConfig.String(), test.ShouldEqual, "config")
	test.That(t, KindAllocation.String(), test.ShouldEqual, "allocation")
	test.That(t, KindBoundary.String(), test.ShouldEqual, "boundary")
	test.That(t, KindIO.String(), test.ShouldEqual, "io")
}
