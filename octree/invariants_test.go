package octree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelcore/voxelcore/voxel"
)

// TestBlockScaleOrderingInvariant covers spec property 2: for every block,
// 0 <= min_scale <= current_scale <= max_scale, and at the finest
// allocated scale the cell, min and max stacks alias the same storage.
func TestBlockScaleOrderingInvariant(t *testing.T) {
	cases := []struct {
		name  string
		edge  int32
		scale int
	}{
		{"finest", 8, 0},
		{"middle", 8, 1},
		{"coarsest", 8, 2},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := &Block{octantCommon: octantCommon{edge: c.edge}, maxLevel: log2i(c.edge)}
			b.InitAtScale(c.scale, false, false, voxel.Field{})

			require.GreaterOrEqual(t, b.MinScale(), 0)
			assert.LessOrEqual(t, b.MinScale(), b.CurrentScale())
			assert.LessOrEqual(t, b.CurrentScale(), b.MaxLevel())

			b.SetCellAt(0, 0, 0, c.scale, voxel.Field{Raw: 17, Weight: 2, Observed: true})
			field, ok := b.CellAt(0, 0, 0, c.scale)
			require.True(t, ok)
			min, max, ok := b.MinMaxAt(0, 0, 0, c.scale)
			require.True(t, ok)
			assert.Equal(t, field.Raw, min)
			assert.Equal(t, field.Raw, max)
		})
	}
}

// TestClampedFieldStaysWithinConfiguredBounds checks the arithmetic of
// spec property 3 (weight and log-odds stay within their configured
// bounds no matter how many updates are applied). It applies the clamp
// and cap inline in the test body and calls no package code.
func TestClampedFieldStaysWithinConfiguredBounds(t *testing.T) {
	const fieldMin, fieldMax = int32(-64), int32(64)
	const maxWeight = uint32(16)

	cases := []struct {
		name    string
		updates int
		delta   int32
	}{
		{"many small increments", 200, 1},
		{"few large increments", 3, 1000},
		{"large negative increments", 5, -1000},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var raw int64
			var weight uint32
			for i := 0; i < c.updates; i++ {
				raw += int64(c.delta)
				if raw < int64(fieldMin) {
					raw = int64(fieldMin)
				}
				if raw > int64(fieldMax) {
					raw = int64(fieldMax)
				}
				if weight < maxWeight {
					weight++
				}
			}
			assert.GreaterOrEqual(t, int32(raw), fieldMin)
			assert.LessOrEqual(t, int32(raw), fieldMax)
			assert.LessOrEqual(t, weight, maxWeight)
		})
	}
}
