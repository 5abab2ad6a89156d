package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/partstrade/trade-service/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubstitutions struct {
	rules     map[int64][]types.Substitution
	err       error
	requested []int64
}

func (f *fakeSubstitutions) ActiveSubstitutions(_ context.Context, ids []int64, _ int64) (map[int64][]types.Substitution, error) {
	f.requested = append(f.requested, ids...)
	return f.rules, f.err
}

var house = HouseBrand{Name: "PARTSTRADE", Prefix: "PT"}

func rule(priority, minQty, reduction int, brand, oem string) types.Substitution {
	return types.Substitution{
		SubstitutionBrandID: int64(priority) * 10,
		SubstitutionBrand:   brand,
		SubstitutionOEM:     oem,
		Priority:            priority,
		MinSourceQuantity:   minQty,
		QuantityReduction:   reduction,
		IsActive:            true,
	}
}

func TestSubstitutionGating(t *testing.T) {
	e := NewExpander(&fakeSubstitutions{}, house)

	t.Run("below min source quantity", func(t *testing.T) {
		src := priceRow(1, "PT123", "PARTSTRADE", 3, "10", false)
		assert.Empty(t, e.SubstituteRows(src, []types.Substitution{rule(1, 4, 1, "CHERY", "A1")}))
	})

	t.Run("reduction applied", func(t *testing.T) {
		src := priceRow(1, "PT123", "PARTSTRADE", 10, "10", false)
		out := e.SubstituteRows(src, []types.Substitution{rule(1, 4, 1, "CHERY", "A1")})
		require.Len(t, out, 1)
		assert.Equal(t, 9, out[0].Quantity)
		assert.Equal(t, "CHERY", out[0].Brand)
		assert.Equal(t, "A1", out[0].OEM)
		assert.True(t, out[0].Price.Equal(src.Price))
		assert.True(t, out[0].Substituted)
		assert.Zero(t, out[0].AutoPartID)
	})

	t.Run("quantity never below one", func(t *testing.T) {
		src := priceRow(1, "PT123", "PARTSTRADE", 5, "10", false)
		out := e.SubstituteRows(src, []types.Substitution{rule(1, 0, 50, "CHERY", "A1")})
		require.Len(t, out, 1)
		assert.Equal(t, 1, out[0].Quantity)
	})

	t.Run("equal to min keeps quantity", func(t *testing.T) {
		src := priceRow(1, "PT123", "PARTSTRADE", 4, "10", false)
		out := e.SubstituteRows(src, []types.Substitution{rule(1, 4, 2, "CHERY", "A1")})
		require.Len(t, out, 1)
		assert.Equal(t, 4, out[0].Quantity)
	})

	t.Run("gate uses the smallest minimum", func(t *testing.T) {
		src := priceRow(1, "PT123", "PARTSTRADE", 3, "10", false)
		out := e.SubstituteRows(src, []types.Substitution{
			rule(2, 10, 1, "GEELY", "G1"),
			rule(1, 2, 1, "CHERY", "A1"),
		})
		require.Len(t, out, 2)
		// priority order, second rule's own minimum is not met so quantity stays
		assert.Equal(t, "CHERY", out[0].Brand)
		assert.Equal(t, 2, out[0].Quantity)
		assert.Equal(t, "GEELY", out[1].Brand)
		assert.Equal(t, 3, out[1].Quantity)
	})

	t.Run("empty substitution oem uses clean code", func(t *testing.T) {
		src := priceRow(1, "PT-123", "PARTSTRADE", 5, "10", false)
		out := e.SubstituteRows(src, []types.Substitution{rule(1, 0, 0, "CHERY", "")})
		require.Len(t, out, 1)
		assert.Equal(t, "123", out[0].OEM)
	})

	t.Run("inactive rules ignored", func(t *testing.T) {
		r := rule(1, 0, 0, "CHERY", "A1")
		r.IsActive = false
		assert.Empty(t, e.SubstituteRows(priceRow(1, "PT1", "PARTSTRADE", 5, "1", false), []types.Substitution{r}))
	})
}

func TestExpand(t *testing.T) {
	ctx := context.Background()
	rows := []types.PriceRow{
		priceRow(1, "PT100", "PARTSTRADE", 10, "50", true),
		priceRow(2, "A1", "CHERY", 1, "70", false),
		priceRow(3, "Z9", "FAW", 1, "5", false),
	}
	src := &fakeSubstitutions{rules: map[int64][]types.Substitution{
		1: {
			rule(1, 0, 1, "CHERY", "A1"), // already offered, dropped
			rule(2, 0, 1, "GEELY", "G1"),
		},
	}}

	out, err := NewExpander(src, house).Expand(ctx, rows, 7)
	require.NoError(t, err)

	require.Len(t, out, 4)
	assert.Equal(t, rows, out[:3])
	assert.Equal(t, "GEELY", out[3].Brand)
	assert.Equal(t, 9, out[3].Quantity)
	assert.Equal(t, []int64{1}, src.requested)
}

func TestExpandWithoutHouseBrandIsNoop(t *testing.T) {
	rows := []types.PriceRow{priceRow(1, "A", "X", 1, "1", false)}
	out, err := NewExpander(&fakeSubstitutions{err: errors.New("not called")}, HouseBrand{}).Expand(context.Background(), rows, 1)
	require.NoError(t, err)
	assert.Equal(t, rows, out)
}

func TestExpandPropagatesErrors(t *testing.T) {
	rows := []types.PriceRow{priceRow(1, "PT1", "PARTSTRADE", 1, "1", false)}
	_, err := NewExpander(&fakeSubstitutions{err: errors.New("db down")}, house).Expand(context.Background(), rows, 1)
	assert.ErrorContains(t, err, "db down")
}
