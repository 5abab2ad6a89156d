package pipeline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/partstrade/trade-service/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(id int64, qty int, price string) types.PriceRow {
	return types.PriceRow{AutoPartID: id, Brand: "X", OEM: fmt.Sprintf("P%d", id), Quantity: qty, Price: decimal.RequireFromString(price)}
}

func TestComputeDelta(t *testing.T) {
	noise := DefaultOptions().Noise

	prev := []types.PriceRow{row(1, 10, "100"), row(2, 5, "50"), row(3, 1, "10")}
	cur := []types.PriceRow{row(1, 10, "100.01"), row(2, 6, "50"), row(4, 1, "1")}

	d := ComputeDelta(prev, cur, noise)

	require.Len(t, d.New, 1)
	assert.Equal(t, int64(4), d.New[0].AutoPartID)
	require.Len(t, d.Removed, 1)
	assert.Equal(t, int64(3), d.Removed[0].AutoPartID)
	// 0.01% is the floor itself, so 100 -> 100.01 is noise
	assert.Empty(t, d.PriceChanges)
	require.Len(t, d.QuantityChanges, 1)
	assert.Equal(t, 5, d.QuantityChanges[0].OldQty)
	assert.Equal(t, 6, d.QuantityChanges[0].NewQty)
}

func TestExceedsNoise(t *testing.T) {
	floor := decimal.RequireFromString("0.01")
	tests := []struct {
		name     string
		old, cur string
		want     bool
	}{
		{"equal", "100", "100", false},
		{"at floor", "100", "100.01", false},
		{"above floor", "100", "100.02", true},
		{"drop", "100", "90", true},
		{"from zero", "0", "1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exceedsNoise(decimal.RequireFromString(tt.old), decimal.RequireFromString(tt.cur), floor)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeltaRenderTruncates(t *testing.T) {
	var cur []types.PriceRow
	for i := int64(1); i <= 25; i++ {
		cur = append(cur, row(i, 1, "1"))
	}
	d := ComputeDelta(nil, cur, DefaultOptions().Noise)

	text := d.Render("provider 5", 20)
	assert.True(t, strings.HasPrefix(text, "Pricelist update: provider 5\n"))
	assert.Contains(t, text, "new 25, removed 0")
	assert.Contains(t, text, "X P20: 1 pcs at 1.00")
	assert.NotContains(t, text, "X P21:")
	assert.Contains(t, text, "... and 5 more")
	assert.NotContains(t, text, "Price changes")
}
