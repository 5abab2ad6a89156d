package orders

import (
	"testing"
	"time"

	"github.com/partstrade/trade-service/internal/parsers"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLines(t *testing.T) {
	sheet := &parsers.Sheet{Rows: [][]string{
		{"OEM", "Brand", "Qty", "Price"},
		{"A1", "BOSCH", "2", "10,50"},
		{},
		{"", "MANN", "1"},
		{"C3", "", "0"},
		{"D4", "NGK", "3 "},
	}}
	cm := types.OrderColumnMap{StartRow: 1, OEMCol: 1, BrandCol: 2, QtyCol: 3, PriceCol: 4}

	lines, bad := ParseLines(sheet, cm)
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].RowIndex)
	assert.Equal(t, "BOSCH", lines[0].Brand)
	require.NotNil(t, lines[0].RequestedPrice)
	assert.Equal(t, "10.50", lines[0].RequestedPrice.StringFixed(2))
	assert.Equal(t, 6, lines[1].RowIndex)
	assert.Nil(t, lines[1].RequestedPrice)

	require.Len(t, bad, 2)
	assert.Equal(t, "oem", *bad[0].Field)
	assert.Equal(t, "quantity", *bad[1].Field)
}

func TestOrderNumber(t *testing.T) {
	date := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	sheet := &parsers.Sheet{Rows: [][]string{{"Order"}, {""}, {"PO-77"}}}

	tests := []struct {
		name string
		src  NumberSource
		want string
	}{
		{
			name: "column wins",
			src: NumberSource{Sheet: sheet, Columns: types.OrderColumnMap{StartRow: 1, OrderNumberCol: 1},
				Patterns: []string{`(\d+)`}, Subject: "order 5"},
			want: "PO-77",
		},
		{
			name: "subject before filename",
			src:  NumberSource{Patterns: []string{`No\.?\s*(\d+)`}, Subject: "Order No. 881", Filename: "No 990.xlsx"},
			want: "881",
		},
		{
			name: "filename when subject does not match",
			src:  NumberSource{Patterns: []string{`No\.?\s*(\d+)`}, Subject: "hello", Filename: "No 990.xlsx"},
			want: "990",
		},
		{
			name: "whole match without groups",
			src:  NumberSource{Patterns: []string{`ZK-\d+`}, Body: "see ZK-12 attached"},
			want: "ZK-12",
		},
		{
			name: "invalid pattern is ignored",
			src:  NumberSource{Patterns: []string{`(`, `#(\d+)`}, Subject: "#4"},
			want: "4",
		},
		{
			name: "generated",
			src:  NumberSource{CustomerID: 5, Date: date, Hash: "0123456789abcdef"},
			want: "5-20260701-01234567",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OrderNumber(tt.src, zerolog.Nop()))
		})
	}
}
