package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"Plain dot", "1299.50", "1299.5", false},
		{"Russian comma", "150,5", "150.5", false},
		{"Space thousands", "1 299,00", "1299", false},
		{"NBSP thousands", "1 299,99", "1299.99", false},
		{"European grouping", "1.299,95", "1299.95", false},
		{"US grouping", "1,299.95", "1299.95", false},
		{"Dot thousands only", "1.299.000", "1299000", false},
		{"Ruble suffix", "150 руб.", "150", false},
		{"Ruble sign", "99,90 ₽", "99.9", false},
		{"Rounded", "10.005", "10.01", false},
		{"Negative parses", "-5", "-5", false},
		{"Empty", "", "", true},
		{"Text", "договорная", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.String())
		})
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
		wantErr  bool
	}{
		{"Integer", "10", 10, false},
		{"Float", "10.0", 10, false},
		{"Comma fraction truncates", "3,7", 3, false},
		{"Greater than", ">100", 100, false},
		{"Spaces", "1 000", 1000, false},
		{"Zero", "0", 0, false},
		{"Negative", "-1", 0, true},
		{"At bound", "1000000000", MaxQuantity, false},
		{"Fraction at bound truncates", "1000000000.5", MaxQuantity, false},
		{"Above bound", "1000000001", 0, true},
		{"Exponent overflow", "1e30", 0, true},
		{"Text", "много", 0, true},
		{"Empty", " ", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuantity(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
