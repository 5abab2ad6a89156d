package charset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func encode(t *testing.T, enc *charmap.Charmap, s string) []byte {
	t.Helper()
	out, err := enc.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return out
}

func TestDetectEncoding(t *testing.T) {
	const text = "Фильтр масляный;CHERY;10"

	tests := []struct {
		name     string
		data     []byte
		expected Encoding
	}{
		{"UTF-8", []byte(text), EncodingUTF8},
		{"UTF-8 BOM", append([]byte{0xEF, 0xBB, 0xBF}, text...), EncodingUTF8},
		{"Windows-1251", encode(t, charmap.Windows1251, text), EncodingWindows1251},
		{"KOI8-R", encode(t, charmap.KOI8R, text), EncodingKOI8R},
		{"ASCII", []byte("A11;CHERY;1"), EncodingUTF8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectEncoding(tt.data))
		})
	}
}

func TestDecode(t *testing.T) {
	const text = "Колодки тормозные"

	t.Run("detects windows-1251", func(t *testing.T) {
		got, err := Decode(encode(t, charmap.Windows1251, text), "")
		require.NoError(t, err)
		assert.Equal(t, text, got)
	})

	t.Run("explicit koi8-r", func(t *testing.T) {
		got, err := Decode(encode(t, charmap.KOI8R, text), EncodingKOI8R)
		require.NoError(t, err)
		assert.Equal(t, text, got)
	})

	t.Run("strips BOM", func(t *testing.T) {
		got, err := Decode(append([]byte{0xEF, 0xBB, 0xBF}, text...), EncodingUTF8)
		require.NoError(t, err)
		assert.Equal(t, text, got)
	})

	t.Run("utf-8 claim on cp1251 bytes", func(t *testing.T) {
		got, err := Decode(encode(t, charmap.Windows1251, text), EncodingUTF8)
		require.NoError(t, err)
		assert.Equal(t, text, got)
	})

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := Decode([]byte{0xFF, 0xFE}, "latin-9")
		assert.Error(t, err)
	})
}
