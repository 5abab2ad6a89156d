package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/partstrade/trade-service/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zipEntry struct {
	name string
	body string
}

func makeZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := w.Create(e.name)
		require.NoError(t, err)
		_, err = f.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestFirstZip(t *testing.T) {
	ex := NewExpander(DefaultExpandOptions(), zerolog.Nop())
	ctx := context.Background()

	t.Run("skips system files and directories", func(t *testing.T) {
		content := makeZip(t,
			zipEntry{"__MACOSX/._price.csv", "junk"},
			zipEntry{"nested/", ""},
			zipEntry{"nested/price.csv", "A;B;1;2"},
			zipEntry{"second.xlsx", "ignored"},
		)

		entry, err := ex.First(ctx, content, types.FileTypeZIP)
		require.NoError(t, err)
		assert.Equal(t, "price.csv", entry.Name)
		assert.Equal(t, types.FileTypeCSV, entry.Type)
		assert.Equal(t, "A;B;1;2", string(entry.Content))
	})

	t.Run("skips path traversal", func(t *testing.T) {
		content := makeZip(t,
			zipEntry{"../../etc/passwd", "x"},
			zipEntry{"ok.csv", "y"},
		)

		entry, err := ex.First(ctx, content, types.FileTypeZIP)
		require.NoError(t, err)
		assert.Equal(t, "ok.csv", entry.Name)
	})

	t.Run("empty archive", func(t *testing.T) {
		_, err := ex.First(ctx, makeZip(t), types.FileTypeZIP)
		assert.ErrorIs(t, err, ErrEmptyArchive)
	})

	t.Run("size limit", func(t *testing.T) {
		small := NewExpander(ExpandOptions{MaxFileSize: 3}, zerolog.Nop())
		_, err := small.First(ctx, makeZip(t, zipEntry{"big.csv", "0123456789"}), types.FileTypeZIP)
		assert.Error(t, err)
	})

	t.Run("corrupt zip", func(t *testing.T) {
		_, err := ex.First(ctx, []byte("PK nope"), types.FileTypeZIP)
		assert.Error(t, err)
	})
}

func TestFirstRejectsCorruptRar(t *testing.T) {
	ex := NewExpander(DefaultExpandOptions(), zerolog.Nop())
	_, err := ex.First(context.Background(), []byte("not a rar"), types.FileTypeRAR)
	assert.Error(t, err)
}

func TestFirstRejectsNonArchive(t *testing.T) {
	ex := NewExpander(DefaultExpandOptions(), zerolog.Nop())
	_, err := ex.First(context.Background(), []byte("a"), types.FileTypeCSV)
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"Simple", "price.xlsx", "price.xlsx", false},
		{"Nested flattened", "a/b/price.xlsx", "price.xlsx", false},
		{"Backslashes", `a\b\price.xlsx`, "price.xlsx", false},
		{"Absolute", "/etc/passwd", "", true},
		{"Drive letter", "C:evil.csv", "", true},
		{"Traversal", "../x.csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sanitizeFilename(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFileType(t *testing.T) {
	assert.Equal(t, types.FileTypeXLSX, DetectFileType("Price.XLSX"))
	assert.Equal(t, types.FileTypeXLS, DetectFileType("old.xls"))
	assert.Equal(t, types.FileTypeRAR, DetectFileType("bundle.rar"))
	assert.Equal(t, types.FileType(""), DetectFileType("notes.pdf"))
}
