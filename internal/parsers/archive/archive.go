// Package archive unwraps supplier files delivered inside zip or rar containers.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/nwaples/rardecode"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/rs/zerolog"
)

// ErrEmptyArchive is returned when a container holds no usable file.
var ErrEmptyArchive = errors.New("archive contains no usable file")

// ExpandOptions contains options for archive expansion
type ExpandOptions struct {
	// MaxFileSize is the maximum size of the extracted entry in bytes (0 = unlimited)
	MaxFileSize int64
	// SkipPatterns contains patterns to skip (e.g., "__MACOSX")
	SkipPatterns []string
}

// DefaultExpandOptions returns default options for archive expansion
func DefaultExpandOptions() ExpandOptions {
	return ExpandOptions{
		MaxFileSize: 100 * 1024 * 1024,
		SkipPatterns: []string{
			"__MACOSX",
			".DS_Store",
			"Thumbs.db",
			"desktop.ini",
		},
	}
}

// Entry is the file taken out of an archive.
type Entry struct {
	Name    string
	Type    types.FileType
	Content []byte
}

// Expander handles zip and rar expansion
type Expander struct {
	options ExpandOptions
	log     zerolog.Logger
}

// NewExpander creates a new archive expander
func NewExpander(options ExpandOptions, logger zerolog.Logger) *Expander {
	return &Expander{
		options: options,
		log:     logger.With().Str("component", "archive").Logger(),
	}
}

// First returns the first usable file of the archive. Directories, system
// files and unsafe paths are skipped.
func (e *Expander) First(ctx context.Context, content []byte, kind types.FileType) (*Entry, error) {
	switch kind {
	case types.FileTypeZIP:
		return e.firstZip(ctx, content)
	case types.FileTypeRAR:
		return e.firstRar(ctx, content)
	default:
		return nil, fmt.Errorf("%s is not an archive type", kind)
	}
}

func (e *Expander) firstZip(ctx context.Context, content []byte) (*Entry, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	// insecure names are filtered per entry below
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("failed to open ZIP: %w", err)
	}

	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if file.FileInfo().IsDir() {
			continue
		}

		safeName, ok := e.accept(file.Name)
		if !ok {
			continue
		}

		if e.options.MaxFileSize > 0 && int64(file.UncompressedSize64) > e.options.MaxFileSize {
			return nil, fmt.Errorf("file %s exceeds maximum size (%d > %d)",
				safeName, file.UncompressedSize64, e.options.MaxFileSize)
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open file %s in ZIP: %w", safeName, err)
		}
		data, err := e.readWithLimit(rc, safeName)
		if closeErr := rc.Close(); closeErr != nil {
			e.log.Warn().Str("entry", safeName).Err(closeErr).Msg("Failed to close ZIP entry")
		}
		if err != nil {
			return nil, err
		}

		return &Entry{Name: safeName, Type: DetectFileType(safeName), Content: data}, nil
	}

	return nil, ErrEmptyArchive
}

func (e *Expander) firstRar(ctx context.Context, content []byte) (*Entry, error) {
	reader, err := rardecode.NewReader(bytes.NewReader(content), "")
	if err != nil {
		return nil, fmt.Errorf("failed to open RAR: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyArchive
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read RAR: %w", err)
		}
		if header.IsDir {
			continue
		}

		safeName, ok := e.accept(header.Name)
		if !ok {
			continue
		}

		data, err := e.readWithLimit(reader, safeName)
		if err != nil {
			return nil, err
		}
		return &Entry{Name: safeName, Type: DetectFileType(safeName), Content: data}, nil
	}
}

func (e *Expander) accept(name string) (string, bool) {
	safeName, err := sanitizeFilename(name)
	if err != nil {
		e.log.Debug().Str("entry", name).Err(err).Msg("Skipping unsafe archive entry")
		return "", false
	}
	for _, pattern := range e.options.SkipPatterns {
		if strings.Contains(name, pattern) {
			return "", false
		}
	}
	return safeName, true
}

// readWithLimit enforces the size limit on actual bytes, not the declared size.
func (e *Expander) readWithLimit(r io.Reader, name string) ([]byte, error) {
	if e.options.MaxFileSize > 0 {
		r = io.LimitReader(r, e.options.MaxFileSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive entry %s: %w", name, err)
	}
	if e.options.MaxFileSize > 0 && int64(len(data)) > e.options.MaxFileSize {
		return nil, fmt.Errorf("file %s exceeds maximum size (actual data > %d bytes)", name, e.options.MaxFileSize)
	}
	return data, nil
}

// sanitizeFilename rejects absolute and escaping paths and returns the base name.
func sanitizeFilename(filename string) (string, error) {
	if path.IsAbs(filename) || filepath.IsAbs(filename) {
		return "", fmt.Errorf("absolute path not allowed: %s", filename)
	}
	if len(filename) >= 2 && filename[1] == ':' {
		return "", fmt.Errorf("Windows drive letter not allowed: %s", filename)
	}

	filename = strings.ReplaceAll(filename, "\\", "/")
	cleaned := path.Clean(filename)
	if strings.HasPrefix(cleaned, "..") || strings.HasPrefix(cleaned, "/") {
		return "", fmt.Errorf("path traversal not allowed: %s", filename)
	}
	for _, part := range strings.Split(cleaned, "/") {
		if part == ".." {
			return "", fmt.Errorf("path traversal not allowed: %s", filename)
		}
	}

	baseName := path.Base(cleaned)
	if baseName == "." || baseName == "/" || baseName == "" {
		return "", fmt.Errorf("invalid filename: %s", filename)
	}
	return baseName, nil
}

// DetectFileType maps a filename extension to a file type. Unknown
// extensions return an empty type.
func DetectFileType(filename string) types.FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return types.FileTypeCSV
	case ".xlsx":
		return types.FileTypeXLSX
	case ".xls":
		return types.FileTypeXLS
	case ".zip":
		return types.FileTypeZIP
	case ".rar":
		return types.FileTypeRAR
	default:
		return ""
	}
}

// ContentType returns the MIME type for a filename
func ContentType(filename string) string {
	switch DetectFileType(filename) {
	case types.FileTypeCSV:
		return "text/csv"
	case types.FileTypeXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case types.FileTypeXLS:
		return "application/vnd.ms-excel"
	case types.FileTypeZIP:
		return "application/zip"
	case types.FileTypeRAR:
		return "application/vnd.rar"
	default:
		return "application/octet-stream"
	}
}
