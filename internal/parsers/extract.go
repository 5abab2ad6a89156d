// Package parsers turns supplier and customer spreadsheets into rows.
// Sub-packages read one format each; this package picks the reader, unwraps
// archives and applies the row cleaning contract.
package parsers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/parsers/archive"
	"github.com/partstrade/trade-service/internal/parsers/csv"
	"github.com/partstrade/trade-service/internal/parsers/xls"
	"github.com/partstrade/trade-service/internal/parsers/xlsx"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultPriceCeiling is the largest price accepted from a supplier file.
var DefaultPriceCeiling = decimal.RequireFromString("99999999.99")

const maxArchiveDepth = 3

var validate = validator.New()

// Options configures an Extractor.
type Options struct {
	PriceCeiling decimal.Decimal
	Archive      archive.ExpandOptions
	CSV          csv.CsvParserOptions
	XLSCharset   string
}

// DefaultOptions returns default extractor options
func DefaultOptions() Options {
	return Options{
		PriceCeiling: DefaultPriceCeiling,
		Archive:      archive.DefaultExpandOptions(),
		CSV:          csv.DefaultOptions(),
	}
}

// Sheet is the raw cell grid of a file after archive unwrapping.
type Sheet struct {
	Filename string
	Type     types.FileType
	// Content is the unwrapped file the rows were read from.
	Content []byte
	Rows    [][]string
}

// Extractor reads spreadsheets into canonical rows.
type Extractor struct {
	opts     Options
	expander *archive.Expander
	log      zerolog.Logger
}

// NewExtractor creates a new extractor
func NewExtractor(opts Options, logger zerolog.Logger) *Extractor {
	if opts.PriceCeiling.IsZero() {
		opts.PriceCeiling = DefaultPriceCeiling
	}
	return &Extractor{
		opts:     opts,
		expander: archive.NewExpander(opts.Archive, logger),
		log:      logger.With().Str("component", "extractor").Logger(),
	}
}

// ResolveFileType accepts a filename or a bare extension ("xlsx", ".xlsx").
func ResolveFileType(nameOrExt string) types.FileType {
	if !strings.Contains(nameOrExt, ".") {
		nameOrExt = "." + nameOrExt
	}
	return archive.DetectFileType(nameOrExt)
}

// ReadSheet returns the raw cell grid of content. Archives are unwrapped to
// their first usable entry.
func (e *Extractor) ReadSheet(ctx context.Context, content []byte, filename string) (*Sheet, error) {
	return e.readSheet(ctx, content, filename, 0)
}

func (e *Extractor) readSheet(ctx context.Context, content []byte, filename string, depth int) (*Sheet, error) {
	kind := ResolveFileType(filename)
	if kind == "" {
		return nil, invalidFile(filename, "unsupported file type", nil)
	}
	if len(content) == 0 {
		return nil, invalidFile(filename, "file is empty", nil)
	}

	if kind.IsArchive() {
		if depth >= maxArchiveDepth {
			return nil, invalidFile(filename, "archives nested too deep", nil)
		}
		entry, err := e.expander.First(ctx, content, kind)
		if errors.Is(err, archive.ErrEmptyArchive) {
			return nil, invalidFile(filename, "archive is empty", err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, invalidFile(filename, "cannot open archive", err)
		}
		e.log.Debug().Str("archive", filename).Str("entry", entry.Name).Msg("Unwrapped archive")
		return e.readSheet(ctx, entry.Content, entry.Name, depth+1)
	}

	var (
		rows [][]string
		err  error
	)
	switch kind {
	case types.FileTypeCSV:
		rows, err = csv.NewParser(e.opts.CSV).ReadRows(content)
	case types.FileTypeXLSX:
		rows, err = xlsx.NewParser(xlsx.DefaultOptions()).ReadRows(content)
	case types.FileTypeXLS:
		rows, err = xls.NewParser(e.opts.XLSCharset).ReadRows(content)
	default:
		return nil, invalidFile(filename, fmt.Sprintf("unsupported file type %s", kind), nil)
	}
	if err != nil {
		return nil, invalidFile(filename, "cannot read workbook", err)
	}

	return &Sheet{Filename: filename, Type: kind, Content: content, Rows: rows}, nil
}

// Extract reads content and returns cleaned rows. Rows that miss a required
// field, do not coerce to numbers or carry a price outside [0, ceiling] are
// reported in Errors and left out; they never fail the call.
func (e *Extractor) Extract(ctx context.Context, content []byte, filename string, cm types.ColumnMap) (*types.ParseResult, error) {
	if err := ValidateColumnMap(cm); err != nil {
		return nil, err
	}

	sheet, err := e.ReadSheet(ctx, content, filename)
	if err != nil {
		return nil, err
	}

	result := &types.ParseResult{
		Rows:   make([]types.CanonicalRow, 0, len(sheet.Rows)),
		Errors: make([]types.ParseError, 0),
	}

	for i := cm.StartRow; i < len(sheet.Rows); i++ {
		raw := sheet.Rows[i]
		if isEmptyRow(raw) {
			continue
		}
		result.TotalRows++

		row, perr := e.cleanRow(raw, i+1, cm)
		if perr != nil {
			result.Errors = append(result.Errors, *perr)
			continue
		}
		result.Rows = append(result.Rows, row)
	}
	result.ValidRows = len(result.Rows)

	e.log.Debug().
		Str("filename", sheet.Filename).
		Int("total", result.TotalRows).
		Int("valid", result.ValidRows).
		Int("skipped", len(result.Errors)).
		Msg("Extracted rows")

	return result, nil
}

func (e *Extractor) cleanRow(raw []string, rowNumber int, cm types.ColumnMap) (types.CanonicalRow, *types.ParseError) {
	oem := cell(raw, cm.OEMCol)
	qtyRaw := cell(raw, cm.QtyCol)
	priceRaw := cell(raw, cm.PriceCol)

	switch {
	case oem == "":
		return types.CanonicalRow{}, rowError(rowNumber, "oem", "missing oem", "")
	case qtyRaw == "":
		return types.CanonicalRow{}, rowError(rowNumber, "quantity", "missing quantity", "")
	case priceRaw == "":
		return types.CanonicalRow{}, rowError(rowNumber, "price", "missing price", "")
	}

	qty, err := ParseQuantity(qtyRaw)
	if err != nil {
		return types.CanonicalRow{}, rowError(rowNumber, "quantity", err.Error(), qtyRaw)
	}
	price, err := ParsePrice(priceRaw)
	if err != nil {
		return types.CanonicalRow{}, rowError(rowNumber, "price", err.Error(), priceRaw)
	}
	if price.IsNegative() || price.GreaterThan(e.opts.PriceCeiling) {
		return types.CanonicalRow{}, rowError(rowNumber, "price", "price out of range", priceRaw)
	}

	return types.CanonicalRow{
		OEM:       oem,
		Brand:     cell(raw, cm.BrandCol),
		Name:      cell(raw, cm.NameCol),
		Quantity:  qty,
		Price:     price,
		RowNumber: rowNumber,
	}, nil
}

// ValidateColumnMap rejects maps with missing required columns.
func ValidateColumnMap(cm types.ColumnMap) error {
	if err := validate.Struct(cm); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid column mapping")
	}
	return nil
}

// cell reads a 1-based column; 0 or out-of-range columns read as empty.
func cell(row []string, col int) string {
	if col <= 0 || col > len(row) {
		return ""
	}
	return strings.TrimSpace(row[col-1])
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func rowError(rowNumber int, field, message, original string) *types.ParseError {
	pe := &types.ParseError{
		RowNumber: types.IntPtr(rowNumber),
		Field:     types.StringPtr(field),
		Message:   message,
	}
	if original != "" {
		pe.OriginalValue = types.StringPtr(original)
	}
	return pe
}
