package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// FileType represents supported file types
type FileType string

const (
	FileTypeCSV  FileType = "csv"
	FileTypeXLS  FileType = "xls"
	FileTypeXLSX FileType = "xlsx"
	FileTypeZIP  FileType = "zip"
	FileTypeRAR  FileType = "rar"
)

// IsArchive reports whether the file type wraps another file.
func (t FileType) IsArchive() bool {
	return t == FileTypeZIP || t == FileTypeRAR
}

// ColumnMap describes where the fields of a supplier file live.
// Column numbers are 1-based as entered by operators; 0 means "not present".
// StartRow is the 0-indexed first data row.
type ColumnMap struct {
	StartRow int `json:"start_row" validate:"gte=0"`
	OEMCol   int `json:"oem_col" validate:"gte=1"`
	BrandCol int `json:"brand_col,omitempty" validate:"gte=0"`
	NameCol  int `json:"name_col,omitempty" validate:"gte=0"`
	QtyCol   int `json:"qty_col" validate:"gte=1"`
	PriceCol int `json:"price_col" validate:"gte=1"`
}

// CanonicalRow is one cleaned row of a supplier file.
type CanonicalRow struct {
	OEM       string          `json:"oem"`
	Brand     string          `json:"brand,omitempty"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	RowNumber int             `json:"rowNumber"`
}

// ParseError represents a parsing error
type ParseError struct {
	RowNumber     *int    `json:"rowNumber,omitempty"`
	Field         *string `json:"field,omitempty"`
	Message       string  `json:"message"`
	OriginalValue *string `json:"originalValue,omitempty"`
}

// ParseWarning represents a parsing warning
type ParseWarning struct {
	RowNumber *int    `json:"rowNumber,omitempty"`
	Field     *string `json:"field,omitempty"`
	Message   string  `json:"message"`
}

// ParseResult represents result of parsing
type ParseResult struct {
	Rows      []CanonicalRow `json:"rows"`
	Errors    []ParseError   `json:"errors,omitempty"`
	Warnings  []ParseWarning `json:"warnings,omitempty"`
	TotalRows int            `json:"totalRows"`
	ValidRows int            `json:"validRows"`
}

// IngestionSource represents source of an ingestion run
type IngestionSource string

const (
	SourceCLI    IngestionSource = "cli"
	SourceAPI    IngestionSource = "api"
	SourceMail   IngestionSource = "mail"
	SourceManual IngestionSource = "manual"
)

// IngestionStatus is the state of one pricelist ingestion run.
type IngestionStatus string

const (
	StatusReceived  IngestionStatus = "RECEIVED"
	StatusParsed    IngestionStatus = "PARSED"
	StatusMatched   IngestionStatus = "MATCHED"
	StatusPersisted IngestionStatus = "PERSISTED"
	StatusFailed    IngestionStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s IngestionStatus) IsTerminal() bool {
	return s == StatusPersisted || s == StatusFailed
}

// IngestionRun is the persisted record of one ingestion attempt.
type IngestionRun struct {
	ID           string          `json:"id"`
	ProviderID   int64           `json:"providerId"`
	Source       IngestionSource `json:"source"`
	Filename     string          `json:"filename"`
	FileHash     string          `json:"fileHash"`
	DedupKey     *string         `json:"dedupKey,omitempty"`
	Status       IngestionStatus `json:"status"`
	TotalRows    int             `json:"totalRows"`
	ValidRows    int             `json:"validRows"`
	SkippedRows  int             `json:"skippedRows"`
	CreatedParts int             `json:"createdParts"`
	PriceListID  *int64          `json:"priceListId,omitempty"`
	Error        *string         `json:"error,omitempty"`
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   *time.Time      `json:"finishedAt,omitempty"`
}

// SkipReason explains why a row did not make it into a snapshot.
type SkipReason string

const (
	SkipParse           SkipReason = "parse"
	SkipUnresolvedBrand SkipReason = "unresolved_brand"
	SkipInvalidOEM      SkipReason = "invalid_oem"
	SkipDuplicate       SkipReason = "duplicate"
)

// StringPtr returns a pointer to the given string
func StringPtr(s string) *string {
	return &s
}

// IntPtr returns a pointer to the given int
func IntPtr(i int) *int {
	return &i
}

// Int64Ptr returns a pointer to the given int64
func Int64Ptr(i int64) *int64 {
	return &i
}

// TimePtr returns a pointer to the given time
func TimePtr(t time.Time) *time.Time {
	return &t
}

// DecimalPtr returns a pointer to the given decimal
func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
