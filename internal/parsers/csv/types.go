package csv

import "github.com/partstrade/trade-service/internal/parsers/charset"

// CsvDelimiter represents supported CSV delimiters
type CsvDelimiter string

const (
	DelimiterComma     CsvDelimiter = ","
	DelimiterSemicolon CsvDelimiter = ";"
	DelimiterTab       CsvDelimiter = "\t"
)

// CsvParserOptions represents CSV parser options.
// Empty Delimiter and Encoding are detected from the content.
type CsvParserOptions struct {
	Delimiter CsvDelimiter     `json:"delimiter,omitempty"`
	Encoding  charset.Encoding `json:"encoding,omitempty"`
	QuoteChar rune             `json:"quoteChar,omitempty"`
}

// DefaultOptions returns default CSV parser options
func DefaultOptions() CsvParserOptions {
	return CsvParserOptions{
		QuoteChar: '"',
	}
}
