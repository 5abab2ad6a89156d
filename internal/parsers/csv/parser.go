package csv

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/partstrade/trade-service/internal/parsers/charset"
)

// Parser reads delimited text into raw string rows.
type Parser struct {
	options CsvParserOptions
}

// NewParser creates a new CSV parser with the given options
func NewParser(options CsvParserOptions) *Parser {
	if options.QuoteChar == 0 {
		options.QuoteChar = '"'
	}
	return &Parser{options: options}
}

// ReadRows decodes content to UTF-8 and splits it into rows of trimmed cells.
// Blank lines are kept as empty rows so row positions match the file.
func (p *Parser) ReadRows(content []byte) ([][]string, error) {
	opts := p.options

	decoded, err := charset.Decode(content, opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}

	if opts.Delimiter == "" {
		opts.Delimiter = DetectDelimiter(decoded)
	}
	delimRune, _ := utf8.DecodeRuneInString(string(opts.Delimiter))

	lines := splitLines(decoded)
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			rows = append(rows, []string{})
			continue
		}

		fields := SplitCSVLine(line, delimRune, opts.QuoteChar)
		for i, f := range fields {
			fields[i] = strings.TrimSpace(f)
		}
		rows = append(rows, fields)
	}

	return rows, nil
}

// splitLines splits on \n, \r\n and bare \r and drops the trailing empty line.
func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
