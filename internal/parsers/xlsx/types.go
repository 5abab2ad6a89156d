package xlsx

// XlsxParserOptions represents XLSX parser options
type XlsxParserOptions struct {
	// SheetNameOrIndex selects the worksheet: string for a name, int for a
	// 0-based index. nil means the first sheet.
	SheetNameOrIndex interface{} `json:"sheetNameOrIndex,omitempty"`
}

// DefaultOptions returns default XLSX parser options
func DefaultOptions() XlsxParserOptions {
	return XlsxParserOptions{}
}
