package parsers

import (
	"fmt"

	"github.com/partstrade/trade-service/internal/apperr"
)

// InvalidFileError reports a file that cannot be read at all: unsupported
// extension, empty archive or an unparseable workbook.
type InvalidFileError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *InvalidFileError) Error() string {
	if e.Filename == "" {
		return "invalid file: " + e.Reason
	}
	return fmt.Sprintf("invalid file %s: %s", e.Filename, e.Reason)
}

func (e *InvalidFileError) Unwrap() error {
	return e.Err
}

// ErrorCode implements apperr.Coder.
func (e *InvalidFileError) ErrorCode() apperr.Code {
	return apperr.CodeInvalidFile
}

func invalidFile(filename, reason string, err error) error {
	return &InvalidFileError{Filename: filename, Reason: reason, Err: err}
}
