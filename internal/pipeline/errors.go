package pipeline

import (
	"fmt"

	"github.com/partstrade/trade-service/internal/apperr"
)

// NoValidRowsError fails an ingestion whose file left no usable row.
type NoValidRowsError struct {
	TotalRows int
	Skipped   int
}

func (e *NoValidRowsError) Error() string {
	return fmt.Sprintf("no valid rows: %d rows read, %d skipped", e.TotalRows, e.Skipped)
}

// ErrorCode implements apperr.Coder.
func (e *NoValidRowsError) ErrorCode() apperr.Code {
	return apperr.CodeNoValidRows
}
