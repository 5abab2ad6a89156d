package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/partstrade/trade-service/internal/catalog"
	"github.com/partstrade/trade-service/internal/types"
)

// maxReasons caps the row-level reasons kept for the run summary.
const maxReasons = 50

// parse extracts canonical rows and moves the run to PARSED.
func (in *Ingestor) parse(ctx context.Context, req Request, columns types.ColumnMap, run *types.IngestionRun) (*types.ParseResult, error) {
	parsed, err := in.extractor.Extract(ctx, req.Content, req.Filename, columns)
	if err != nil {
		return nil, err
	}

	if len(parsed.Errors) > 0 {
		in.log.Warn().
			Str("runId", run.ID).
			Int("errorCount", len(parsed.Errors)).
			Msg("Rows skipped while parsing")
		for _, e := range parsed.Errors[:min(5, len(parsed.Errors))] {
			event := in.log.Debug().Str("runId", run.ID).Str("error", e.Message)
			if e.RowNumber != nil {
				event = event.Int("row", *e.RowNumber)
			}
			event.Msg("Parse error")
		}
	}

	run.TotalRows = parsed.TotalRows
	run.SkippedRows = len(parsed.Errors)
	if err := in.transition(ctx, run, types.StatusParsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

type matchResult struct {
	rows    []types.PriceRow
	created int
	skipped map[types.SkipReason]int
	reasons []string
}

func (m *matchResult) skip(reason types.SkipReason, msg string) {
	m.skipped[reason]++
	if len(m.reasons) < maxReasons {
		m.reasons = append(m.reasons, msg)
	}
}

func (m *matchResult) skippedTotal() int {
	n := 0
	for _, c := range m.skipped {
		n += c
	}
	return n
}

// match resolves every canonical row to a catalog part. Rows with an unknown
// brand or an empty code are skipped; a part seen twice keeps its first row.
func (in *Ingestor) match(ctx context.Context, repo catalog.Repository, req Request, parsed *types.ParseResult) (*matchResult, error) {
	res := &matchResult{skipped: make(map[types.SkipReason]int)}
	for _, e := range parsed.Errors {
		row := 0
		if e.RowNumber != nil {
			row = *e.RowNumber
		}
		res.skip(types.SkipParse, fmt.Sprintf("row %d: %s", row, e.Message))
	}

	matcher := catalog.NewMatcher(repo, in.log)
	seen := make(map[int64]struct{}, len(parsed.Rows))

	for _, row := range parsed.Rows {
		brand, ok, err := matcher.ResolveBrand(ctx, row.Brand, row.OEM)
		if err != nil {
			return nil, err
		}
		if !ok {
			res.skip(types.SkipUnresolvedBrand, fmt.Sprintf("row %d: unknown brand %q for %s", row.RowNumber, row.Brand, row.OEM))
			continue
		}

		part, created, err := matcher.GetOrCreate(ctx, row.OEM, brand.Brand, row.Name)
		if errors.Is(err, catalog.ErrInvalidOEM) {
			res.skip(types.SkipInvalidOEM, fmt.Sprintf("row %d: invalid oem %q", row.RowNumber, row.OEM))
			continue
		}
		if err != nil {
			return nil, err
		}
		if created {
			res.created++
		}

		if _, dup := seen[part.ID]; dup {
			res.skip(types.SkipDuplicate, fmt.Sprintf("row %d: %s %s repeats an earlier row", row.RowNumber, brand.Brand.Name, part.OEMNumber))
			continue
		}
		seen[part.ID] = struct{}{}

		res.rows = append(res.rows, types.PriceRow{
			AutoPartID: part.ID,
			BrandID:    brand.Brand.ID,
			Brand:      brand.Brand.Name,
			OEM:        part.OEMNumber,
			Name:       row.Name,
			Quantity:   row.Quantity,
			Price:      row.Price,
			ProviderID: req.ProviderID,
		})
	}
	return res, nil
}
