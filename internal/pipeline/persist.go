package pipeline

import (
	"context"
	"fmt"

	"github.com/partstrade/trade-service/internal/types"
)

// persist matches rows and writes the snapshot in one transaction. The run
// is MATCHED once every row is resolved and PERSISTED after commit.
func (in *Ingestor) persist(ctx context.Context, req Request, configID *int64, parsed *types.ParseResult, run *types.IngestionRun) (*matchResult, *types.PriceList, error) {
	var (
		matched *matchResult
		saved   *types.PriceList
	)

	err := in.store.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		matched, err = in.match(txCtx, in.store, req, parsed)
		if err != nil {
			return err
		}
		if len(matched.rows) == 0 {
			return &NoValidRowsError{TotalRows: parsed.TotalRows, Skipped: matched.skippedTotal()}
		}

		run.ValidRows = len(matched.rows)
		run.SkippedRows = matched.skippedTotal()
		run.CreatedParts = matched.created
		// run records live outside the snapshot transaction
		if err := in.transition(ctx, run, types.StatusMatched); err != nil {
			return err
		}

		pl := types.PriceList{
			ProviderID:   req.ProviderID,
			ConfigID:     configID,
			Date:         in.now().UTC(),
			IsActive:     true,
			Associations: make([]types.PriceListAssociation, 0, len(matched.rows)),
		}
		for _, r := range matched.rows {
			pl.Associations = append(pl.Associations, types.PriceListAssociation{
				AutoPartID: r.AutoPartID,
				Quantity:   r.Quantity,
				Price:      r.Price,
			})
		}

		saved, err = in.store.CreatePriceList(txCtx, pl)
		if err != nil {
			return fmt.Errorf("create pricelist: %w", err)
		}
		return nil
	})
	if err != nil {
		// parts created inside the transaction were rolled back with it
		run.CreatedParts = 0
		return nil, nil, err
	}

	run.PriceListID = types.Int64Ptr(saved.ID)
	if err := in.transition(ctx, run, types.StatusPersisted); err != nil {
		// the snapshot is committed; only the run record is stale
		in.log.Error().Err(err).Str("runId", run.ID).Msg("Failed to mark run persisted")
	}
	return matched, saved, nil
}
