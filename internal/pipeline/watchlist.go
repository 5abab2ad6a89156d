package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/partstrade/trade-service/internal/types"
)

// checkWatchlist logs a price check for every watched part of a new
// snapshot and alerts when the price reached the target or, for items that
// ask for it, moved beyond the noise floor since the last check.
func (in *Ingestor) checkWatchlist(ctx context.Context, providerID, priceListID int64, rows []types.PriceRow) error {
	if len(rows) == 0 {
		return nil
	}

	byPart := make(map[int64]types.PriceRow, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		byPart[r.AutoPartID] = r
		ids = append(ids, r.AutoPartID)
	}

	items, err := in.store.WatchItems(ctx, ids)
	if err != nil {
		return fmt.Errorf("load watch items: %w", err)
	}

	for _, item := range items {
		row, ok := byPart[item.AutoPartID]
		if !ok {
			continue
		}

		last, err := in.store.LastPriceCheck(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("load last check of watch item %d: %w", item.ID, err)
		}

		entry := types.PriceCheckLog{
			WatchItemID: item.ID,
			ProviderID:  providerID,
			PriceListID: priceListID,
			Price:       row.Price,
			CheckedAt:   in.now().UTC(),
		}
		if last != nil {
			entry.PreviousPrice = types.DecimalPtr(last.Price)
		}

		var reasons []string
		if item.TargetPrice != nil && row.Price.LessThanOrEqual(*item.TargetPrice) {
			reasons = append(reasons, fmt.Sprintf("at or below target %s", item.TargetPrice.StringFixed(2)))
		}
		if item.NotifyOnChange && last != nil && exceedsNoise(last.Price, row.Price, in.opts.Noise.PricePct) {
			reasons = append(reasons, fmt.Sprintf("changed from %s", last.Price.StringFixed(2)))
		}
		entry.Alerted = len(reasons) > 0

		if err := in.store.CreatePriceCheckLog(ctx, entry); err != nil {
			return fmt.Errorf("log check of watch item %d: %w", item.ID, err)
		}
		if entry.Alerted {
			in.notifier.Message(fmt.Sprintf("Watchlist: %s %s from provider %d costs %s (%s)",
				row.Brand, row.OEM, providerID, row.Price.StringFixed(2), strings.Join(reasons, "; ")))
		}
	}
	return nil
}
