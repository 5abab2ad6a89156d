package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/partstrade/trade-service/internal/types"
)

// staleAlertInterval is the minimum gap between two alerts for one config.
const staleAlertInterval = 24 * time.Hour

// CheckStalePricelists alerts for every provider config whose newest
// snapshot is older than its MaxDaysWithoutUpdate. Configs without a limit
// or without any snapshot yet are ignored. It returns the configs alerted.
func (in *Ingestor) CheckStalePricelists(ctx context.Context, now time.Time) ([]types.PriceListStaleAlert, error) {
	rows, err := in.store.ProviderFreshness(ctx)
	if err != nil {
		return nil, fmt.Errorf("load provider freshness: %w", err)
	}

	var alerts []types.PriceListStaleAlert
	for _, f := range rows {
		cfg := f.Config
		if cfg.MaxDaysWithoutUpdate <= 0 || f.LastPriceAt == nil {
			continue
		}

		age := now.Sub(*f.LastPriceAt)
		limit := time.Duration(cfg.MaxDaysWithoutUpdate) * 24 * time.Hour
		if age <= limit {
			continue
		}
		if cfg.LastStaleAlertAt != nil && now.Sub(*cfg.LastStaleAlertAt) < staleAlertInterval {
			continue
		}

		alert := types.PriceListStaleAlert{
			ProviderID:  cfg.ProviderID,
			ConfigID:    cfg.ID,
			LastPriceAt: *f.LastPriceAt,
			DaysStale:   int(age / (24 * time.Hour)),
			AlertedAt:   now.UTC(),
		}
		if err := in.store.CreateStaleAlert(ctx, alert); err != nil {
			return alerts, fmt.Errorf("record stale alert for config %d: %w", cfg.ID, err)
		}

		in.notifier.Message(fmt.Sprintf("Pricelist %q of %s was last updated %s (%d days ago, limit %d)",
			cfg.Name, f.ProviderName, f.LastPriceAt.Format("2006-01-02"), alert.DaysStale, cfg.MaxDaysWithoutUpdate))
		in.metrics.RecordStaleAlert()
		alerts = append(alerts, alert)
	}

	in.log.Info().Int("checked", len(rows)).Int("alerted", len(alerts)).Msg("Stale pricelist check finished")
	return alerts, nil
}
