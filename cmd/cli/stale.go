package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/partstrade/trade-service/internal/app"
)

var staleCheckCmd = &cobra.Command{
	Use:   "stale-check",
	Short: "Alert on providers whose pricelists stopped arriving",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			alerts, err := a.Ingestor.CheckStalePricelists(ctx, time.Now())
			if err != nil {
				return err
			}
			for _, al := range alerts {
				fmt.Printf("provider %d config %d: %d days since %s\n",
					al.ProviderID, al.ConfigID, al.DaysStale, al.LastPriceAt.Format("2006-01-02"))
			}
			fmt.Printf("%d stale pricelists\n", len(alerts))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(staleCheckCmd)
}
