package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/partstrade/trade-service/internal/aggregate"
	"github.com/partstrade/trade-service/internal/app"
)

var (
	buildEmail bool
	buildOut   string
)

var buildPriceListCmd = &cobra.Command{
	Use:   "build-pricelist <config-id>",
	Short: "Build and persist a customer pricelist",
	Long: `Aggregate the enabled sources of a customer pricelist config, apply markups,
filters and substitutions, persist the snapshot and write the xlsx export.`,
	Example: `  trade-service build-pricelist 12 --out ./exports
  trade-service build-pricelist 12 --email`,
	Args: cobra.ExactArgs(1),
	RunE: runBuildPriceList,
}

func init() {
	rootCmd.AddCommand(buildPriceListCmd)

	buildPriceListCmd.Flags().BoolVar(&buildEmail, "email", false, "E-mail the export to the config's address")
	buildPriceListCmd.Flags().StringVar(&buildOut, "out", "", "Directory to write the xlsx export to")
}

func runBuildPriceList(cmd *cobra.Command, args []string) error {
	configID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid config id %q", args[0])
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		res, err := a.Builder.Build(ctx, configID, aggregate.BuildOptions{Email: buildEmail})
		if err != nil {
			return err
		}

		fmt.Printf("Pricelist %d: %d rows (emailed: %t)\n", res.PriceList.ID, res.Rows, res.Emailed)
		for _, w := range res.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}

		if buildOut == "" {
			return nil
		}
		path := filepath.Join(buildOut, res.Filename)
		if err := os.WriteFile(path, res.Export, 0o644); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		fmt.Printf("Export written to %s\n", path)
		return nil
	})
}
