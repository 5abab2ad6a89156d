package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/partstrade/trade-service/internal/app"
	"github.com/partstrade/trade-service/internal/pipeline"
	"github.com/partstrade/trade-service/internal/types"
)

var (
	ingestProvider int64
	ingestConfigID int64
	ingestColumns  string
	ingestDedupKey string
	ingestJSON     bool
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest supplier pricelist files",
	Long: `Run the ingestion pipeline (parse, match, persist) for one or more supplier files.
Each file becomes a new pricelist snapshot of the provider. The column map comes from
the provider config given with --config-id, or from --columns.`,
	Example: `  trade-service ingest ./prices.xlsx --provider 3 --config-id 7
  trade-service ingest ./a.csv ./b.csv --provider 3 --columns '{"oem_col":1,"qty_col":3,"price_col":4}'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().Int64Var(&ingestProvider, "provider", 0, "Provider ID (required)")
	ingestCmd.Flags().Int64Var(&ingestConfigID, "config-id", 0, "Provider pricelist config ID")
	ingestCmd.Flags().StringVar(&ingestColumns, "columns", "", "Column map as JSON, overrides the config")
	ingestCmd.Flags().StringVar(&ingestDedupKey, "dedup-key", "", "Delivery key; a persisted run with the same key and content is skipped")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "Print results as JSON")
	ingestCmd.MarkFlagRequired("provider")
}

func runIngest(cmd *cobra.Command, args []string) error {
	base := pipeline.Request{
		ProviderID: ingestProvider,
		Source:     types.SourceCLI,
		DedupKey:   ingestDedupKey,
	}
	if ingestConfigID > 0 {
		base.ConfigID = &ingestConfigID
	}
	if ingestColumns != "" {
		var cm types.ColumnMap
		if err := json.Unmarshal([]byte(ingestColumns), &cm); err != nil {
			return fmt.Errorf("invalid --columns: %w", err)
		}
		base.Columns = &cm
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		var failed []string
		for _, path := range args {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			req := base
			req.Filename = filepath.Base(path)
			req.Content = content

			res, err := a.Ingestor.Ingest(ctx, req)
			if err != nil {
				logger.Error().Err(err).Str("file", path).Msg("Ingestion failed")
				failed = append(failed, path)
				continue
			}

			if ingestJSON {
				if err := printJSON(res); err != nil {
					return err
				}
				continue
			}
			printIngestSummary(path, res)
		}

		if len(failed) > 0 {
			return fmt.Errorf("%d of %d files failed: %s", len(failed), len(args), strings.Join(failed, ", "))
		}
		return nil
	})
}

func printIngestSummary(path string, res *pipeline.Result) {
	fmt.Printf("%s\n", path)
	fmt.Printf("  run:      %s (%s)\n", res.Run.ID, res.Run.Status)
	if res.Duplicate {
		fmt.Printf("  skipped:  already ingested\n")
		return
	}
	fmt.Printf("  rows:     %d total, %d valid, %d skipped\n", res.Run.TotalRows, res.Run.ValidRows, res.Run.SkippedRows)
	fmt.Printf("  parts:    %d created\n", res.Run.CreatedParts)
	if res.PriceList != nil {
		fmt.Printf("  snapshot: %d with %d positions\n", res.PriceList.ID, len(res.PriceList.Associations))
	}
	for reason, n := range res.Skipped {
		fmt.Printf("  skipped %-17s %d\n", string(reason)+":", n)
	}
}
