package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/partstrade/trade-service/internal/app"
	"github.com/partstrade/trade-service/internal/parsers"
	"github.com/partstrade/trade-service/internal/types"
)

var (
	parseColumns string
	parseOutput  string
	parseLimit   int
)

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a local supplier file without touching the database",
	Long: `Parse a local supplier file (CSV, XLS, XLSX, or a ZIP/RAR holding one) with the
given column map and print the canonical rows and the rows that were skipped.`,
	Example: `  trade-service parse ./prices.xlsx --columns '{"start_row":1,"oem_col":1,"brand_col":2,"qty_col":4,"price_col":5}'
  trade-service parse ./prices.zip --columns '{"oem_col":1,"qty_col":2,"price_col":3}' --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVar(&parseColumns, "columns", "", "Column map as JSON (required)")
	parseCmd.Flags().StringVar(&parseOutput, "output", "table", "Output format: table or json")
	parseCmd.Flags().IntVar(&parseLimit, "limit", 20, "Rows to print in table output")
	parseCmd.MarkFlagRequired("columns")
}

func runParse(cmd *cobra.Command, args []string) error {
	var cm types.ColumnMap
	if err := json.Unmarshal([]byte(parseColumns), &cm); err != nil {
		return fmt.Errorf("invalid --columns: %w", err)
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	opts := parsers.DefaultOptions()
	if cfg != nil {
		opts = app.ExtractOptions(cfg)
	}
	extractor := parsers.NewExtractor(opts, logger)

	result, err := extractor.Extract(context.Background(), content, filepath.Base(args[0]), cm)
	if err != nil {
		return err
	}

	if parseOutput == "json" {
		return printJSON(result)
	}
	printParseTable(result)
	return nil
}

func printParseTable(result *types.ParseResult) {
	fmt.Printf("Rows: %d total, %d valid, %d errors, %d warnings\n\n",
		result.TotalRows, result.ValidRows, len(result.Errors), len(result.Warnings))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tBRAND\tOEM\tNAME\tQTY\tPRICE")
	for i, r := range result.Rows {
		if i >= parseLimit {
			fmt.Fprintf(w, "...\t\t\t\t\t\n")
			break
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", r.RowNumber, r.Brand, r.OEM, r.Name, r.Quantity, r.Price.StringFixed(2))
	}
	w.Flush()

	if len(result.Errors) == 0 {
		return
	}
	fmt.Println("\nSkipped rows:")
	for i, e := range result.Errors {
		if i >= parseLimit {
			fmt.Printf("  ... and %d more\n", len(result.Errors)-i)
			break
		}
		row := 0
		if e.RowNumber != nil {
			row = *e.RowNumber
		}
		fmt.Printf("  row %d: %s\n", row, e.Message)
	}
}
