package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/partstrade/trade-service/internal/app"
	"github.com/partstrade/trade-service/internal/restock"
)

var (
	restockBudget    string
	restockThreshold string
	restockJSON      bool
)

var restockCmd = &cobra.Command{
	Use:   "restock",
	Short: "Plan restock purchases within a budget",
	Long: `Find parts whose own stock fell below the trigger band, source each from supplier
pricelists or the marketplace under its historical price cap and record the decisions.`,
	Example: `  trade-service restock --budget 150000
  trade-service restock --budget 50000 --threshold 80 --json`,
	Args: cobra.NoArgs,
	RunE: runRestock,
}

func init() {
	rootCmd.AddCommand(restockCmd)

	restockCmd.Flags().StringVar(&restockBudget, "budget", "", "Spending budget (required)")
	restockCmd.Flags().StringVar(&restockThreshold, "threshold", "", "Trigger band in percent of the minimum balance")
	restockCmd.Flags().BoolVar(&restockJSON, "json", false, "Print the result as JSON")
	restockCmd.MarkFlagRequired("budget")
}

func runRestock(cmd *cobra.Command, args []string) error {
	budget, err := decimal.NewFromString(restockBudget)
	if err != nil {
		return fmt.Errorf("invalid --budget %q", restockBudget)
	}
	req := restock.Request{Budget: budget}
	if restockThreshold != "" {
		th, err := decimal.NewFromString(restockThreshold)
		if err != nil {
			return fmt.Errorf("invalid --threshold %q", restockThreshold)
		}
		req.ThresholdPercent = &th
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		res, err := a.Restock.Run(ctx, req)
		if err != nil {
			return err
		}
		if restockJSON {
			return printJSON(res)
		}

		fmt.Printf("Run %s: %d candidates, %d decisions, spent %s of %s, %d ordered\n\n",
			res.RunID, res.Candidates, len(res.Decisions), res.Spent.StringFixed(2), res.Budget.StringFixed(2), res.Ordered)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BRAND\tOEM\tQTY\tPRICE\tTOTAL\tSOURCE")
		for _, d := range res.Decisions {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				d.Brand, d.OEM, d.Quantity, d.UnitPrice.StringFixed(2), d.Total.StringFixed(2), d.Offer.Source)
		}
		w.Flush()

		for _, s := range res.Skipped {
			fmt.Printf("  skipped %s %s: %s\n", s.Brand, s.OEM, s.Reason)
		}
		return nil
	})
}
