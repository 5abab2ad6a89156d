package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/partstrade/trade-service/internal/app"
	"github.com/partstrade/trade-service/internal/orders"
)

var (
	reconcileCustomer int64
	reconcileSubject  string
	reconcileUID      int64
	reconcileOut      string
	reconcileJSON     bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <file>",
	Short: "Reconcile a customer order file",
	Long: `Match every line of a customer order file against live offers, write the
confirmed quantities back into the file and fan accepted lines out to supplier and
stock orders. A file already processed for the customer is skipped.`,
	Example: `  trade-service reconcile ./order.xlsx --customer 5 --out ./replies
  trade-service reconcile ./order.csv --customer 5 --subject "Order 12345" --uid 811`,
	Args: cobra.ExactArgs(1),
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().Int64Var(&reconcileCustomer, "customer", 0, "Customer ID (required)")
	reconcileCmd.Flags().StringVar(&reconcileSubject, "subject", "", "Mail subject used for order number extraction")
	reconcileCmd.Flags().Int64Var(&reconcileUID, "uid", 0, "Mailbox UID of the message, advances the watermark")
	reconcileCmd.Flags().StringVar(&reconcileOut, "out", "", "Directory for the rewritten file and the reject report")
	reconcileCmd.Flags().BoolVar(&reconcileJSON, "json", false, "Print the result as JSON")
	reconcileCmd.MarkFlagRequired("customer")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	req := orders.Request{
		CustomerID: reconcileCustomer,
		Filename:   filepath.Base(args[0]),
		Content:    content,
		Subject:    reconcileSubject,
	}
	if reconcileUID > 0 {
		req.UID = &reconcileUID
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		res, err := a.Reconciler.Reconcile(ctx, req)
		if err != nil {
			return err
		}

		if reconcileJSON {
			if err := printJSON(res); err != nil {
				return err
			}
		} else {
			printReconcileSummary(res)
		}
		return writeReconcileOutputs(res)
	})
}

func printReconcileSummary(res *orders.Result) {
	if res.Duplicate {
		fmt.Printf("Order file already processed (order %s)\n", res.Order.OrderNumber)
		return
	}
	fmt.Printf("Order %s: %d accepted, %d rejected, %d lines skipped\n",
		res.Order.OrderNumber, res.Accepted, res.Rejected, len(res.Skipped))
	fmt.Printf("  supplier orders: %d\n", len(res.SupplierOrders))
	if res.StockOrder != nil {
		fmt.Printf("  stock order:     %d lines\n", len(res.StockOrder.Items))
	}
	for _, w := range res.Warnings {
		level := "warning"
		if w.Critical {
			level = "critical"
		}
		fmt.Printf("  %s: row %d %s %s expected %s offered %s (%s%%)\n",
			level, w.RowIndex, w.Brand, w.OEM, w.Expected.StringFixed(2), w.Offered.StringFixed(2), w.DiffPct.StringFixed(2))
	}
}

func writeReconcileOutputs(res *orders.Result) error {
	if reconcileOut == "" || res.Duplicate {
		return nil
	}
	if res.Output != nil {
		path := filepath.Join(reconcileOut, res.Output.Filename)
		if err := os.WriteFile(path, res.Output.Content, 0o644); err != nil {
			return fmt.Errorf("failed to write reply file: %w", err)
		}
		fmt.Printf("Reply file written to %s\n", path)
	}
	if len(res.RejectReport) > 0 {
		path := filepath.Join(reconcileOut, "rejected_"+res.Order.OrderNumber+".xlsx")
		if err := os.WriteFile(path, res.RejectReport, 0o644); err != nil {
			return fmt.Errorf("failed to write reject report: %w", err)
		}
		fmt.Printf("Reject report written to %s\n", path)
	}
	return nil
}
