package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/partstrade/trade-service/internal/app"
)

var synonymCmd = &cobra.Command{
	Use:   "synonym",
	Short: "Maintain brand synonyms",
}

var synonymAddCmd = &cobra.Command{
	Use:     "add <brand-id> <synonym-id>",
	Short:   "Link two brands as synonyms",
	Example: "  trade-service synonym add 12 48",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSynonym(args, func(ctx context.Context, a *app.App, x, y int64) error {
			return a.DB.AddSynonym(ctx, x, y)
		})
	},
}

var synonymRemoveCmd = &cobra.Command{
	Use:   "remove <brand-id> <synonym-id>",
	Short: "Unlink two brands",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSynonym(args, func(ctx context.Context, a *app.App, x, y int64) error {
			return a.DB.RemoveSynonym(ctx, x, y)
		})
	},
}

func init() {
	synonymCmd.AddCommand(synonymAddCmd, synonymRemoveCmd)
	rootCmd.AddCommand(synonymCmd)
}

func runSynonym(args []string, fn func(ctx context.Context, a *app.App, x, y int64) error) error {
	ids := make([]int64, 2)
	for i, s := range args {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid brand id %q", s)
		}
		ids[i] = id
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		if err := fn(ctx, a, ids[0], ids[1]); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	})
}
