package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/partstrade/trade-service/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|status|version|redo|reset|up-to|down-to] [version]",
	Short: "Apply database migrations",
	Example: `  trade-service migrate up
  trade-service migrate status
  trade-service migrate down-to 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfig(); err != nil {
			return err
		}
		logger.Info().Str("command", args[0]).Msg("Running migrations")
		return database.Migrate(context.Background(), cfg.Database.URL, args[0], args[1:]...)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
