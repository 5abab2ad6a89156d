package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/partstrade/trade-service/config"
	"github.com/partstrade/trade-service/internal/app"
)

var (
	cfgFile string
	cfg     *config.Config
	cfgErr  error
	logger  = zerolog.Nop()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trade-service",
	Short: "Trade Service CLI - supplier pricelists, customer orders and restock",
	Long: `A CLI for the auto-parts trade pipeline: ingest supplier pricelists, build
customer pricelists, reconcile customer order files, plan restock purchases and
maintain the catalog.`,
	SilenceUsage:      true,
	PersistentPreRunE: persistentPreRun,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
}

// persistentPreRun loads the configuration and the logger. A command that
// needs them fails later through requireConfig.
func persistentPreRun(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	cfg, cfgErr = config.Load(cfgFile)

	logCfg := config.LoggingConfig{Level: "info", Format: "console"}
	if cfg != nil {
		logCfg = cfg.Logging
		if logCfg.Format == "json" && isTerminal() {
			logCfg.Format = "console"
		}
	}
	logger = app.NewLogger(logCfg, "trade-service-cli")
	return nil
}

func requireConfig() error {
	if cfg == nil {
		return fmt.Errorf("configuration required: %w", cfgErr)
	}
	return nil
}

// withApp connects every component, runs fn and closes them again.
func withApp(fn func(ctx context.Context, a *app.App) error) (err error) {
	if err := requireConfig(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, a.Close(context.Background()))
	}()

	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
