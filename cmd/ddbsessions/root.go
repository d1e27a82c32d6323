package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/jjeffery/ddbsessions/internal/config"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ddbsessions",
	Short: "HTTP session storage in DynamoDB",
	Long: `ddbsessions manages HTTP session storage compatible with aiohttp-session.

Sessions are stored in DynamoDB by default. PostgreSQL, Redis and memory
backends are also available.

Configuration:
  Config is loaded from ddbsessions.yaml in the current directory or
  /etc/ddbsessions/. Environment variables override config values with
  the DDBSESSIONS_ prefix.
  Example: DDBSESSIONS_DYNAMODB_TABLE=sessions`,
	SilenceUsage: true,
}

// Execute runs the root command. The command's context is canceled
// on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ddbsessions.yaml)")
	rootCmd.AddCommand(provisionCmd, serveCmd)
}

// loadConfig reads the configuration and creates the logger it describes.
func loadConfig() (*config.Config, hclog.Logger, error) {
	cfg, err := config.Load(config.New(cfgFile))
	if err != nil {
		return nil, nil, err
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "ddbsessions",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})
	return cfg, logger, nil
}
