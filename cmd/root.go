package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/cad/app"
	"github.com/kilianp07/cad/config"
	"github.com/kilianp07/cad/infra/logger"
)

var cfgPath string

// version is set at build time with -ldflags "-X github.com/kilianp07/cad/cmd.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:          "cad",
	Short:        "Dispatch and unit status service",
	Long:         "cad serves the dispatch API, the websocket feed and the MQTT bridge until interrupted.",
	Version:      version,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file (empty reads the environment only)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
