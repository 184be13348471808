package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/cad/config"
	"github.com/kilianp07/cad/infra/logger"
	"github.com/kilianp07/cad/infra/store/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := sqlite.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.New("migrate").Infof("schema up to date at %s", cfg.Store.Path)
	return st.Close()
}
