package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"

	"github.com/kilianp07/cad/config"
	"github.com/kilianp07/cad/infra/logger"
	"github.com/kilianp07/cad/infra/store/sqlite"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load statuses, departments, units and calls from a fixture file",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "fixture file (yaml or json)")
	_ = seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)
}

func loadFixtures(path string) (sqlite.Fixtures, error) {
	var f sqlite.Fixtures
	var parser koanf.Parser = yaml.Parser()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		parser = json.Parser()
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return f, fmt.Errorf("read %s: %w", path, err)
	}
	if err := k.UnmarshalWithConf("", &f, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return f, fmt.Errorf("decode %s: %w", path, err)
	}
	return f, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fixtures, err := loadFixtures(seedFile)
	if err != nil {
		return err
	}
	st, err := sqlite.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	if err := st.Seed(cmd.Context(), fixtures); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	logger.New("seed").Infof("seeded %d units and %d calls",
		len(fixtures.Officers)+len(fixtures.Deputies)+len(fixtures.Combined), len(fixtures.Calls))
	return nil
}
