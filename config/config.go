package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/cad/api"
	"github.com/kilianp07/cad/core/dispatch"
	"github.com/kilianp07/cad/core/metrics"
	"github.com/kilianp07/cad/core/panicmode"
	"github.com/kilianp07/cad/infra/alert"
	"github.com/kilianp07/cad/infra/logger"
	"github.com/kilianp07/cad/infra/monitoring"
	"github.com/kilianp07/cad/infra/mqtt"
	"github.com/kilianp07/cad/infra/store/sqlite"
	"github.com/kilianp07/cad/infra/ws"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore, e.g. CAD_MQTT__BROKER.
const EnvPrefix = "CAD_"

type Config struct {
	HTTP      api.Config        `json:"http"`
	WS        ws.Config         `json:"ws"`
	Broadcast BroadcastConfig   `json:"broadcast"`
	Store     sqlite.Config     `json:"store"`
	Dispatch  dispatch.Config   `json:"dispatch"`
	Panic     panicmode.Config  `json:"panic"`
	Alert     alert.Config      `json:"alert"`
	MQTT      mqtt.Config       `json:"mqtt"`
	Metrics   metrics.Config    `json:"metrics"`
	Sentry    monitoring.Config `json:"sentry"`
	Logging   logger.Config     `json:"logging"`
	Journal   JournalConfig     `json:"journal"`
}

// BroadcastConfig sizes the per-subscriber buffers of the broadcaster.
type BroadcastConfig struct {
	Buffer int `json:"buffer"`
}

// SetDefaults applies sane defaults.
func (c *BroadcastConfig) SetDefaults() {
	if c.Buffer <= 0 {
		c.Buffer = 64
	}
}

// Load reads the configuration file at path, applies CAD_ environment
// overrides, fills defaults and validates every section. An empty path loads
// the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.HTTP.SetDefaults()
	c.WS.SetDefaults()
	c.Broadcast.SetDefaults()
	c.Store.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Panic.SetDefaults()
	c.Alert.SetDefaults()
	c.MQTT.SetDefaults()
	c.Sentry.SetDefaults()
	c.Logging.SetDefaults()
	c.Journal.SetDefaults()
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	return errors.Join(
		c.Dispatch.Validate(),
		c.Alert.Validate(),
		c.MQTT.Validate(),
		c.Metrics.Validate(),
		c.Sentry.Validate(),
		c.Logging.Validate(),
		c.Journal.Validate(),
	)
}
