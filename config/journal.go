package config

import (
	"fmt"

	"github.com/kilianp07/cad/core/dispatch/logging"
)

// JournalConfig defines settings for command journal storage and rotation.
type JournalConfig struct {
	// Backend selects the store type: "none", "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the journal.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	// Zero disables rotation of the jsonl backend.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *JournalConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "journal.log"
	}
}

// Validate checks mandatory fields.
func (c JournalConfig) Validate() error {
	switch c.Backend {
	case "none", "jsonl", "sqlite":
	default:
		return fmt.Errorf("journal: unknown backend %s", c.Backend)
	}
	if c.Backend != "none" && c.Path == "" {
		return fmt.Errorf("journal: path is required")
	}
	return nil
}

// Open builds the configured store. It returns nil for the "none" backend.
func (c JournalConfig) Open() (logging.LogStore, error) {
	switch c.Backend {
	case "none":
		return nil, nil
	case "sqlite":
		return logging.NewSQLiteStore(c.Path)
	case "jsonl":
		if c.MaxSizeMB > 0 {
			return logging.NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
		}
		return logging.NewJSONLStore(c.Path)
	}
	return nil, fmt.Errorf("journal: unknown backend %s", c.Backend)
}
