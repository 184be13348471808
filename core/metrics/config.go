package metrics

import (
	"fmt"

	"github.com/kilianp07/cad/core/factory"
)

// Config lists the sinks fed with dispatch activity.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}

// Validate rejects sink entries without a type. Unknown types are reported by
// NewMetricsSink, once every sink package has registered.
func (c Config) Validate() error {
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("metrics: sinks[%d] has no type", i)
		}
	}
	return nil
}
