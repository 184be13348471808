package dispatch

import "fmt"

// Config defines dispatch-related settings.
type Config struct {
	// MaxAssignmentsPerUnit bounds the open calls one unit may be linked to.
	// Zero means unlimited.
	MaxAssignmentsPerUnit int `json:"max_assignments_per_unit"`
	// EndCallRetries bounds how often EndCall re-reads a call whose unit list
	// changed while its locks were being taken.
	EndCallRetries int `json:"end_call_retries"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.EndCallRetries <= 0 {
		c.EndCallRetries = 3
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.MaxAssignmentsPerUnit < 0 {
		return fmt.Errorf("dispatch: max_assignments_per_unit must be >= 0, got %d", c.MaxAssignmentsPerUnit)
	}
	return nil
}
