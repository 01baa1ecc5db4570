package dispatch

// Config holds dispatch engine tuning loaded from configuration.
type Config struct {
	// OpTimeoutSeconds bounds every store operation issued by the manager.
	// Store calls fail fast instead of holding callers.
	OpTimeoutSeconds int `json:"op_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.OpTimeoutSeconds <= 0 {
		c.OpTimeoutSeconds = 5
	}
}
