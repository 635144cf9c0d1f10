package config

import "fmt"

// PlanningConfig defines which schedule entities the service manages and how
// submissions behave.
type PlanningConfig struct {
	// Entities lists configured entity identifiers. When empty, live planning
	// entities are discovered automatically.
	Entities []string `json:"entities"`
	// SubmitTimeoutSeconds bounds how long a submission waits for the device.
	SubmitTimeoutSeconds int `json:"submit_timeout_seconds"`
	// RefreshIntervalSeconds is the cloud polling period.
	RefreshIntervalSeconds int `json:"refresh_interval_seconds"`
	// HTTPAddr is the listen address of the planning API.
	HTTPAddr string `json:"http_addr"`
}

// SetDefaults applies sane defaults.
func (c *PlanningConfig) SetDefaults() {
	if c.SubmitTimeoutSeconds <= 0 {
		c.SubmitTimeoutSeconds = 12
	}
	if c.RefreshIntervalSeconds <= 0 {
		c.RefreshIntervalSeconds = 300
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8086"
	}
}

// Validate checks field consistency.
func (c PlanningConfig) Validate() error {
	if c.SubmitTimeoutSeconds <= 0 {
		return fmt.Errorf("submit_timeout_seconds must be positive")
	}
	if c.RefreshIntervalSeconds <= 0 {
		return fmt.Errorf("refresh_interval_seconds must be positive")
	}
	return nil
}
