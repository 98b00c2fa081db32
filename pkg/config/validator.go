package config

import "fmt"

// Validate checks the invariants the rest of redlance assumes hold: all
// budgets and thresholds positive, provider endpoints non-empty.
func Validate(c *Config) error {
	if c.Router.FindingThreshold <= 0 {
		return &ValidationError{Field: "router.finding_threshold", Err: fmt.Errorf("must be > 0")}
	}
	if c.Router.SubdomainThreshold <= 0 {
		return &ValidationError{Field: "router.subdomain_threshold", Err: fmt.Errorf("must be > 0")}
	}
	if c.Loop.MaxIterations <= 0 {
		return &ValidationError{Field: "loop.max_iterations", Err: fmt.Errorf("must be > 0")}
	}
	if c.Loop.MaxScanDuration <= 0 {
		return &ValidationError{Field: "loop.max_scan_duration", Err: fmt.Errorf("must be > 0")}
	}
	if c.Loop.MaxRepeatedCalls <= 0 {
		return &ValidationError{Field: "loop.max_repeated_calls", Err: fmt.Errorf("must be > 0")}
	}
	if c.Engine.MaxConcurrentToolExecutions <= 0 {
		return &ValidationError{Field: "engine.max_concurrent_tool_executions", Err: fmt.Errorf("must be > 0")}
	}
	if c.EventBus.MaxLag <= 0 {
		return &ValidationError{Field: "event_bus.max_lag", Err: fmt.Errorf("must be > 0")}
	}
	if c.Providers.Fast.Address == "" {
		return &ValidationError{Field: "providers.fast.address", Err: fmt.Errorf("must be set")}
	}
	if c.Providers.Deep.Address == "" {
		return &ValidationError{Field: "providers.deep.address", Err: fmt.Errorf("must be set")}
	}
	return nil
}
