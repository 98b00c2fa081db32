// Package config is the single Configuration value threaded through every
// redlance constructor. There are no package-level mutable globals here;
// the only process-scoped singleton in the system is the tool-execution
// worker pool (pkg/execengine), which is explicitly exempted by design.
package config

import "time"

// Config is the umbrella configuration object produced by Load and passed
// to every subsystem constructor.
type Config struct {
	Router    RouterConfig
	Loop      LoopConfig
	Engine    EngineConfig
	EventBus  EventBusConfig
	Providers ProvidersConfig
	Masking   MaskingConfig
	Storage   StorageConfig
	Cleanup   CleanupConfig
	Scan      ScanConfig
}

// RouterConfig holds the Hybrid Router's thresholds (spec §4.5).
type RouterConfig struct {
	FindingThreshold   int `yaml:"finding_threshold"`
	SubdomainThreshold int `yaml:"subdomain_threshold"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`
	CacheSize          int           `yaml:"cache_size"`
}

// LoopConfig holds the Agent Loop's budgets (spec §4.6).
type LoopConfig struct {
	MaxIterations    int           `yaml:"max_iterations"`
	MaxScanDuration  time.Duration `yaml:"max_scan_duration"`
	BudgetUSD        *float64      `yaml:"budget_usd,omitempty"`
	MaxRepeatedCalls int           `yaml:"max_repeated_calls"`
	MaxFixupRetries  int           `yaml:"max_fixup_retries"`
}

// EngineConfig holds the Tool Execution Engine's resource limits (spec §4.1).
type EngineConfig struct {
	MaxConcurrentToolExecutions int           `yaml:"max_concurrent_tool_executions"`
	KillGrace                   time.Duration `yaml:"kill_grace"`
	SpawnBurst                  int           `yaml:"spawn_burst"`
	SpawnPerSecond              float64       `yaml:"spawn_per_second"`
}

// EventBusConfig holds the Event Bus's backpressure and retention limits (spec §4.7).
type EventBusConfig struct {
	MaxLag          int           `yaml:"max_lag"`
	RetentionGrace  time.Duration `yaml:"retention_grace"`
	SubscriberBuf   int           `yaml:"subscriber_buffer"`
}

// ProvidersConfig holds endpoints/credentials for the two LLM provider tiers.
type ProvidersConfig struct {
	Fast ProviderEndpoint `yaml:"fast"`
	Deep ProviderEndpoint `yaml:"deep"`
}

// ProviderEndpoint describes how to reach one LLM provider backend.
type ProviderEndpoint struct {
	Address     string        `yaml:"address"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int32         `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	CostPerKTokIn  float64    `yaml:"cost_per_1k_tokens_in"`
	CostPerKTokOut float64    `yaml:"cost_per_1k_tokens_out"`
}

// MaskingConfig toggles tool-output redaction (supplemental feature, see SPEC_FULL.md).
type MaskingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StorageConfig selects and configures the storage collaborator backing
// PutScan/AppendStep/UpsertFinding/FinalizeScan (spec §4.8). An empty DSN
// keeps the in-memory store, the default for tests and single-pod runs.
type StorageConfig struct {
	DSN             string        `yaml:"dsn,omitempty"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CleanupConfig governs the background sweep that purges terminal scans'
// retained event history (spec §4.7 retention grace; supplemental
// retention policy). Storage records are not touched by the sweep.
type CleanupConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// ScanConfig governs the Scan Controller's orphan-recovery sweep: scans
// left in ScanStatusRunning with no live Agent Loop goroutine, either
// because this process crashed or because another pod died mid-scan.
type ScanConfig struct {
	OrphanCheckInterval time.Duration `yaml:"orphan_check_interval"`
	OrphanThreshold     time.Duration `yaml:"orphan_threshold"`
}
