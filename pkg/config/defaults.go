package config

import "time"

// Defaults returns the system defaults named throughout spec.md: 15
// iterations, 30 minute scan budget, thresholds of 20 findings / 100
// subdomains, and the concurrency/backpressure knobs tarsy-style services
// ship with out of the box.
func Defaults() *Config {
	return &Config{
		Router: RouterConfig{
			FindingThreshold:   20,
			SubdomainThreshold: 100,
			CacheTTL:           5 * time.Minute,
			CacheSize:          256,
		},
		Loop: LoopConfig{
			MaxIterations:    15,
			MaxScanDuration:  30 * time.Minute,
			MaxRepeatedCalls: 2,
			MaxFixupRetries:  2,
		},
		Engine: EngineConfig{
			MaxConcurrentToolExecutions: 4,
			KillGrace:                   5 * time.Second,
			SpawnBurst:                  4,
			SpawnPerSecond:              2,
		},
		EventBus: EventBusConfig{
			MaxLag:         512,
			RetentionGrace: 15 * time.Minute,
			SubscriberBuf:  256,
		},
		Providers: ProvidersConfig{
			Fast: ProviderEndpoint{
				Address:        "localhost:7401",
				Model:          "fast-tactical-v1",
				Temperature:    0.2,
				MaxTokens:      2048,
				Timeout:        20 * time.Second,
				CostPerKTokIn:  0.0005,
				CostPerKTokOut: 0.0015,
			},
			Deep: ProviderEndpoint{
				Address:        "localhost:7402",
				Model:          "deep-strategic-v1",
				Temperature:    0.2,
				MaxTokens:      4096,
				Timeout:        60 * time.Second,
				CostPerKTokIn:  0.005,
				CostPerKTokOut: 0.015,
			},
		},
		Masking: MaskingConfig{Enabled: true},
		Storage: StorageConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Cleanup: CleanupConfig{
			SweepInterval: 5 * time.Minute,
		},
		Scan: ScanConfig{
			OrphanCheckInterval: 2 * time.Minute,
			OrphanThreshold:     10 * time.Minute,
		},
	}
}
