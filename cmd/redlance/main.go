// Redlance orchestrator server - provides HTTP/WebSocket API and drives
// AI-assisted penetration-testing scans end to end.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/redlance/redlance/pkg/agentloop"
	"github.com/redlance/redlance/pkg/cleanup"
	"github.com/redlance/redlance/pkg/config"
	"github.com/redlance/redlance/pkg/events"
	"github.com/redlance/redlance/pkg/execengine"
	"github.com/redlance/redlance/pkg/finding"
	"github.com/redlance/redlance/pkg/llmprovider"
	"github.com/redlance/redlance/pkg/masking"
	"github.com/redlance/redlance/pkg/router"
	"github.com/redlance/redlance/pkg/scan"
	"github.com/redlance/redlance/pkg/storage"
	"github.com/redlance/redlance/pkg/toolbox"
	"github.com/redlance/redlance/pkg/transport"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	configFile := flag.String("config-file", getEnv("CONFIG_FILE", ""), "Path to a YAML config file overlaid onto defaults")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	ginMode := getEnv("GIN_MODE", "debug")
	gin.SetMode(ginMode)

	log.Printf("Starting Redlance")
	log.Printf("HTTP Port: %s", httpPort)

	ctx := context.Background()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := newStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	if closer, ok := store.(*storage.PostgresStore); ok {
		defer closer.Close()
	}
	slog.Info("storage initialized")

	bus := events.NewBus(cfg.EventBus.MaxLag, cfg.EventBus.RetentionGrace)

	podID := getEnv("POD_ID", "redlance-local")
	if err := scan.CleanupStartupOrphans(ctx, store, bus); err != nil {
		slog.Error("startup orphan cleanup failed", "error", err)
	}

	providers, err := llmprovider.NewTiers(
		llmprovider.EndpointConfig{
			Address:        cfg.Providers.Fast.Address,
			APIKey:         cfg.Providers.Fast.APIKey,
			Model:          cfg.Providers.Fast.Model,
			Timeout:        cfg.Providers.Fast.Timeout,
			CostPerKTokIn:  cfg.Providers.Fast.CostPerKTokIn,
			CostPerKTokOut: cfg.Providers.Fast.CostPerKTokOut,
		},
		llmprovider.EndpointConfig{
			Address:        cfg.Providers.Deep.Address,
			APIKey:         cfg.Providers.Deep.APIKey,
			Model:          cfg.Providers.Deep.Model,
			Timeout:        cfg.Providers.Deep.Timeout,
			CostPerKTokIn:  cfg.Providers.Deep.CostPerKTokIn,
			CostPerKTokOut: cfg.Providers.Deep.CostPerKTokOut,
		},
	)
	if err != nil {
		log.Fatalf("Failed to dial LLM provider tiers: %v", err)
	}
	defer providers.CloseAll()

	registry := toolbox.NewRegistry()
	engine := execengine.NewEngine(
		cfg.Engine.MaxConcurrentToolExecutions,
		cfg.Engine.SpawnPerSecond,
		cfg.Engine.SpawnBurst,
		cfg.Engine.KillGrace,
	)
	// Placeholder only: Controller.Run replaces this with a fresh
	// Normalizer for every scan, since its dedup set must not outlive one run.
	normalizer := finding.NewNormalizer()
	masker := masking.NewService(cfg.Masking.Enabled)

	var cache *router.Cache
	if cfg.Router.CacheSize > 0 {
		cache = router.NewCache(cfg.Router.CacheSize, cfg.Router.CacheTTL)
	}
	thresholds := router.Thresholds{
		FindingThreshold:   cfg.Router.FindingThreshold,
		SubdomainThreshold: cfg.Router.SubdomainThreshold,
	}

	loop := agentloop.NewLoop(registry, engine, normalizer, providers, cfg.Providers, thresholds, cache, bus, masker, cfg.Loop, nil)

	controller := scan.NewController(store, loop, bus, podID, scan.OrphanConfig{
		CheckInterval: cfg.Scan.OrphanCheckInterval,
		Threshold:     cfg.Scan.OrphanThreshold,
	})
	controller.StartOrphanRecovery(ctx)
	defer controller.Stop()

	cleanupSvc := cleanup.NewService(bus, cfg.Cleanup.SweepInterval)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	server := transport.NewServer(controller, bus, registry)

	slog.Info("HTTP server listening", "port", httpPort)
	if err := http.ListenAndServe(":"+httpPort, server.Handler()); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func newStore(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	if cfg.DSN == "" {
		return storage.NewMemoryStore(), nil
	}
	return storage.NewPostgresStore(ctx, cfg)
}
