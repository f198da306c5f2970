package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lawnchairsociety/tilecollapse/internal/config"
	"github.com/lawnchairsociety/tilecollapse/internal/logger"
	"github.com/lawnchairsociety/tilecollapse/internal/namefilter"
	"github.com/lawnchairsociety/tilecollapse/internal/server"
	"github.com/lawnchairsociety/tilecollapse/internal/store"
	"github.com/lawnchairsociety/tilecollapse/internal/wfc"
)

func main() {
	serverConfigFile := flag.String("config", "data/server.yaml", "Path to server config YAML file")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging config YAML file")
	rulesDir := flag.String("rules", "", "Rule set directory (overrides config)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	nameFilterConfig := flag.String("namefilter", "data/name_filter.yaml", "Path to solution name filter YAML file")
	noStore := flag.Bool("no-store", false, "Run without solution storage")
	flag.Parse()

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	// Initialize logger first (before any logging)
	logConfig, err := logger.LoadConfig(*loggingConfig)
	logger.Initialize(logConfig)
	if err != nil {
		logger.Warning("Failed to load logging config, using defaults", "path", *loggingConfig, "error", err)
	}

	logger.Info("Starting tile collapse server")

	cfg, err := config.LoadConfig(*serverConfigFile)
	if err != nil {
		log.Fatalf("Failed to load server config: %v", err)
	}
	if *rulesDir != "" {
		cfg.RuleSets.Directory = *rulesDir
	}
	if *addr != "" {
		cfg.HTTP.Address = *addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid server config: %v", err)
	}

	rules := wfc.NewRuleSetRegistry()
	count, err := rules.LoadDir(cfg.RuleSets.Directory)
	if err != nil {
		log.Fatalf("Failed to load rule sets: %v", err)
	}
	if count == 0 {
		logger.Warning("No rule sets found", "directory", cfg.RuleSets.Directory)
	}
	logger.Info("Rule sets loaded", "count", count, "names", rules.Names())

	var st server.SolutionStore
	if !*noStore {
		db, err := store.OpenWithConfig(storeConfig(cfg.Database))
		if err != nil {
			log.Fatalf("Failed to open solution store: %v", err)
		}
		defer db.Close()
		st = db
		logger.Info("Solution store opened", "driver", db.Dialect().DriverName())
	} else {
		logger.Info("Solution storage disabled")
	}

	if len(cfg.WebSocket.AllowedOrigins) == 0 {
		logger.Info("WebSocket CORS policy", "mode", "same-origin")
	} else if len(cfg.WebSocket.AllowedOrigins) == 1 && cfg.WebSocket.AllowedOrigins[0] == "*" {
		logger.Warning("WebSocket CORS allows all origins (not recommended for production)")
	} else {
		logger.Info("WebSocket CORS policy", "allowed_origins", cfg.WebSocket.AllowedOrigins)
	}

	srv := server.New(cfg, rules, st)

	nfConfig, err := namefilter.LoadConfig(*nameFilterConfig)
	if err != nil {
		logger.Warning("Failed to load name filter config, names are not filtered", "path", *nameFilterConfig, "error", err)
	} else {
		srv.SetNameFilter(namefilter.New(nfConfig))
		logger.Info("Name filter loaded", "enabled", nfConfig.Enabled,
			"banned_words", len(nfConfig.BannedWords), "banned_names", len(nfConfig.BannedNames))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("Press Ctrl+C to shutdown")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", "error", err)
		}
	}

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warning("Shutdown did not complete cleanly", "error", err)
	}
	logger.Info("Server stopped")
}

// storeConfig converts the YAML database section into store settings.
func storeConfig(c config.DatabaseConfig) store.Config {
	if strings.EqualFold(c.Driver, "postgres") {
		return store.Config{
			Driver: "postgres",
			Postgres: store.PostgresConfig{
				Host:            c.Postgres.Host,
				Port:            c.Postgres.Port,
				User:            c.Postgres.User,
				Password:        c.Postgres.Password,
				Database:        c.Postgres.Database,
				SSLMode:         c.Postgres.SSLMode,
				MaxOpenConns:    c.Postgres.MaxOpenConns,
				MaxIdleConns:    c.Postgres.MaxIdleConns,
				ConnMaxLifetime: time.Duration(c.Postgres.ConnMaxLifetimeMinutes) * time.Minute,
			},
		}
	}
	return store.DefaultConfig(c.SQLitePath)
}
