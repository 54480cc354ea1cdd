package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/segment-insights/internal/api"
	"github.com/ignite/segment-insights/internal/config"
	"github.com/ignite/segment-insights/internal/pkg/distlock"
	"github.com/ignite/segment-insights/internal/pkg/logger"
	"github.com/ignite/segment-insights/internal/segmentation"
	"github.com/ignite/segment-insights/internal/source"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v\n"+
			"  Hint: Run 'lsof -i :<port>' to find the blocking process", addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	// Load configuration
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactIDs(cfg.Logging.RedactIDs)

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sources
	srcs, err := source.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s source: %v", cfg.Source.Type, err)
	}
	defer srcs.Close()
	log.Printf("Customer source: %s", srcs.Kind)

	// Reload coordination: Redis when configured, otherwise a PG advisory
	// lock on a postgres source, otherwise in-process only.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		redisClient, err = distlock.NewRedisClient(pingCtx, cfg.Redis.URL)
		pingCancel()
		if err != nil {
			log.Printf("Warning: Redis connection failed: %v; reloads are coordinated without Redis", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Println("Redis connected (distributed reload lock enabled)")
		}
	}

	opts := []segmentation.SnapshotOption{}
	if srcs.Profiles != nil {
		opts = append(opts, segmentation.WithProfileLoader(srcs.Profiles))
	}
	lockDB := srcs.DB
	if cfg.Source.Type != config.SourcePostgres {
		lockDB = nil
	}
	if lock := distlock.NewLock(redisClient, lockDB, cfg.Redis.LockKey, cfg.Redis.LockTTL()); lock != nil {
		opts = append(opts, segmentation.WithLocker(lock))
	}
	snap := segmentation.NewSnapshot(srcs.Table, cfg.Source.Columns, opts...)

	// Insight rules and playbook
	rules, err := segmentation.NewRuleSet(segmentation.DefaultRuleGroups(),
		segmentation.WithCurrencySymbol(cfg.Insights.CurrencySymbol))
	if err != nil {
		log.Fatalf("Failed to build insight rules: %v", err)
	}
	playbook, err := segmentation.LoadPlaybook(cfg.Insights.PlaybookPath)
	if err != nil {
		log.Fatalf("Failed to load playbook: %v", err)
	}
	engine := segmentation.NewEngine(snap, rules, playbook)

	// Initial load. A failure leaves the API up but answering 503 until a
	// reload succeeds.
	loadCtx, loadCancel := context.WithTimeout(ctx, cfg.Reload.Timeout())
	if _, err := engine.Reload(loadCtx); err != nil {
		log.Printf("Warning: initial customer load failed: %v", err)
	}
	loadCancel()

	if interval := cfg.Reload.Interval(); interval > 0 {
		go reloadLoop(ctx, engine, interval, cfg.Reload.Timeout())
		log.Printf("Periodic reload every %s", interval)
	}

	health := api.NewHealthChecker(snap, srcs.DB, redisClient)
	if interval := cfg.Reload.Interval(); interval > 0 {
		health.SetStaleAfter(3 * interval)
	}
	server := api.NewServer(cfg.Server, engine, health)
	server.SetReloadTimeout(cfg.Reload.Timeout())

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	// Cancel background tasks
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// reloadLoop refreshes the snapshot on a ticker until ctx is cancelled.
// A reload held by another replica is skipped silently.
func reloadLoop(ctx context.Context, engine *segmentation.Engine, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reloadCtx, cancel := context.WithTimeout(ctx, timeout)
			_, err := engine.Reload(reloadCtx)
			cancel()
			switch {
			case err == nil:
			case errors.Is(err, segmentation.ErrReloadInProgress):
				logger.Debug("periodic reload skipped", "reason", err.Error())
			default:
				logger.Warn("periodic reload failed", "error", err)
			}
		}
	}
}
