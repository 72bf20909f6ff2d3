package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toko-builder/internal/advisor"
	"toko-builder/internal/cache"
	"toko-builder/internal/config"
	"toko-builder/internal/convo"
	"toko-builder/internal/httpserver"
	"toko-builder/internal/logging"
	"toko-builder/internal/metrics"
	"toko-builder/internal/nlu"
	"toko-builder/internal/repo"
	"toko-builder/internal/store"
	"toko-builder/internal/support"
	"toko-builder/internal/wa"
	"toko-builder/migrations"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting toko-builder", "env", cfg.AppEnv, "store_id", cfg.StoreID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	var repository repo.Repository
	switch cfg.DatabaseDriver {
	case "postgres":
		repository, err = repo.New(ctx, cfg.DatabaseURL, cfg.DatabaseSchema, logger)
	default:
		repository, err = repo.NewSQLite(ctx, cfg.SQLitePath, logger)
	}
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer repository.Close()

	if err := repository.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated", "driver", cfg.DatabaseDriver)

	if len(cfg.GeminiAPIKeys) > 0 {
		if err := repository.SyncGeminiKeys(ctx, cfg.GeminiAPIKeys); err != nil {
			return fmt.Errorf("sync gemini keys: %w", err)
		}
	}

	redisClient := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed closing redis", "error", err)
		}
	}()
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("redis ping failed", "error", err)
	}

	var nluClient *nlu.Client
	if !cfg.SimulateAI {
		nluClient = nlu.New(repository, logger, metricRegistry, nlu.Config{
			Model:    cfg.GeminiModel,
			Timeout:  cfg.GeminiTimeout,
			Cooldown: cfg.GeminiCooldown,
		})
		defer nluClient.Close()
	} else {
		logger.Info("ai simulation mode enabled")
	}

	initial, err := repository.LoadStoreConfig(ctx, cfg.StoreID)
	if err != nil {
		return fmt.Errorf("load store config: %w", err)
	}
	if initial == nil {
		defaults := store.DefaultConfiguration()
		initial = &defaults
		logger.Info("starting from default store configuration")
	}
	state := store.NewState(*initial)

	configCacheKey := "config:" + cfg.StoreID
	state.SetCommitHook(func(snapshot store.Configuration) {
		persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repository.SaveStoreConfig(persistCtx, cfg.StoreID, snapshot); err != nil {
			logger.Error("persist store config", "error", err)
			metricRegistry.Errors.WithLabelValues("persist").Inc()
			// Drop the cached snapshot rather than let it claim a config
			// the database never stored.
			if err := redisClient.Delete(persistCtx, configCacheKey); err != nil {
				logger.Warn("invalidate config cache", "error", err)
			}
			return
		}
		if err := redisClient.SetJSON(persistCtx, configCacheKey, snapshot, 0); err != nil {
			logger.Warn("cache store config", "error", err)
		}
	})

	var generator convo.Generator
	if nluClient != nil {
		generator = nluClient
	}
	engine := convo.NewEngine(state, generator, repository, logger, metricRegistry, convo.Config{
		StoreID:  cfg.StoreID,
		Simulate: cfg.SimulateAI,
	})
	if history, err := repository.ListChatMessages(ctx, cfg.StoreID, 200); err != nil {
		logger.Warn("load chat history", "error", err)
	} else {
		engine.RestoreMessages(history)
	}

	var responder support.Responder
	if nluClient != nil {
		responder = nluClient
	}
	router := support.NewRouter(state, responder, logger, metricRegistry)

	var adv *advisor.Advisor
	if cfg.AdvisorEnabled {
		busy := func() bool {
			b, _ := engine.Busy()
			return b
		}
		adv = advisor.New(engine, redisClient, busy, true, logger, metricRegistry)
		adv.Load(ctx)
		engine.SetAdvisorReset(adv.ResetLastSent)
	}

	if cfg.WhatsAppEnabled {
		waClient, err := wa.New(ctx, wa.Config{
			StorePath: cfg.WhatsAppStorePath,
			LogLevel:  cfg.WhatsAppLogLevel,
			Metrics:   metricRegistry,
		}, logger)
		if err != nil {
			return fmt.Errorf("init whatsapp client: %w", err)
		}
		defer waClient.Close()
		waClient.SetInbox(router)
		router.SetOutbound(waClient)

		waCtx, waCancel := context.WithCancel(ctx)
		defer waCancel()
		go func() {
			if err := waClient.Start(waCtx); err != nil {
				logger.Error("whatsapp client stopped", "error", err)
				stop()
			}
		}()
	}

	httpSrv := httpserver.New(cfg.HTTPListenAddr, logger, metricRegistry, httpserver.Dependencies{
		State:   state,
		Engine:  engine,
		Router:  router,
		Advisor: adv,
	}, cfg.PublicBasePath)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	// Let in-flight support AI replies land before the process exits.
	router.Wait()

	return nil
}
