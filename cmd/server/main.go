package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/api"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/api/middleware"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/chain"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/chat"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/config"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/gate"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/handlers"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/preview"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/readcache"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/relay"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/store"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/wallet"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Run migrations
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")
	}

	// Relational store: PostgreSQL when configured, SQLite otherwise
	var pgStore *store.PostgresStore
	var data store.DataStore
	if cfg.DatabaseURL != "" {
		var err error
		pgStore, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pgStore.Close()
		data = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer sqliteStore.Close()
		data = sqliteStore
		logger.Info().Msg("using SQLite wallet registry")
	}

	// Redis is optional outside production; without it the relay falls back
	// and rate limiting is off.
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error().Err(err).Msg("redis connection failed")
			redisStore = nil
		} else {
			defer redisStore.Close()
			logger.Info().Msg("connected to Redis")
		}
	}

	// Ownership source: on-chain when an RPC endpoint is set, the holdings
	// mirror otherwise.
	var querier gate.Querier = data
	var previewer chat.Previewer
	if cfg.OwnershipRPCURL != "" {
		client, err := chain.Dial(ctx, cfg.OwnershipRPCURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("ownership rpc connection failed")
		}
		defer client.Close()
		querier = client
		previewer = client
		logger.Info().Msg("connected to ownership RPC")
	} else {
		logger.Warn().Msg("OWNERSHIP_RPC_URL not set, gating on the token holdings table")
	}

	var activator wallet.Activator = wallet.NewMemoryActivator()
	if redisStore != nil {
		activator = redisStore
	}

	relayStore, degraded := selectRelayStore(cfg.RelayBackend, redisStore, pgStore, logger)
	rel := relay.New(relayStore, relay.Options{
		Sponsored:   cfg.SponsoredWrites,
		Degraded:    degraded,
		MaxAttempts: cfg.RelayMaxAttempts,
		BotName:     cfg.BotName,
		Directory:   data,
	}, logger)

	cache := readcache.New(rel, cfg.ReadCacheTTL, logger)
	rel.OnAppend(cache.Append)

	previews := preview.New[chain.CollectionPreview](cfg.PreviewCacheTTL, cfg.PreviewEvictInterval, logger)
	previews.Start()
	defer previews.Stop()

	svc := chat.NewService(chat.Deps{
		Gate: gate.New(querier, gate.Options{
			QueryTimeout: cfg.GateQueryTimeout,
			MinResponses: cfg.GateMinResponses,
		}, logger),
		Wallets:   wallet.NewCoordinator(data, activator, cfg.WalletSwitchTimeout, logger),
		Registry:  data,
		Relay:     rel,
		Cache:     cache,
		Directory: data,
		Previews:  previews,
		Previewer: previewer,
	}, logger)

	// Create router
	var routerOpts api.Options
	if redisStore != nil {
		routerOpts.RateLimiter = middleware.NewRateLimiter(redisStore.Client(), logger, middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		})
	}
	h := handlers.NewHandler(svc, rel, data, redisStore, logger)
	router := api.NewRouter(logger, h, routerOpts)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // covers a wallet switch plus relay retries
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Bool("degraded", degraded).
			Bool("sponsored", cfg.SponsoredWrites).
			Msg("starting chat relay")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

// selectRelayStore picks the canonical log. An unavailable backend falls
// back to the in-process store, which reports degraded mode.
func selectRelayStore(backend string, redisStore *store.RedisStore, pgStore *store.PostgresStore, logger zerolog.Logger) (relay.Store, bool) {
	switch backend {
	case config.BackendRedis:
		if redisStore != nil {
			return redisStore, false
		}
	case config.BackendPostgres:
		if pgStore != nil {
			return pgStore, false
		}
	case config.BackendAuto:
		if redisStore != nil {
			return redisStore, false
		}
		if pgStore != nil {
			return pgStore, false
		}
	case config.BackendMemory:
		logger.Info().Msg("relay using in-process store")
		return relay.NewMemoryStore(), true
	}

	logger.Warn().Str("backend", backend).Msg("canonical message store unavailable, relay running degraded on the in-process store")
	return relay.NewMemoryStore(), true
}
