package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"coinc/internal/auth"
	"coinc/internal/backend"
	"coinc/internal/cache"
	"coinc/internal/cli"
	"coinc/internal/config"
	"coinc/internal/feed"
	"coinc/internal/format"
	apphttp "coinc/internal/http"
	applog "coinc/internal/log"
	"coinc/internal/middleware/ratelimit"
	"coinc/internal/services"
)

const (
	shutdownTimeout    = 30 * time.Second
	snapshotCacheSize  = 256
	snapshotCacheTTL   = 30 * time.Second
	cacheCleanInterval = time.Minute
)

func main() {
	cli.LoadEnvFile()
	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err,
			"backend", cfg.DataBackend, applog.FieldErrorType, applog.ErrorTypeDatabase)
		os.Exit(1)
	}

	money, err := format.NewMoney(cfg.Locale, cfg.Currency)
	if err != nil {
		logger.Error("Invalid display settings", applog.FieldError, err,
			"locale", cfg.Locale, "currency", cfg.Currency)
		os.Exit(1)
	}

	snapshots := cache.NewLRUCache[feed.Snapshot](snapshotCacheSize, snapshotCacheTTL)
	hubOpts := []feed.Option{
		feed.WithLogger(logger),
		feed.WithChangeHook(func(s feed.Scope) { snapshots.Invalidate(s.Owner, s.Month) }),
	}
	closeRelay := setupRelay(ctx, cfg, logger, &hubOpts)
	hub := feed.NewHub(result.Backend, hubOpts...)

	svcOpts := []services.Option{
		services.WithNotifier(hub),
		services.WithLogger(logger),
	}
	if result.Events != nil {
		svcOpts = append(svcOpts, services.WithEvents(result.Events))
	}
	actions := services.NewTransactionService(result.Backend, svcOpts...)

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		CleanupInterval:   5 * time.Minute,
	})
	caches := cache.NewManager(logger)
	caches.Register(snapshots)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Actions:  actions,
		Hub:      hub,
		Sessions: auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL, cfg.CookieSecure),
		Provider: signInProvider(cfg, logger),
		Money:    money,
		Pinger:   result.Backend,
		Limiter:  limiter,
		Cache:    snapshots,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return limiter.Run(gctx) })
	g.Go(func() error { return caches.Run(gctx, cacheCleanInterval) })
	g.Go(func() error {
		logger.Info("Starting coinc server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"journal", result.Events != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		cli.RunCleanup(logger, shutdownTimeout, srv.Shutdown)
		return nil
	})

	runErr := g.Wait()

	closeRelay()
	if result.Cleanup != nil {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}
	if runErr != nil {
		logger.Error("Server error", applog.FieldError, runErr, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// setupRelay adds the Redis change relay to opts when REDIS_ADDR is set.
// An unreachable Redis leaves the hub local to this process.
func setupRelay(ctx context.Context, cfg *config.Config, logger *applog.Logger, opts *[]feed.Option) func() {
	if cfg.RedisAddr == "" {
		return func() {}
	}
	client, err := feed.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("Redis unavailable, continuing without change relay",
			applog.FieldError, err,
			applog.FieldComponent, applog.ComponentRedis,
			applog.FieldErrorType, applog.ErrorTypeNetwork)
		return func() {}
	}
	logger.Info("Change relay enabled", "addr", cfg.RedisAddr, "channel", cfg.RedisChannel)
	*opts = append(*opts, feed.WithRelay(feed.NewRedisRelay(client, cfg.RedisChannel)))
	return func() {
		if err := client.Close(); err != nil {
			logger.Warn("Redis close failed", applog.FieldError, err)
		}
	}
}

func signInProvider(cfg *config.Config, logger *applog.Logger) auth.Provider {
	if cfg.GoogleSignInEnabled() {
		logger.Info("Sign-in provider configured", "provider", "google")
		return auth.NewGoogleProvider(cfg.GoogleOAuthClientID, cfg.GoogleOAuthClientSecret, cfg.GoogleOAuthRedirectURL)
	}
	logger.Warn("Google sign-in not configured, using developer sign-in", "provider", "dev")
	return auth.NewDevProvider("/auth/callback")
}
