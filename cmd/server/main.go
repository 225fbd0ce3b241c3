// server runs the authentication API: the HTTP surface, background session
// and token sweepers, and metric export.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fitstack/auth/internal/audit"
	auditrepo "fitstack/auth/internal/audit/repository"
	"fitstack/auth/internal/config"
	"fitstack/auth/internal/db"
	healthhandler "fitstack/auth/internal/health/handler"
	identityhandler "fitstack/auth/internal/identity/handler"
	identityrepo "fitstack/auth/internal/identity/repository"
	"fitstack/auth/internal/identity/service"
	"fitstack/auth/internal/permission"
	"fitstack/auth/internal/permission/engine"
	permissionrepo "fitstack/auth/internal/permission/repository"
	"fitstack/auth/internal/ratelimit"
	"fitstack/auth/internal/resettoken"
	resettokenrepo "fitstack/auth/internal/resettoken/repository"
	"fitstack/auth/internal/security"
	"fitstack/auth/internal/server"
	"fitstack/auth/internal/session"
	sessionrepo "fitstack/auth/internal/session/repository"
	"fitstack/auth/internal/telemetry"
	"fitstack/auth/internal/token"
	tokenrepo "fitstack/auth/internal/token/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		return err
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		return err
	}
	logger.Info("jwt keys loaded", zap.String("alg", security.KeyAlg(publicKey)))
	tokens := security.NewTokenProvider(privateKey, publicKey,
		cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())

	provider, err := telemetry.NewProvider(ctx, cfg.OTLPEndpoint, "fitstack-auth", cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	defer provider.Shutdown(context.Background())
	metrics, err := telemetry.NewMetrics(provider.MeterProvider)
	if err != nil {
		return err
	}

	var counters ratelimit.CounterStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		counters = ratelimit.NewRedisStore(rdb)
		logger.Info("rate-limit counters on redis", zap.String("addr", cfg.RedisAddr))
	} else {
		store := ratelimit.NewMemoryStore()
		store.StartJanitor(ctx)
		counters = store
	}
	limiter := ratelimit.NewLimiter(counters)

	sessions := session.NewStore(sessionrepo.NewPostgresRepository(conn),
		cfg.MaxConcurrentSessions, cfg.RefreshTTL(), cfg.SessionIdleTimeout(), logger)
	refreshTokens := token.NewStore(tokenrepo.NewPostgresRepository(conn),
		cfg.RefreshTTL(), logger)
	resetTokens := resettoken.NewStore(resettokenrepo.NewPostgresRepository(conn),
		cfg.ResetTokenTTL(), logger)

	policyEngine := engine.NewOPAEvaluator()
	resolver := permission.NewResolver(permissionrepo.NewPostgresRepository(conn),
		policyEngine, cfg.PermissionCacheTTL(), logger)

	auditor := audit.NewLogger(auditrepo.NewPostgresRepository(conn), nil, logger)

	authSvc := service.NewAuthService(
		identityrepo.NewPostgresRepository(conn),
		sessions, refreshTokens, resetTokens, resolver, limiter,
		security.NewHasher(cfg.BcryptCost), tokens,
		ratelimit.Config{Name: "auth", MaxRequests: cfg.RateLimitAuthMax, Window: cfg.AuthRateWindow()},
		ratelimit.Config{Name: "reset", MaxRequests: cfg.RateLimitResetMax, Window: cfg.ResetRateWindow()},
		cfg.DependencyTimeout(),
		service.Options{Auditor: auditor, Failures: metrics, Logins: metrics, Logger: logger},
	)

	authHandler := identityhandler.NewHandler(authSvc, logger)
	health := healthhandler.NewHandler(conn, policyEngine, logger)

	apiLimit := server.RateLimit(limiter,
		ratelimit.Config{Name: "api", MaxRequests: cfg.RateLimitAPIMax, Window: cfg.APIRateWindow()}, logger)
	authed := server.Auth(tokens, sessions, logger)

	srv := server.New(server.Config{Addr: cfg.HTTPAddr}, logger, apiLimit,
		func(r chi.Router) {
			r.Get("/healthz", health.Live)
			r.Get("/readyz", health.Ready)
		},
		func(r chi.Router) {
			r.Use(metrics.HTTPMiddleware())
			authHandler.Mount(r, authed)
		},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sessions.RunSweeper(gctx, cfg.SessionSweepInterval())
		return nil
	})
	g.Go(func() error {
		refreshTokens.RunPurger(gctx, cfg.TokenPurgeInterval())
		return nil
	})
	g.Go(func() error {
		resetTokens.RunPurger(gctx, cfg.TokenPurgeInterval())
		return nil
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	return g.Wait()
}
