package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mattelianyc/microdawgs/internal/auth"
	"github.com/mattelianyc/microdawgs/internal/config"
	"github.com/mattelianyc/microdawgs/internal/httpserver"
	"github.com/mattelianyc/microdawgs/internal/httpserver/deps"
	"github.com/mattelianyc/microdawgs/internal/jobs"
	"github.com/mattelianyc/microdawgs/internal/logger"
	"github.com/mattelianyc/microdawgs/internal/ratelimit"
	redisconn "github.com/mattelianyc/microdawgs/internal/redis"
	"github.com/mattelianyc/microdawgs/internal/router"
	"github.com/mattelianyc/microdawgs/internal/scheduler"
	"github.com/mattelianyc/microdawgs/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	dispatcher  *router.Dispatcher
	sweeper     *scheduler.JobSweeper
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	redisClient, err := redisconn.New(redisconn.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		DialTimeout:    cfg.RedisDialTimeout,
		ReadTimeout:    cfg.RedisReadTimeout,
		WriteTimeout:   cfg.RedisWriteTimeout,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}

	registry, err := router.Load(cfg.ServicesFile)
	if err != nil {
		loggerClient.Errorf("Failed to load service registry: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("service registry loaded",
		logger.Int("services", len(registry.Targets())),
		logger.String("default", registry.Default().Name))

	authenticator := auth.NewAuthenticator([]byte(cfg.JWTSecret), cfg.TokenTTL)

	// Outbound calls to backends authenticate on the internal tier.
	serviceToken, err := authenticator.IssueService("gateway", cfg.TokenTTL)
	if err != nil {
		loggerClient.Errorf("Failed to issue gateway service token: %v", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(redisClient, cfg.RateLimit, cfg.RateWindow, registry.ServiceLimits())
	jobStore := jobs.NewStore(redisClient)
	dispatcher := router.NewDispatcher(loggerClient, cfg.DispatchTimeout, serviceToken)
	sweeper := scheduler.NewJobSweeper(jobStore, loggerClient, cfg.SweepInterval, cfg.JobMaxAge)

	d := deps.Deps{
		Logger:            loggerClient,
		StartTime:         time.Now(),
		Version:           version.Version,
		Commit:            version.Commit,
		BuildDate:         version.BuildDate,
		GoVersion:         version.GoVersion,
		TimeNow:           time.Now,
		RedisClient:       redisClient,
		Auth:              authenticator,
		Limiter:           limiter,
		Jobs:              jobStore,
		Registry:          registry,
		Dispatcher:        dispatcher,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		JobMaxAge:         cfg.JobMaxAge,
		TrustProxy:        cfg.TrustProxy,
		AdminAllowedCIDRS: cfg.AdminAllowedCIDRS,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		dispatcher:  dispatcher,
		sweeper:     sweeper,
	}
}

func (a *App) Run() error {
	a.logger.Infof("Starting gateway %s on %s", version.Version, a.cfg.ListenPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job sweeper: %w", err)
	}
	a.logger.Info("job sweeper started",
		logger.Duration("interval", a.cfg.SweepInterval),
		logger.Duration("max_age", a.cfg.JobMaxAge))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.dispatcher.Close()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		}
	}

	a.logger.Info("gateway stopped cleanly")
	return nil
}
