package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/0xkofi/bundlebear-api/internal/api"
	"github.com/0xkofi/bundlebear-api/internal/cache/memo"
	"github.com/0xkofi/bundlebear-api/internal/cache/redisstore"
	"github.com/0xkofi/bundlebear-api/internal/config"
	"github.com/0xkofi/bundlebear-api/internal/health"
	"github.com/0xkofi/bundlebear-api/internal/leaderboard"
	"github.com/0xkofi/bundlebear-api/internal/logger"
	"github.com/0xkofi/bundlebear-api/internal/metrics"
	"github.com/0xkofi/bundlebear-api/internal/observability"
	"github.com/0xkofi/bundlebear-api/internal/server"
	"github.com/0xkofi/bundlebear-api/internal/warehouse"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	addrFlag := flag.String("addr", "", "listen address override")
	flag.Parse()

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "api",
	}, os.Stdout)

	appLog := logger.NewSlog(&zl)

	if err := cfg.Validate(); err != nil {
		appLog.Error("invalid configuration", "err", err)
		return 1
	}

	p := metrics.Init(metrics.Config{})
	observability.Init(p.Registerer())
	observability.ExposeBuildInfo(Version)

	appLog.Info("starting api",
		"addr", cfg.Addr,
		"version", Version,
		"windows", cfg.Windows,
		"cache_ttl", cfg.CacheTTL.String())

	exec, err := warehouse.New(appLog, cfg.Snowflake, cfg.QueryTimeout)
	if err != nil {
		appLog.Error("failed to initialize warehouse executor", "err", err)
		return 1
	}

	builder, err := leaderboard.NewQueryBuilder(
		cfg.Snowflake.Database,
		cfg.Snowflake.Schema,
		leaderboard.WindowSet{Days: cfg.Windows, Primary: cfg.PrimaryWindow},
	)
	if err != nil {
		appLog.Error("failed to build leaderboard query", "err", err)
		return 1
	}
	svc := leaderboard.NewService(appLog, exec, builder)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store memo.Store = memo.NoopStore{}
	var cachePing health.Pinger
	rc, err := redisstore.New(ctx, cfg.RedisURL)
	if err != nil {
		appLog.Warn("redis unavailable, serving without shared cache", "err", err)
	} else {
		defer func() { _ = rc.Close() }()
		store = memo.NewRedisStore(rc, cfg.CacheOpTimeout)
		cachePing = rc
	}

	mz := memo.New(appLog, store, cfg.CacheTTL, cfg.L1CacheSize)
	h := api.NewHandler(appLog, mz, svc)

	if err := server.Run(ctx, cfg, appLog, h, cachePing, p.Handler()); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
