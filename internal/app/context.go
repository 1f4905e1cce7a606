package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"olimpia/internal/cache"
	"olimpia/internal/config"
	"olimpia/internal/current"
	"olimpia/internal/db"
	"olimpia/internal/engine"
	"olimpia/internal/migrate"
	"olimpia/internal/stream"
)

// Options select the workspace and override config values; empty fields keep
// what olimpia.yml says.
type Options struct {
	Workspace string
	Driver    string
	DSN       string
	RedisURL  string
	ActorID   string
	Logger    *slog.Logger
}

// Runtime is an engine plus the connections it owns.
type Runtime struct {
	Engine engine.Engine
	Config *config.Config
	Logger *slog.Logger
	Redis  *redis.Client
	Bus    *current.RedisBus
	conn   *sql.DB
}

// ResolveConfig loads olimpia.yml from the workspace, or the defaults when
// the file does not exist.
func ResolveConfig(workspace string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

// NewLogger builds the process logger from the log section of the config.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Build opens and migrates the database, seeds roles, and wires the cache,
// score stream and current-event tracker. Redis backs all three when
// configured; an unreachable Redis falls back to in-process parts.
func Build(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := ResolveConfig(opts.Workspace)
	if err != nil {
		return nil, err
	}
	if opts.Driver != "" {
		cfg.Database.Driver = opts.Driver
	}
	if opts.DSN != "" {
		cfg.Database.DSN = opts.DSN
	}
	if opts.RedisURL != "" {
		cfg.Cache.RedisURL = opts.RedisURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	driver := db.NormalizeDriver(cfg.Database.Driver)
	if driver == db.DriverSQLite {
		if _, err := db.EnsureWorkspace(opts.Workspace); err != nil {
			return nil, err
		}
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace, Driver: driver, DSN: cfg.Database.DSN})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn, driver); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	eng := engine.New(conn, driver, cfg, logger)
	rt := &Runtime{Engine: eng, Config: cfg, Logger: logger, conn: conn}

	if cfg.Cache.RedisURL != "" {
		client, err := connectRedis(ctx, cfg.Cache.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, using in-process cache", "error", err)
		} else {
			rt.Redis = client
			rt.Engine.Cache = cache.NewRedis(client, cfg.CacheTTL())
			rt.Engine.Stream = stream.NewRedisPublisher(client)
			rt.Bus = current.NewRedisBus(client, cfg.CurrentEvent.Channel, logger)
			rt.Engine.Tracker.SetBus(rt.Bus)
		}
	}
	if err := rt.Engine.SeedRBAC(ctx, cfg.RBAC.Roles, opts.ActorID); err != nil {
		rt.Close()
		return nil, fmt.Errorf("seed roles: %w", err)
	}
	if err := rt.Engine.PrimeTracker(ctx); err != nil {
		logger.Warn("current event unavailable", "error", err)
	}
	return rt, nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// ListenCurrentEvents follows current-event changes of other processes until
// ctx ends. It returns immediately when Redis is not configured.
func (r *Runtime) ListenCurrentEvents(ctx context.Context) {
	if r.Bus == nil {
		return
	}
	go func() {
		if err := r.Bus.Listen(ctx, r.Engine.Tracker, nil); err != nil && ctx.Err() == nil {
			r.Logger.Error("current event subscription stopped", "error", err)
		}
	}()
}

func (r *Runtime) Close() error {
	if r.Redis != nil {
		r.Redis.Close()
	}
	return r.conn.Close()
}
