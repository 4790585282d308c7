package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	rediscache "github.com/GoWebProd/obsidian-jira-master/internal/adapters/cache/redis"
	statusadapter "github.com/GoWebProd/obsidian-jira-master/internal/adapters/render/status"
	tomlrepo "github.com/GoWebProd/obsidian-jira-master/internal/adapters/repo/toml"
	"github.com/GoWebProd/obsidian-jira-master/internal/application"
	"github.com/GoWebProd/obsidian-jira-master/internal/cache"
	"github.com/GoWebProd/obsidian-jira-master/internal/dispatch"
	"github.com/GoWebProd/obsidian-jira-master/internal/ports"
	"github.com/GoWebProd/obsidian-jira-master/internal/queue"
	"github.com/GoWebProd/obsidian-jira-master/internal/transport"
)

type app struct {
	service        *application.Service
	accounts       *tomlrepo.Repository
	statusRenderer func([]application.AccountStatus, statusadapter.RenderOptions) (string, error)
	settings       settings
	logger         *slog.Logger
	now            func() time.Time
	closers        []io.Closer
}

func wireApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("wire config: %w", err)
	}
	conf, err := resolveSettings(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire config: %w", err)
	}

	logger := newLogger(os.Stderr, conf.logLevel)

	repo, err := tomlrepo.NewRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire account repository: %w", err)
	}

	a := &app{
		accounts:       repo,
		statusRenderer: statusadapter.Render,
		settings:       conf,
		logger:         logger,
		now:            time.Now,
	}

	store, err := a.wireCacheStore(conf)
	if err != nil {
		return nil, err
	}

	directory := application.NewDirectory(repo)
	queues := queue.NewRegistry(queue.WithLogger(logger))
	retrier := transport.NewRetrier(
		transport.HTTPExchanger{Client: &http.Client{Timeout: conf.httpTimeout}},
		transport.WithLogger(logger),
	)

	opts := []application.Option{
		application.WithClock(ports.SystemClock{}),
		application.WithLogger(logger),
	}
	if conf.singleFlight {
		opts = append(opts, application.WithSingleFlight())
	}

	a.service = application.NewService(
		directory,
		dispatch.New(directory, queues, retrier, logger),
		queues,
		cache.New(store, conf.cacheTTL),
		opts...,
	)

	return a, nil
}

// wireCacheStore falls back to the in-process store when Redis is unreachable.
func (a *app) wireCacheStore(conf settings) (cache.Store, error) {
	if conf.cacheBackend != cacheBackendRedis {
		return cache.NewMemoryStore(), nil
	}

	client := rediscache.NewClient(conf.redisAddr)
	store := rediscache.New(client, conf.redisPrefix)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		a.logger.Warn("redis cache unavailable, using memory cache", "addr", conf.redisAddr, "error", err)
		return cache.NewMemoryStore(), nil
	}

	a.closers = append(a.closers, client)
	return store, nil
}

func (a *app) close() {
	for _, closer := range a.closers {
		if err := closer.Close(); err != nil {
			a.logger.Debug("close resource", "error", err)
		}
	}
	a.closers = nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
