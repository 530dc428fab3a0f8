package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/bpmgate"
	apihttp "github.com/aretw0/bpmgate/internal/adapters/http"
	redisstore "github.com/aretw0/bpmgate/internal/adapters/redis"
	"github.com/aretw0/bpmgate/internal/config"
	"github.com/aretw0/bpmgate/pkg/adapters/camunda"
	"github.com/aretw0/bpmgate/pkg/adapters/memory"
	"github.com/aretw0/bpmgate/pkg/adapters/mongo"
	redislock "github.com/aretw0/bpmgate/pkg/adapters/redis"
	"github.com/aretw0/bpmgate/pkg/adapters/sqlite"
	"github.com/aretw0/bpmgate/pkg/catalog"
	"github.com/aretw0/bpmgate/pkg/notification"
	"github.com/aretw0/bpmgate/pkg/observability"
	"github.com/aretw0/bpmgate/pkg/persistence/middleware"
	"github.com/aretw0/bpmgate/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// app is the wired service. Close releases every backend that was opened.
type app struct {
	gateway *bpmgate.Gateway
	catalog *catalog.Service
	metrics *observability.Metrics
	closers []func(context.Context) error
}

func (a *app) Handler(logger *slog.Logger) http.Handler {
	return apihttp.NewHandler(a.gateway, a.catalog,
		apihttp.WithLogger(logger),
		apihttp.WithMetrics(a.metrics),
		apihttp.WithVersion(bpmgate.Version),
	)
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	return errors.Join(errs...)
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func closer(c io.Closer) func(context.Context) error {
	return func(context.Context) error { return c.Close() }
}

// build opens the backends selected by cfg.
func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{metrics: observability.NewMetrics()}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close(ctx)
		}
	}()

	var rdb backend.UniversalClient
	if cfg.UsesRedis() {
		rdb = backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.onClose(closer(rdb))
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Address, err)
		}
	}

	opts := []bpmgate.Option{
		bpmgate.WithLogger(logger),
		bpmgate.WithMetrics(a.metrics),
	}

	switch cfg.Engine.Type {
	case "camunda":
		engineOpts := []camunda.Option{
			camunda.WithLogger(logger),
			camunda.WithRetry(uint64(cfg.Engine.Retries), 200*time.Millisecond),
		}
		if cfg.Engine.Timeout > 0 {
			engineOpts = append(engineOpts, camunda.WithHTTPClient(&http.Client{Timeout: cfg.Engine.Timeout}))
		}
		if cfg.Engine.Username != "" {
			engineOpts = append(engineOpts, camunda.WithBasicAuth(cfg.Engine.Username, cfg.Engine.Password))
		}
		opts = append(opts, bpmgate.WithEngine(camunda.New(cfg.Engine.BaseURL, engineOpts...)))
		logger.Info("Using Camunda engine", "base_url", cfg.Engine.BaseURL)
	default:
		logger.Info("Using embedded engine")
	}

	store, err := a.auditStore(cfg, rdb, logger)
	if err != nil {
		return nil, err
	}
	store, err = protect(cfg, store)
	if err != nil {
		return nil, err
	}
	opts = append(opts, bpmgate.WithAuditStore(store))

	var channels []ports.NotificationChannel
	for _, name := range cfg.Notifications.Channels {
		switch name {
		case "redis":
			stream := cfg.Notifications.Stream
			if stream == "" {
				stream = redisstore.NotificationStream
			}
			channels = append(channels, redisstore.NewNotificationChannel(rdb, stream))
		default:
			channels = append(channels, notification.NewLogChannel(logger))
		}
	}
	if len(channels) > 0 {
		opts = append(opts, bpmgate.WithNotificationChannels(channels...))
	}

	if cfg.Locker == "redis" {
		opts = append(opts, bpmgate.WithLocker(redislock.NewLocker(rdb, "")))
	}

	a.gateway = bpmgate.New(opts...)

	switch cfg.Datasources.Type {
	case "mongo":
		ds, err := mongo.Open(ctx, mongo.Config{
			Primary:   mongo.Source{URI: cfg.Datasources.Primary.URI, Database: cfg.Datasources.Primary.Database},
			Secondary: mongo.Source{URI: cfg.Datasources.Secondary.URI, Database: cfg.Datasources.Secondary.Database},
		})
		if err != nil {
			return nil, err
		}
		a.onClose(ds.Close)
		a.catalog = catalog.NewService(ds.Users(), ds.Products(), catalog.WithLogger(logger))
	default:
		a.catalog = catalog.NewService(memory.NewUserRepository(), memory.NewProductRepository(), catalog.WithLogger(logger))
	}

	ok = true
	return a, nil
}

// auditStore selects the store. The redis store shares rdb, which is closed separately.
func (a *app) auditStore(cfg config.Config, rdb backend.UniversalClient, logger *slog.Logger) (ports.AuditStore, error) {
	switch cfg.Audit.Store {
	case "redis":
		opts := []redisstore.Option{redisstore.WithLogger(logger)}
		if cfg.Audit.TTL > 0 {
			opts = append(opts, redisstore.WithTTL(cfg.Audit.TTL))
		}
		return redisstore.NewFromClient(rdb, opts...), nil
	case "sqlite":
		store, err := sqlite.Open(cfg.Audit.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite audit store: %w", err)
		}
		a.onClose(closer(store))
		return store, nil
	default:
		return memory.NewAuditStore(), nil
	}
}

// protect wraps the store with masking and encryption when configured.
func protect(cfg config.Config, store ports.AuditStore) (ports.AuditStore, error) {
	var mws []middleware.Middleware
	if len(cfg.Audit.MaskFields) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.Audit.MaskFields))
	}
	if cfg.Audit.EncryptionKey != "" {
		key, err := middleware.ParseKey(cfg.Audit.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("audit.encryptionKey: %w", err)
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(store, mws...), nil
}
