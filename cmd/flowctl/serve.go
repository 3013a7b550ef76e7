package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goliatone/go-errors"
	_ "github.com/mattn/go-sqlite3"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/config"
	"github.com/goliatone/go-flow-designer/cron"
	"github.com/goliatone/go-flow-designer/editor"
	"github.com/goliatone/go-flow-designer/host"
	"github.com/goliatone/go-flow-designer/store"
)

type serveCmd struct {
	Addr string `help:"Listen address, overrides server.addr."`
}

func (c *serveCmd) Run(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, a.cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			a.logger.Warn("store close failed", "error", err)
		}
	}()

	scheduler := cron.NewScheduler(cron.WithLogger(a.logger))
	var saver *editor.Autosaver
	if a.cfg.Editor.AutosaveInterval > 0 {
		saver = editor.NewAutosaver(st, scheduler,
			editor.WithSaveInterval(a.cfg.Editor.AutosaveInterval),
			editor.WithSaveLogger(a.logger),
		)
	}

	transformer := a.transformer()
	adapter := a.layoutAdapter("")
	hub := host.NewHub(
		host.WithHubLogger(a.logger),
		host.WithAutosaver(saver),
		host.WithSampleFlow(a.cfg.Editor.LoadSample),
		host.WithSessionOptions(
			editor.WithTransformer(transformer),
			editor.WithLayout(adapter),
			editor.WithLayoutTimeout(a.cfg.Editor.LayoutTimeout),
			editor.WithBatchWindow(a.cfg.Editor.BatchWindow),
		),
	)

	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := scheduler.Stop(stopCtx); err != nil {
			a.logger.Warn("scheduler stop failed", "error", err)
		}
	}()

	srv := host.NewServer(
		host.WithHub(hub),
		host.WithStore(st),
		host.WithTransformer(transformer),
		host.WithLayout(adapter),
		host.WithLogger(a.logger),
		host.WithMode(a.cfg.Server.Mode),
	)

	addr := a.cfg.Server.Addr
	if c.Addr != "" {
		addr = c.Addr
	}
	a.logger.Info("starting flow editor", "addr", addr, "store", a.cfg.Store.Driver,
		"autosave", a.cfg.Editor.AutosaveInterval)
	return srv.Run(ctx, addr)
}

// openStore builds the configured backend and returns its closer.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, func() error, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, nil, storeOpenError(err, cfg.Driver)
		}
		st, err := store.NewSQLStore(db, cfg.Table)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return st, db.Close, nil
	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{cfg.RedisAddr},
			DB:    cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, storeOpenError(err, cfg.Driver)
		}
		return store.NewRedisStore(store.NewGoRedisClient(client), cfg.TTL, cfg.RedisPrefix), client.Close, nil
	default:
		return store.NewMemoryStore(), func() error { return nil }, nil
	}
}

func storeOpenError(err error, driver string) error {
	return errors.Wrap(err, errors.CategoryExternal, "cannot open flow store").
		WithTextCode(designer.CodeStoreFailed).
		WithMetadata(map[string]any{"driver": driver})
}
