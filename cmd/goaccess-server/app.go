package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/MrEthical07/goAccess/notify"
	"github.com/MrEthical07/goAccess/store/memory"
	"github.com/MrEthical07/goAccess/store/sqlstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// app owns every long-lived resource of the server.
type app struct {
	engine  *goAccess.Engine
	handler http.Handler
	closers []func() error
}

// appDeps holds the collaborators tests replace.
type appDeps struct {
	notifier notify.Notifier
	// audit, when set, also receives audit events as JSON lines.
	audit io.Writer
}

func newApp(ctx context.Context, cfg serverConfig, deps appDeps) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	rdb, err := a.openRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	st, ping, err := a.openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	notifier := deps.notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	sinks := goAccess.MultiSink{goAccess.LoggerSink{}}
	if deps.audit != nil {
		sinks = append(sinks, goAccess.NewJSONWriterSink(deps.audit))
	}

	engine, err := goAccess.New().
		WithConfig(cfg.Engine).
		WithRedis(rdb).
		WithStore(st).
		WithNotifier(notifier).
		WithAuditSink(sinks).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.engine = engine
	a.closers = append(a.closers, func() error {
		engine.Close()
		return nil
	})

	if cfg.SeedPassword != "" {
		if err := engine.Seed(ctx, cfg.SeedPassword); err != nil {
			return nil, fmt.Errorf("seed accounts: %w", err)
		}
	}
	if cfg.Sweeper {
		engine.StartSweeper()
	}

	checks := []func(context.Context) error{
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	if ping != nil {
		checks = append(checks, ping)
	}
	a.handler = newServer(engine, cfg, checks).routes()
	return a, nil
}

func (a *app) openRedis(ctx context.Context, cfg redisConfig) (redis.UniversalClient, error) {
	addr := cfg.Addr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		a.closers = append(a.closers, func() error {
			mr.Close()
			return nil
		})
		addr = mr.Addr()
		logger.Infof("using in-process redis at %s", addr)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	a.closers = append(a.closers, rdb.Close)

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (a *app) openStore(ctx context.Context, database string) (goAccess.Store, func(context.Context) error, error) {
	if strings.EqualFold(database, "memory") {
		logger.Infof("using in-memory store")
		return memory.New(), nil, nil
	}

	st, err := sqlstore.Open(ctx, database)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, st.Close)

	if err := st.Migrate(ctx); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Infof("using %s store", st.Dialect())
	return st, st.Ping, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warningf("close: %v", err)
		}
	}
	a.closers = nil
}
