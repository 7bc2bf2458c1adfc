package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"loop-planner/internal/config"
	"loop-planner/internal/engine"
	"loop-planner/internal/metrics"
	"loop-planner/internal/routing"
	"loop-planner/internal/waypoints"
	"loop-planner/internal/zones"
)

// app holds the long-lived components shared by every command.
type app struct {
	engine  *engine.Engine
	zones   *zones.Registry
	metrics *metrics.Collector
	cache   *routing.RedisStore
}

func newApp(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*app, error) {
	return newAppWithRegistry(ctx, cfg, log, prometheus.DefaultRegisterer)
}

func newAppWithRegistry(ctx context.Context, cfg config.Config, log logrus.FieldLogger, reg prometheus.Registerer) (*app, error) {
	registry, err := zones.LoadDir(cfg.Zones.Dir, zones.LoadOptions{
		SimplifyEpsilon: cfg.Zones.SimplifyEpsilon,
		DropContained:   cfg.Zones.DropContained,
	}, log)
	if err != nil {
		return nil, err
	}

	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, err
	}

	a := &app{zones: registry, metrics: collector}

	var client routing.Client = routing.NewHTTPClient(routing.HTTPConfig{
		BaseURL: cfg.Routing.BaseURL,
		Profile: cfg.Routing.Profile,
		Locale:  cfg.Routing.Locale,
		Timeout: cfg.Routing.Timeout,
	}, log)
	client = collector.InstrumentClient(client)

	if cfg.Cache.RedisAddr != "" {
		store, err := routing.ConnectRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			log.WithError(err).Warn("Route cache unavailable, continuing without it")
		} else {
			a.cache = store
			client = routing.NewCachedClient(client, store, cfg.Cache.TTL, cfg.Routing.Profile, log, collector)
		}
	}

	a.engine = engine.New(client, registry, log, engine.Options{
		MaxAttempts: cfg.Engine.MaxAttempts,
		Spread:      waypoints.ParseSpread(cfg.Engine.Spread),
		Observer:    collector,
	})

	log.WithFields(logrus.Fields{
		"router": cfg.Routing.BaseURL,
		"zones":  registry.Len(),
		"cache":  a.cache != nil,
	}).Info("Loop planner ready")
	return a, nil
}

func (a *app) Close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
}
