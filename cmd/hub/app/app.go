/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package app wires the hub binary together: config, logging, tracing,
// persistence, the dispatcher and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/irrigationhub/pkg/config"
	"github.com/carverauto/irrigationhub/pkg/db"
	hubhttp "github.com/carverauto/irrigationhub/pkg/http"
	"github.com/carverauto/irrigationhub/pkg/hub"
	"github.com/carverauto/irrigationhub/pkg/lifecycle"
	"github.com/carverauto/irrigationhub/pkg/logger"
	"github.com/carverauto/irrigationhub/pkg/metrics"
	"github.com/carverauto/irrigationhub/pkg/models"
	"github.com/carverauto/irrigationhub/pkg/natsutil"
	"github.com/carverauto/irrigationhub/pkg/sink"
	"github.com/carverauto/irrigationhub/pkg/version"
)

const (
	serviceName     = "irrigationhub"
	shutdownTimeout = 15 * time.Second
	hydrateTimeout  = 10 * time.Second
)

// Options contains runtime configuration derived from CLI flags.
type Options struct {
	ConfigPath string
}

// Run boots the hub and blocks until SIGINT/SIGTERM or a fatal error.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var cfg models.HubConfig

	if err := config.NewConfig(nil).LoadAndValidate(ctx, opts.ConfigPath, &cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	applyPortOverride(&cfg, os.Getenv("PORT"))

	mainLogger, err := lifecycle.CreateComponentLogger(ctx, "hub-main", cfg.Logging)
	if err != nil {
		return err
	}

	var hooks []lifecycle.ShutdownHook

	hooks = append(hooks, lifecycle.ShutdownHook{Name: "logger", Fn: func(context.Context) error {
		return lifecycle.ShutdownLogger()
	}})

	// abort releases whatever was registered before a startup failure.
	abort := func(err error) error {
		return errors.Join(err, lifecycle.RunShutdownHooks(shutdownTimeout, mainLogger, hooks...))
	}

	tp, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		Logger:         mainLogger,
		OTel:           &cfg.Logging.OTel,
	})
	if err != nil {
		return abort(err)
	}

	hooks = append(hooks, lifecycle.ShutdownHook{Name: "tracer", Fn: tp.Shutdown})

	logConfig(mainLogger, &cfg, opts.ConfigPath)

	reg := metrics.NewRegistry()

	hubMetrics, err := metrics.NewHub(reg)
	if err != nil {
		return abort(err)
	}

	backend, limitsStore, err := openSink(ctx, &cfg.Persistence, mainLogger)
	if err != nil {
		mainLogger.Error().Err(err).Msg("Failed to open persistence")

		return abort(fmt.Errorf("open persistence: %w", err))
	}

	writer := sink.NewWriter(backend, sink.WriterConfig{
		QueueSize:    cfg.Persistence.QueueSize,
		WriteTimeout: time.Duration(cfg.Persistence.WriteTimeout),
	}, logger.Wrap(mainLogger.WithComponent("persistence")), hubMetrics)

	hooks = append(hooks, lifecycle.ShutdownHook{Name: "persistence", Fn: writer.Close})

	h := hub.New(hub.ConfigFromModel(&cfg), logger.Wrap(mainLogger.WithComponent("hub")),
		hub.WithQueue(writer),
		hub.WithMetrics(hubMetrics),
	)

	if limitsStore != nil {
		hydrateLimits(ctx, h, limitsStore, mainLogger)
	}

	hooks = append(hooks, lifecycle.ShutdownHook{Name: "hub", Fn: h.Stop})

	routes := hubhttp.Routes{
		WSPath: cfg.WSPath,
		WS:     h,
		Health: func() interface{} { return h.Health() },
	}

	if cfg.Metrics.Enabled {
		routes.MetricsPath = cfg.Metrics.Path
		routes.Metrics = metrics.Handler(reg)
	}

	httpLogger := logger.Wrap(mainLogger.WithComponent("http"))
	router := hubhttp.NewRouter(routes, hubhttp.CORSConfig{AllowedOrigins: cfg.AllowedOrigins}, httpLogger)
	server := hubhttp.NewServer(cfg.ListenAddr, router, httpLogger)

	hooks = append(hooks, lifecycle.ShutdownHook{Name: "http", Fn: server.Shutdown})

	mainLogger.Info().
		Str("version", version.GetFullVersion()).
		Str("listen_addr", cfg.ListenAddr).
		Str("ws_path", cfg.WSPath).
		Bool("persistence", cfg.Persistence.Enabled()).
		Msg("Starting irrigation hub")

	svc := serviceFunc(func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error { return h.Run(gctx) })
		g.Go(func() error { return server.Run(gctx) })

		return g.Wait()
	})

	return lifecycle.RunUntilSignal(ctx, svc, shutdownTimeout, mainLogger, hooks...)
}

type serviceFunc func(ctx context.Context) error

func (f serviceFunc) Run(ctx context.Context) error { return f(ctx) }

// applyPortOverride lets PORT replace the port of listen_addr, keeping the host.
func applyPortOverride(cfg *models.HubConfig, port string) {
	port = strings.TrimSpace(port)
	if port == "" {
		return
	}

	host, _, err := net.SplitHostPort(cfg.ListenAddr)
	if err != nil {
		host = ""
	}

	cfg.ListenAddr = net.JoinHostPort(host, port)
}

func logConfig(log logger.Logger, cfg *models.HubConfig, path string) {
	redacted, err := models.Redact(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to redact config for logging")
		return
	}

	log.Debug().Str("path", path).Interface("config", redacted).Msg("Loaded configuration")
}

// openSink connects every configured backend. The returned db.Store is nil
// unless Postgres is configured; it is also part of the returned sink.
func openSink(ctx context.Context, cfg *models.PersistenceConfig, log logger.Logger) (sink.Sink, *db.Store, error) {
	if !cfg.Enabled() {
		log.Warn().Msg("Persistence disabled; readings and limits will not be stored")

		return sink.Discard{}, nil, nil
	}

	var (
		sinks sink.Multi
		store *db.Store
	)

	if cfg.CNPG != nil {
		dbLogger := logger.Wrap(log.WithComponent("cnpg"))

		pool, err := db.NewCNPGPool(ctx, cfg.CNPG, dbLogger)
		if err != nil {
			return nil, nil, err
		}

		if err := db.RunMigrations(ctx, pool, dbLogger); err != nil {
			pool.Close()

			return nil, nil, err
		}

		store = db.NewStore(pool, dbLogger)
		sinks = append(sinks, store)
	}

	if cfg.NATS != nil {
		natsLogger := logger.Wrap(log.WithComponent("nats"))

		nc, err := natsutil.Connect(ctx, cfg.NATS, natsLogger)
		if err != nil {
			return nil, nil, errors.Join(err, sinks.Close())
		}

		publisher, err := natsutil.NewEventPublisher(ctx, nc, cfg.NATS, natsLogger)
		if err != nil {
			nc.Close()

			return nil, nil, errors.Join(err, sinks.Close())
		}

		sinks = append(sinks, publisher)
	}

	return sinks, store, nil
}

// hydrateLimits seeds the store from the last persisted limits. Failures
// leave the configured initial limits in place.
func hydrateLimits(ctx context.Context, h *hub.Hub, store *db.Store, log logger.Logger) {
	ctx, cancel := context.WithTimeout(ctx, hydrateTimeout)
	defer cancel()

	limits, err := store.LatestLimits(ctx)

	switch {
	case errors.Is(err, db.ErrNoLimits):
		log.Info().Msg("No persisted limits; using configured initial limits")
	case err != nil:
		log.Warn().Err(err).Msg("Failed to load persisted limits; using configured initial limits")
	default:
		h.HydrateLimits(limits)

		log.Info().
			Float64("upper", limits.SoilMoistureUpper).
			Float64("lower", limits.SoilMoistureLower).
			Float64("water_level", limits.WaterLevel).
			Msg("Hydrated limits from database")
	}
}
