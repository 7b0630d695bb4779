// Command mailqueue runs the transactional email queue: the polling
// scheduler, the stuck item recoverer and the admin HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/mailqueue/pkg/config"
	"github.com/dmitrymomot/mailqueue/pkg/email"
	"github.com/dmitrymomot/mailqueue/pkg/httpserver"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
	"github.com/dmitrymomot/mailqueue/pkg/mailer"
	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
	"github.com/dmitrymomot/mailqueue/pkg/metrics"
	"github.com/dmitrymomot/mailqueue/svc/queueadmin"
)

type metricsConfig struct {
	Namespace string `env:"METRICS_NAMESPACE" envDefault:"mailqueue"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadEnv(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to load .env", logger.Error(err))
	}

	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log, err := logger.FromConfig(logCfg, logger.WithContextExtractors(queueadmin.RequestIDExtractor))
	if err != nil {
		slog.Error("invalid logger config", logger.Error(err))
		os.Exit(1)
	}
	slog.SetDefault(log)

	if err := run(ctx, log); err != nil {
		log.Error("mailqueue stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	var (
		queueCfg   mailqueue.Config
		storeCfg   storeConfig
		emailCfg   email.Config
		mailerCfg  mailer.Config
		httpCfg    httpserver.Config
		metricsCfg metricsConfig
	)
	for _, load := range []func() error{
		func() error { return config.Load(&queueCfg) },
		func() error { return config.Load(&storeCfg) },
		func() error { return config.Load(&emailCfg) },
		func() error { return config.Load(&mailerCfg) },
		func() error { return config.Load(&httpCfg) },
		func() error { return config.Load(&metricsCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	be, err := openStore(ctx, storeCfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := be.close(closeCtx); err != nil {
			log.Error("failed to close store", logger.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(registry, metricsCfg.Namespace)
	if err != nil {
		return err
	}

	opts := []mailqueue.Option{
		mailqueue.WithLogger(log),
		mailqueue.WithMetrics(recorder),
	}

	sender, err := email.New(emailCfg)
	if err != nil {
		return err
	}
	m, err := mailer.New(sender, mailerCfg)
	if err != nil {
		return err
	}

	enqueuer, err := mailqueue.NewEnqueuer(be.store, queueCfg, opts...)
	if err != nil {
		return err
	}
	dispatcher, err := mailqueue.NewDispatcher(be.store, queueCfg, opts...)
	if err != nil {
		return err
	}
	dispatcher.RegisterSenders(m.Handlers())

	scheduler, err := mailqueue.NewScheduler(be.store, dispatcher, queueCfg, opts...)
	if err != nil {
		return err
	}
	recoverer, err := mailqueue.NewRecoverer(be.store, queueCfg, opts...)
	if err != nil {
		return err
	}
	admin, err := mailqueue.NewAdmin(be.store, opts...)
	if err != nil {
		return err
	}

	if err := registry.Register(metrics.NewStatsCollector(metricsCfg.Namespace, admin.Stats, log)); err != nil {
		return err
	}

	router := queueadmin.Router(queueadmin.RouterOptions{
		Queue: queueadmin.NewService(admin,
			queueadmin.WithEnqueuer(enqueuer),
			queueadmin.WithLogger(log)),
		ReadinessCheck: be.checks,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Logger:         log,
	})
	server := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(scheduler.Run(ctx))
	g.Go(recoverer.Run(ctx))
	g.Go(func() error { return server.Run(ctx, router) })

	log.InfoContext(ctx, "mailqueue started",
		slog.String("store", storeCfg.Driver),
		slog.String("mail_driver", emailCfg.Driver),
		slog.String("addr", httpCfg.Addr))

	return g.Wait()
}
