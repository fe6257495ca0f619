package main

import (
	"context"
	"time"

	"github.com/BearBump/ShipBox/config"
	"github.com/BearBump/ShipBox/internal/bootstrap"
	"github.com/BearBump/ShipBox/internal/broker/kafka"
	"github.com/BearBump/ShipBox/internal/cache/rediscache"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/services/poller"
	"github.com/BearBump/ShipBox/internal/services/shipments"
	"github.com/BearBump/ShipBox/internal/storage/pgshipping"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	defaultPurgeSchedule    = "@daily"
	defaultRetentionDays    = 30
	defaultWorkerHTTPAddr   = ":8082"
	purgeTimeout            = 5 * time.Minute
	inTransitJitterMultiple = 2
)

type workerStore interface {
	shipments.Repository
	poller.Repository
}

type workerFactories struct {
	newStorage     func(cfg *config.Config) (store workerStore, closeFn func(), err error)
	newProducer    func(cfg *config.Config) shipments.Publisher
	newRateLimiter func(cfg *config.Config) poller.RateLimiter
	newGateway     func(cfg *config.Config, log *zap.Logger) carrier.Gateway
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStore, func(), error) {
			st, err := pgshipping.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) shipments.Publisher {
			return kafka.NewProducer(cfg.Kafka.Brokers())
		},
		newRateLimiter: func(cfg *config.Config) poller.RateLimiter {
			return rediscache.NewRateLimiter(cfg.Redis.Addr())
		},
		newGateway: func(cfg *config.Config, log *zap.Logger) carrier.Gateway {
			return bootstrap.NewGateway(cfg.Shipping, log)
		},
	}
}

func plannerConfig(w config.WorkerConfig) poller.PlannerConfig {
	pc := poller.DefaultPlannerConfig()
	if w.NextCheckInTransitSeconds > 0 {
		pc.InTransitMinDelay = time.Duration(w.NextCheckInTransitSeconds) * time.Second
		pc.InTransitMaxDelay = inTransitJitterMultiple * pc.InTransitMinDelay
	}
	if w.NextCheckIdleSeconds > 0 {
		pc.IdleDelay = time.Duration(w.NextCheckIdleSeconds) * time.Second
	}
	if w.NextCheckProblemSeconds > 0 {
		pc.ProblemDelay = time.Duration(w.NextCheckProblemSeconds) * time.Second
	}
	return pc
}

// newPurgeCron регистрирует чистку логов вебхуков; запуск и остановка на вызывающем.
func newPurgeCron(w config.WorkerConfig, p *poller.Poller, log *zap.Logger) (*cron.Cron, error) {
	schedule := w.WebhookPurgeSchedule
	if schedule == "" {
		schedule = defaultPurgeSchedule
	}
	days := w.WebhookLogRetentionDays
	if days <= 0 {
		days = defaultRetentionDays
	}
	retention := time.Duration(days) * 24 * time.Hour

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		defer cancel()
		if _, err := p.PurgeWebhookLogs(ctx, retention); err != nil {
			log.Error("purge webhook logs", zap.Error(err))
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "invalid webhook purge schedule %q", schedule)
	}
	return c, nil
}

func RunShipWorker(ctx context.Context, cfg *config.Config, f workerFactories, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	store, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	gw := f.newGateway(cfg, log)
	manager := shipments.New(store, gw, f.newProducer(cfg), bootstrap.ShipmentsConfig(cfg), log.Named("shipments"))

	p := poller.New(store, manager, f.newRateLimiter(cfg), log.Named("poller")).
		WithSettings(
			time.Duration(cfg.Worker.PollIntervalSeconds)*time.Second,
			cfg.Worker.BatchSize,
			time.Duration(cfg.Worker.LeaseSeconds)*time.Second,
			int64(cfg.Worker.RateLimitPerMinute),
		).
		WithPlanner(plannerConfig(cfg.Worker))

	purge, err := newPurgeCron(cfg.Worker, p, log)
	if err != nil {
		return err
	}
	purge.Start()
	defer purge.Stop()

	if cfg.Worker.HTTPAddr != "" {
		go func() {
			err := runWorkerHTTPServer(ctx, workerHTTPOpts{
				httpAddr:    cfg.Worker.HTTPAddr,
				swaggerPath: cfg.Shipping.SwaggerPath,
				poller:      p,
				cfg:         cfg,
			}, log)
			if err != nil && ctx.Err() == nil {
				log.Error("worker HTTP server stopped", zap.Error(err))
			}
		}()
	}

	log.Info("worker started",
		zap.Int("batch_size", cfg.Worker.BatchSize),
		zap.Int("poll_interval_seconds", cfg.Worker.PollIntervalSeconds),
	)
	return p.Run(ctx)
}
