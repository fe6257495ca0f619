package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/ShipBox/config"
	shippingapi "github.com/BearBump/ShipBox/internal/api/shipping_api"
	"github.com/BearBump/ShipBox/internal/bootstrap"
	"github.com/BearBump/ShipBox/internal/broker/kafka"
	"github.com/BearBump/ShipBox/internal/cache/rediscache"
	"github.com/BearBump/ShipBox/internal/logger"
	"github.com/BearBump/ShipBox/internal/services/rates"
	"github.com/BearBump/ShipBox/internal/services/shipments"
	"go.uber.org/zap"
)

type shipAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     shipAPIOpts
	log      *zap.Logger
	api      *shippingapi.Handler
	manager  *shipments.Manager
	consumer *kafka.Consumer
	closers  []func()
}

func mustBootstrapShipAPI() *shipAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		panic(fmt.Sprintf("ошибка инициализации логгера, %v", err))
	}
	log = log.Named("ship-api")

	httpAddr := cfg.Shipping.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		swaggerPath = cfg.Shipping.SwaggerPath
	}
	consumerGroup := cfg.Kafka.WebhooksConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "ship-api-webhooks"
	}

	ratesCfg, err := bootstrap.RatesConfig(cfg.Shipping)
	if err != nil {
		panic(err)
	}

	app := &shipAPIApp{log: log}

	st := bootstrap.MustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
	app.closers = append(app.closers, st.Close)

	rc := rediscache.New(cfg.Redis.Addr())
	app.closers = append(app.closers, func() { _ = rc.Close() })

	producer := kafka.NewProducer(cfg.Kafka.Brokers())
	app.closers = append(app.closers, func() { _ = producer.Close() })

	gw := bootstrap.NewGateway(cfg.Shipping, log)
	agg := rates.New(gw, rc, ratesCfg, log.Named("rates"))
	app.manager = shipments.New(st, gw, producer, bootstrap.ShipmentsConfig(cfg), log.Named("shipments"))

	apiOpts := shippingapi.Options{
		SwaggerPath:    swaggerPath,
		DefaultPackage: bootstrap.DefaultPackage(cfg.Shipping),
	}
	webhooksTopic := bootstrap.WebhooksTopic(cfg.Kafka)
	if cfg.Shipping.WebhookAsync {
		apiOpts.Relay = producer
		apiOpts.WebhookTopic = webhooksTopic
		app.consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers(),
			Topic:   webhooksTopic,
			GroupID: consumerGroup,
			Retries: cfg.Kafka.ConsumerRetries,
		}, log.Named("webhook-consumer"))
	}
	app.api = shippingapi.New(agg, app.manager, apiOpts, log.Named("http"))

	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app.opts = shipAPIOpts{
		httpAddr:      httpAddr,
		webhooksTopic: webhooksTopic,
		consumerGroup: consumerGroup,
	}
	return app
}

func (a *shipAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.log.Sync()
}

func (a *shipAPIApp) Run() error {
	// nil *kafka.Consumer в интерфейсе не равен nil, поэтому передаём явно.
	var consumer kafkaConsumer
	if a.consumer != nil {
		consumer = a.consumer
	}
	return runShipAPI(a.ctx, a.opts, a.api.Routes(), consumer, a.manager, a.log)
}
