package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/ShipBox/internal/broker/kafka"
	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/BearBump/ShipBox/internal/services/shipments"
	"go.uber.org/zap"
)

type shipAPIOpts struct {
	httpAddr string

	webhooksTopic string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
}

type webhookIngester interface {
	IngestWebhook(ctx context.Context, payload []byte) shipments.WebhookAck
}

// runShipAPI поднимает HTTP API и, если передан consumer, обработку вебхуков из очереди.
func runShipAPI(ctx context.Context, opts shipAPIOpts, handler http.Handler, consumer kafkaConsumer, ingest webhookIngester, log *zap.Logger) error {
	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, handler, log)
	}()

	if consumer != nil {
		go func() {
			log.Info("webhook consumer started", zap.String("topic", opts.webhooksTopic), zap.String("group", opts.consumerGroup))
			err := consumer.Consume(ctx, func(ctx context.Context, msg kafka.Message) error {
				return handleQueuedWebhook(ctx, msg, ingest, log)
			})
			if err != nil && ctx.Err() == nil {
				log.Error("webhook consumer stopped", zap.Error(err))
			}
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

// handleQueuedWebhook: битое сообщение возвращается как kafka.ErrSkip, чтобы consumer не встал на нём.
// Ошибки обработки IngestWebhook пишет в webhook_logs сам и наружу не отдаёт.
func handleQueuedWebhook(ctx context.Context, msg kafka.Message, ingest webhookIngester, log *zap.Logger) error {
	var m messages.WebhookReceived
	if err := kafka.DecodeJSON(msg, &m); err != nil {
		return err
	}
	ack := ingest.IngestWebhook(ctx, m.Payload)
	log.Debug("queued webhook handled",
		zap.Int64("offset", msg.Offset),
		zap.String("webhook_id", ack.WebhookID),
		zap.String("tracking_number", ack.TrackingNumber),
		zap.Bool("processed", ack.Processed),
		zap.String("reason", ack.Reason),
	)
	return nil
}

func runHTTPServer(ctx context.Context, lis net.Listener, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("HTTP API listening", zap.String("addr", lis.Addr().String()))
	return srv.Serve(lis)
}
