package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/ShipBox/config"
	"github.com/BearBump/ShipBox/internal/logger"
	"github.com/pkg/errors"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	if sw := os.Getenv("swaggerPath"); sw != "" {
		cfg.Shipping.SwaggerPath = sw
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		panic(fmt.Sprintf("ошибка инициализации логгера, %v", err))
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := RunShipWorker(ctx, cfg, defaultWorkerFactories(), log.Named("ship-worker")); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
