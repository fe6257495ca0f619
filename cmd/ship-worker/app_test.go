package main

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/BearBump/ShipBox/config"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/integrations/carrier/fake"
	"github.com/BearBump/ShipBox/internal/integrations/carrier/shipapi"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/services/poller"
	"github.com/BearBump/ShipBox/internal/services/shipments"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	shipments.Repository
}

func (s *fakeStore) ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Shipment, error) {
	return []*models.Shipment{}, nil
}
func (s *fakeStore) ScheduleNextCheck(ctx context.Context, shipmentID uuid.UUID, nextCheckAt time.Time, failCount int32) error {
	return nil
}
func (s *fakeStore) PurgeWebhookLogs(ctx context.Context, olderThan time.Time) (int64, error) {
	return 3, nil
}

type noopProducer struct{}

func (p noopProducer) PublishJSON(ctx context.Context, topic, key string, v any) error { return nil }

func TestDefaultWorkerFactories_SelectGateway(t *testing.T) {
	f := defaultWorkerFactories()

	cfgHTTP := &config.Config{Shipping: config.ShippingConfig{
		Provider: config.ProviderConfig{Mode: "http", BaseURL: "http://localhost:9000", Token: "k"},
	}}
	_, ok := f.newGateway(cfgHTTP, zap.NewNop()).(*shipapi.Client)
	require.True(t, ok)

	cfgFake := &config.Config{Shipping: config.ShippingConfig{Provider: config.ProviderConfig{Mode: "fake"}}}
	_, ok = f.newGateway(cfgFake, zap.NewNop()).(*fake.FakeClient)
	require.True(t, ok)
}

func TestDefaultWorkerFactories_ProducerAndRateLimiter_NonNil(t *testing.T) {
	f := defaultWorkerFactories()
	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}
	require.NotNil(t, f.newProducer(cfg))
	require.NotNil(t, f.newRateLimiter(cfg))
}

func testFactories(closed *bool) workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStore, func(), error) {
			return &fakeStore{}, func() { *closed = true }, nil
		},
		newProducer: func(cfg *config.Config) shipments.Publisher {
			return noopProducer{}
		},
		newRateLimiter: func(cfg *config.Config) poller.RateLimiter {
			return nil
		},
		newGateway: func(cfg *config.Config, log *zap.Logger) carrier.Gateway {
			return fake.New()
		},
	}
}

func TestRunShipWorker_ContextCanceled(t *testing.T) {
	calledClose := false
	cfg := &config.Config{Worker: config.WorkerConfig{PollIntervalSeconds: 1}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunShipWorker(ctx, cfg, testFactories(&calledClose), nil)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, calledClose)
}

func TestRunShipWorker_BadPurgeSchedule(t *testing.T) {
	calledClose := false
	cfg := &config.Config{Worker: config.WorkerConfig{WebhookPurgeSchedule: "every tuesday"}}

	err := RunShipWorker(context.Background(), cfg, testFactories(&calledClose), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "webhook purge schedule")
	require.True(t, calledClose)
}

func TestPlannerConfig(t *testing.T) {
	pc := plannerConfig(config.WorkerConfig{NextCheckInTransitSeconds: 600, NextCheckProblemSeconds: 60})
	require.Equal(t, 10*time.Minute, pc.InTransitMinDelay)
	require.Equal(t, 20*time.Minute, pc.InTransitMaxDelay)
	require.Equal(t, time.Minute, pc.ProblemDelay)
	require.Equal(t, poller.DefaultPlannerConfig().IdleDelay, pc.IdleDelay)
}

func TestPurgeCron_RunsJob(t *testing.T) {
	p := poller.New(&fakeStore{}, nil, nil, nil)
	c, err := newPurgeCron(config.WorkerConfig{WebhookPurgeSchedule: "@every 1s", WebhookLogRetentionDays: 1}, p, zap.NewNop())
	require.NoError(t, err)

	c.Start()
	defer c.Stop()
	require.Eventually(t, func() bool { return p.Stats().TotalPurged >= 3 }, 3*time.Second, 50*time.Millisecond)
}

func TestWorkerHTTPServer(t *testing.T) {
	p := poller.New(&fakeStore{}, nil, nil, nil)
	cfg := &config.Config{Worker: config.WorkerConfig{BatchSize: 25}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr: "127.0.0.1:0",
			onListen: func(addr string) { addrCh <- addr },
			poller:   p,
			cfg:      cfg,
		}, zap.NewNop())
	}()
	addr := <-addrCh

	resp, err := http.Get("http://" + addr + "/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.EqualValues(t, 25, out["batchSize"])

	trig, err := http.Post("http://"+addr+"/trigger", "application/json", nil)
	require.NoError(t, err)
	defer trig.Body.Close()
	require.Equal(t, http.StatusOK, trig.StatusCode)
	require.NotNil(t, p.Stats().LastTriggerAt)

	stats, err := http.Get("http://" + addr + "/stats")
	require.NoError(t, err)
	defer stats.Body.Close()
	require.Equal(t, http.StatusOK, stats.StatusCode)

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting worker HTTP server to stop")
	}
}
