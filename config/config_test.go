package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  shipment_events_topic_name: "shipment.status_changed"
redis:
  host: "localhost"
  port: 6379
shipping:
  http_addr: ":8080"
  free_shipping_threshold: "500"
  provider:
    mode: "http"
    base_url: "https://sandbox.example.com"
    token: "from-yaml"
  origin:
    postal_code: "01310100"
    region: "SP"
  carriers:
    - id: "1"
      name: "Correios"
      express_tokens: ["sedex"]
worker:
  batch_size: 50
`), 0o600))

	t.Setenv("SHIPPING_API_TOKEN", "from-env")

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "shipment.status_changed", cfg.Kafka.ShipmentEventsTopicName)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, ":8080", cfg.Shipping.HTTPAddr)
	require.Equal(t, "from-env", cfg.Shipping.Provider.Token)
	require.Equal(t, "https://sandbox.example.com", cfg.Shipping.Provider.BaseURL)
	require.Len(t, cfg.Shipping.Carriers, 1)
	require.Equal(t, []string{"sedex"}, cfg.Shipping.Carriers[0].ExpressTokens)
	require.Equal(t, 50, cfg.Worker.BatchSize)
	require.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", cfg.Database.ConnString())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Example(t *testing.T) {
	t.Setenv("SHIPPING_API_TOKEN", "")
	cfg, err := LoadConfig("config.example.yaml")
	require.NoError(t, err)

	require.Equal(t, "fake", cfg.Shipping.Provider.Mode)
	require.Len(t, cfg.Shipping.Carriers, 2)
	require.Equal(t, []string{"sedex"}, cfg.Shipping.Carriers[0].ExpressTokens)
	require.Equal(t, "@daily", cfg.Worker.WebhookPurgeSchedule)
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers())
	require.Equal(t, 3, cfg.Kafka.ConsumerRetries)
}
