package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	Shipping ShippingConfig `yaml:"shipping"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (c DatabaseConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

type KafkaConfig struct {
	Host                    string `yaml:"host"`
	Port                    int    `yaml:"port"`
	ShipmentEventsTopicName string `yaml:"shipment_events_topic_name"`
	WebhooksTopicName       string `yaml:"webhooks_topic_name"`
	WebhooksConsumerGroup   string `yaml:"webhooks_consumer_group"`
	ConsumerRetries         int    `yaml:"consumer_retries"`
}

func (c KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", c.Host, c.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" | "console"
	Output string `yaml:"output"` // "stdout" | "stderr" | file path
}

type ShippingConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	SwaggerPath string `yaml:"swagger_path"`

	Provider ProviderConfig  `yaml:"provider"`
	Origin   AddressConfig   `yaml:"origin"`
	Carriers []CarrierConfig `yaml:"carriers"`

	Currency              string `yaml:"currency"`
	FreeShippingThreshold string `yaml:"free_shipping_threshold"`
	PostalCodeLength      int    `yaml:"postal_code_length"`
	QuoteCacheTTLSeconds  int    `yaml:"quote_cache_ttl_seconds"`
	SyncBatchSize         int    `yaml:"sync_batch_size"`

	Fallback       FallbackConfig       `yaml:"fallback"`
	DefaultPackage DefaultPackageConfig `yaml:"default_package"`

	// Readonly disables persistence of tracking refreshes (demo storefronts).
	Readonly     bool `yaml:"readonly"`
	WebhookAsync bool `yaml:"webhook_async"`
}

type ProviderConfig struct {
	Mode           string `yaml:"mode"` // "http" | "fake"
	Name           string `yaml:"name"`
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	UserAgent      string `yaml:"user_agent"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AddressConfig struct {
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	Phone      string `yaml:"phone"`
	Street     string `yaml:"street"`
	District   string `yaml:"district"`
	City       string `yaml:"city"`
	Region     string `yaml:"region"`
	PostalCode string `yaml:"postal_code"`
	Country    string `yaml:"country"`
}

type CarrierConfig struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	ExpressTokens []string `yaml:"express_tokens"`
}

type FallbackConfig struct {
	StandardPrice string `yaml:"standard_price"`
	StandardDays  string `yaml:"standard_days"`
	ExpressPrice  string `yaml:"express_price"`
	ExpressDays   string `yaml:"express_days"`
}

type DefaultPackageConfig struct {
	LengthCm float64 `yaml:"length_cm"`
	WidthCm  float64 `yaml:"width_cm"`
	HeightCm float64 `yaml:"height_cm"`
}

type WorkerConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	BatchSize           int `yaml:"batch_size"`
	LeaseSeconds        int `yaml:"lease_seconds"`
	RateLimitPerMinute  int `yaml:"rate_limit_per_minute"`

	// Next-check scheduling (optional); see poller.PlannerConfig for defaults.
	NextCheckInTransitSeconds int `yaml:"next_check_in_transit_seconds"`
	NextCheckIdleSeconds      int `yaml:"next_check_idle_seconds"`
	NextCheckProblemSeconds   int `yaml:"next_check_problem_seconds"`

	WebhookLogRetentionDays int    `yaml:"webhook_log_retention_days"`
	WebhookPurgeSchedule    string `yaml:"webhook_purge_schedule"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	// .env is optional; real environment wins over it.
	_ = godotenv.Load()
	config.applyEnv()

	return &config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SHIPPING_API_TOKEN"); v != "" {
		c.Shipping.Provider.Token = v
	}
	if v := os.Getenv("SHIPPING_API_BASE_URL"); v != "" {
		c.Shipping.Provider.BaseURL = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		c.Database.Password = v
	}
}
