package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/config"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/integrations/carrier/fake"
	"github.com/BearBump/ShipBox/internal/integrations/carrier/shipapi"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/services/rates"
	"github.com/BearBump/ShipBox/internal/services/shipments"
	"github.com/BearBump/ShipBox/internal/storage/pgshipping"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	ModeFake = "fake"
	ModeHTTP = "http"

	defaultEventsTopic   = "shipment.status_changed"
	defaultWebhooksTopic = "shipping.webhooks"
)

var defaultPackage = models.Dimensions{LengthCm: 20, WidthCm: 15, HeightCm: 10}

// NewGateway выбирает провайдера по shipping.provider.mode.
func NewGateway(cfg config.ShippingConfig, log *zap.Logger) carrier.Gateway {
	if strings.EqualFold(cfg.Provider.Mode, ModeFake) {
		log.Info("using offline fake shipping provider")
		return fake.New()
	}
	return shipapi.New(shipapi.Config{
		BaseURL:   cfg.Provider.BaseURL,
		Token:     cfg.Provider.Token,
		UserAgent: cfg.Provider.UserAgent,
		Timeout:   time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
		Origin:    originAddress(cfg.Origin),
	}, log.Named("shipapi"))
}

func originAddress(a config.AddressConfig) models.Address {
	return models.Address{
		Name:       a.Name,
		Email:      a.Email,
		Phone:      a.Phone,
		Street:     a.Street,
		District:   a.District,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func CarrierIDs(cfg config.ShippingConfig) []string {
	ids := make([]string, 0, len(cfg.Carriers))
	for _, c := range cfg.Carriers {
		ids = append(ids, c.ID)
	}
	return ids
}

func DefaultPackage(cfg config.ShippingConfig) models.Dimensions {
	d := models.Dimensions{
		LengthCm: cfg.DefaultPackage.LengthCm,
		WidthCm:  cfg.DefaultPackage.WidthCm,
		HeightCm: cfg.DefaultPackage.HeightCm,
	}
	if d.LengthCm <= 0 || d.WidthCm <= 0 || d.HeightCm <= 0 {
		return defaultPackage
	}
	return d
}

// RatesConfig переводит конфиг в настройки агрегатора. Пустые поля остаются
// нулевыми, и rates.New подставит значения по умолчанию.
func RatesConfig(cfg config.ShippingConfig) (rates.Config, error) {
	out := rates.Config{
		Carriers:             CarrierIDs(cfg),
		CarrierExpressTokens: map[string][]string{},
		Currency:             cfg.Currency,
		PostalCodeLength:     cfg.PostalCodeLength,
		CarrierTimeout:       time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
		CacheTTL:             time.Duration(cfg.QuoteCacheTTLSeconds) * time.Second,
	}
	for _, c := range cfg.Carriers {
		if len(c.ExpressTokens) > 0 {
			out.CarrierExpressTokens[c.ID] = c.ExpressTokens
		}
	}

	var err error
	if out.FreeShippingThreshold, err = parseDecimal("free_shipping_threshold", cfg.FreeShippingThreshold); err != nil {
		return rates.Config{}, err
	}
	if out.Fallback.StandardPrice, err = parseDecimal("fallback.standard_price", cfg.Fallback.StandardPrice); err != nil {
		return rates.Config{}, err
	}
	if out.Fallback.ExpressPrice, err = parseDecimal("fallback.express_price", cfg.Fallback.ExpressPrice); err != nil {
		return rates.Config{}, err
	}
	out.Fallback.StandardDays = cfg.Fallback.StandardDays
	out.Fallback.ExpressDays = cfg.Fallback.ExpressDays
	return out, nil
}

func parseDecimal(field, v string) (decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "shipping.%s", field)
	}
	return d, nil
}

func ShipmentsConfig(cfg *config.Config) shipments.Config {
	name := cfg.Shipping.Provider.Name
	if name == "" {
		name = "shipapi"
	}
	mode := cfg.Shipping.Provider.Mode
	if mode == "" {
		mode = ModeHTTP
	}
	return shipments.Config{
		ProviderName:    name,
		Mode:            mode,
		Carriers:        CarrierIDs(cfg.Shipping),
		Readonly:        cfg.Shipping.Readonly,
		WebhooksEnabled: true,
		SyncBatchSize:   cfg.Shipping.SyncBatchSize,
		DefaultPackage:  DefaultPackage(cfg.Shipping),
		EventsTopic:     EventsTopic(cfg.Kafka),
	}
}

func EventsTopic(cfg config.KafkaConfig) string {
	if cfg.ShipmentEventsTopicName == "" {
		return defaultEventsTopic
	}
	return cfg.ShipmentEventsTopicName
}

func WebhooksTopic(cfg config.KafkaConfig) string {
	if cfg.WebhooksTopicName == "" {
		return defaultWebhooksTopic
	}
	return cfg.WebhooksTopicName
}

func MustOpenPostgresWithRetry(connString string, wait time.Duration) *pgshipping.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgshipping.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}
