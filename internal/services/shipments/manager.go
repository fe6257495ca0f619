package shipments

import (
	"context"
	"time"

	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultSyncBatchSize = 5

// Repository: хранилище заказов и отправлений. Get-методы возвращают
// apperr.ErrOrderNotFound / apperr.ErrShipmentNotFound, если записи нет.
type Repository interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	UpdateOrderShipping(ctx context.Context, upd models.OrderShippingUpdate) error
	UpdateOrderStatus(ctx context.Context, orderID string, st models.OrderStatus) error

	CreateShipment(ctx context.Context, sh *models.Shipment) error
	GetShipment(ctx context.Context, id uuid.UUID) (*models.Shipment, error)
	GetShipmentByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	UpdateShipmentStatus(ctx context.Context, upd models.ShipmentUpdate) error
	AppendShipmentEvent(ctx context.Context, ev *models.ShipmentEvent) error
	ListShipmentEvents(ctx context.Context, shipmentID uuid.UUID, limit, offset int) ([]*models.ShipmentEvent, error)
	MarkPickupScheduled(ctx context.Context, trackingNumbers []string) error

	SaveWebhookLog(ctx context.Context, log *models.WebhookLog) error
	GetWebhookLog(ctx context.Context, id uuid.UUID) (*models.WebhookLog, error)
	MarkWebhookProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time, errMsg string) error
}

type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

type Config struct {
	ProviderName    string
	Mode            string
	Carriers        []string
	Readonly        bool
	WebhooksEnabled bool
	SyncBatchSize   int
	DefaultPackage  models.Dimensions
	EventsTopic     string
}

// Manager: единственный, кто пишет Shipment и ShipmentEvent.
type Manager struct {
	repo     Repository
	gw       carrier.Gateway
	events   Publisher
	cfg      Config
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

func New(repo Repository, gw carrier.Gateway, events Publisher, cfg Config, log *zap.Logger) *Manager {
	if cfg.SyncBatchSize <= 0 {
		cfg.SyncBatchSize = DefaultSyncBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		repo:     repo,
		gw:       gw,
		events:   events,
		cfg:      cfg,
		log:      log,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type Capabilities struct {
	Labels   bool `json:"labels"`
	Tracking bool `json:"tracking"`
	Pickup   bool `json:"pickup"`
	Webhooks bool `json:"webhooks"`
}

type ConfigStatus struct {
	Active       bool         `json:"active"`
	Provider     string       `json:"provider"`
	Mode         string       `json:"mode"`
	Carriers     []string     `json:"carriers"`
	Capabilities Capabilities `json:"capabilities"`
	Readonly     bool         `json:"readonly"`
}

func (m *Manager) ConfigStatus() ConfigStatus {
	active := m.gw.Configured()
	return ConfigStatus{
		Active:   active,
		Provider: m.cfg.ProviderName,
		Mode:     m.cfg.Mode,
		Carriers: append([]string{}, m.cfg.Carriers...),
		Capabilities: Capabilities{
			Labels:   active,
			Tracking: active,
			Pickup:   active,
			Webhooks: active && m.cfg.WebhooksEnabled,
		},
		Readonly: m.cfg.Readonly,
	}
}

func (m *Manager) publish(ctx context.Context, sh *models.Shipment, prev models.CanonicalStatus, desc, location, source string) {
	if m.events == nil || m.cfg.EventsTopic == "" {
		return
	}
	msg := messages.ShipmentStatusChanged{
		ShipmentID:     sh.ID.String(),
		OrderID:        sh.OrderID,
		TrackingNumber: sh.TrackingNumber,
		CarrierID:      sh.CarrierID,
		PreviousStatus: string(prev),
		Status:         string(sh.Status),
		Description:    desc,
		Location:       location,
		Source:         source,
		OccurredAt:     m.now(),
	}
	if err := m.events.PublishJSON(ctx, m.cfg.EventsTopic, sh.TrackingNumber, msg); err != nil {
		m.log.Warn("publish status change",
			zap.String("tracking_number", sh.TrackingNumber),
			zap.Error(err),
		)
	}
}
