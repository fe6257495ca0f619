package shipments

import (
	"context"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/google/uuid"
)

const (
	DefaultEventsLimit = 100
	MaxEventsLimit     = 500
)

// GetShipment читает сохранённое отправление без обращения к провайдеру.
// ref: UUID отправления или трек-номер.
func (m *Manager) GetShipment(ctx context.Context, ref string) (*models.Shipment, error) {
	if ref == "" {
		return nil, apperr.ErrValidation.WithDetails("shipment reference is required")
	}
	if id, err := uuid.Parse(ref); err == nil {
		return m.repo.GetShipment(ctx, id)
	}
	return m.repo.GetShipmentByTrackingNumber(ctx, ref)
}

// ListEvents отдаёт историю статусов, новые события первыми.
func (m *Manager) ListEvents(ctx context.Context, ref string, limit, offset int) ([]*models.ShipmentEvent, error) {
	if limit < 0 || limit > MaxEventsLimit {
		return nil, apperr.ErrValidation.WithDetails("limit must be between 0 and 500")
	}
	if offset < 0 {
		return nil, apperr.ErrValidation.WithDetails("offset must not be negative")
	}
	if limit == 0 {
		limit = DefaultEventsLimit
	}

	sh, err := m.GetShipment(ctx, ref)
	if err != nil {
		return nil, err
	}
	evs, err := m.repo.ListShipmentEvents(ctx, sh.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	if evs == nil {
		evs = []*models.ShipmentEvent{}
	}
	return evs, nil
}

func (m *Manager) GetWebhookLog(ctx context.Context, id string) (*models.WebhookLog, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.ErrValidation.WithDetails("webhook id must be a UUID")
	}
	return m.repo.GetWebhookLog(ctx, uid)
}
