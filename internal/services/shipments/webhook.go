package shipments

import (
	"context"
	"encoding/json"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/BearBump/ShipBox/internal/extract"
	"github.com/BearBump/ShipBox/internal/metrics"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/status"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	ReasonInvalidPayload   = "invalid_payload"
	ReasonMissingTracking  = "missing_tracking_number"
	ReasonShipmentNotFound = "shipment_not_found"
	ReasonInternalError    = "internal_error"
)

// Ключи, под которыми провайдеры кладут одни и те же данные вебхука.
var (
	whTracking = extract.NewField("tracking_number",
		"tracking_number", "trackingNumber", "tracking", "tracking_code",
		"data.tracking", "data.tracking_number", "data.tracking_code", "resource.tracking", "order.tracking")
	whStatus = extract.NewField("status",
		"status", "event_status", "data.status", "resource.status", "order.status", "data.event.status")
	whCarrier = extract.NewField("carrier",
		"carrier", "carrier_id", "data.carrier", "data.company.id", "company.id")
	whDescription = extract.NewField("description",
		"description", "message", "status_description", "data.description", "data.message")
	whLocation = extract.NewField("location",
		"location", "city", "data.location", "data.city")
	whEventTime = extract.NewField("event_time",
		"event_time", "occurred_at", "date", "timestamp", "data.date", "data.updated_at", "created_at")
	whEventType = extract.NewField("event_type", "event", "type", "event_type")
)

type WebhookAck struct {
	Received       bool                   `json:"received"`
	Processed      bool                   `json:"processed"`
	Reason         string                 `json:"reason,omitempty"`
	TrackingNumber string                 `json:"trackingNumber,omitempty"`
	Status         models.CanonicalStatus `json:"status,omitempty"`
	WebhookID      string                 `json:"webhookId,omitempty"`
}

// IngestWebhook никогда не возвращает ошибку: провайдер на ошибку отвечает ретраями,
// которые без подходящего отправления всё равно не пройдут. Сбои только логируются.
func (m *Manager) IngestWebhook(ctx context.Context, payload []byte) WebhookAck {
	now := m.now()
	ack := WebhookAck{Received: true}

	raw, decodeErr := extract.Decode(payload)
	wl := &models.WebhookLog{ID: uuid.New(), ReceivedAt: now, Payload: storablePayload(payload, decodeErr)}
	if decodeErr == nil {
		wl.TrackingNumber = whTracking.String(raw)
		wl.EventType = whEventType.String(raw)
	}
	logged := true
	if err := m.repo.SaveWebhookLog(ctx, wl); err != nil {
		logged = false
		m.log.Error("save webhook log", zap.Error(err))
	} else {
		ack.WebhookID = wl.ID.String()
	}

	finish := func(reason string, procErr error) WebhookAck {
		ack.Reason = reason
		errMsg := ""
		if procErr != nil {
			errMsg = procErr.Error()
		} else if !ack.Processed {
			errMsg = reason
		}
		if logged {
			if err := m.repo.MarkWebhookProcessed(ctx, wl.ID, m.now(), errMsg); err != nil {
				m.log.Warn("mark webhook processed", zap.String("webhook_id", wl.ID.String()), zap.Error(err))
			}
		}
		outcome := "processed"
		if !ack.Processed {
			outcome = reason
		}
		metrics.WebhooksTotal.WithLabelValues(outcome).Inc()
		return ack
	}

	if decodeErr != nil {
		m.log.Warn("webhook payload is not a JSON object", zap.Error(decodeErr))
		return finish(ReasonInvalidPayload, nil)
	}

	ack.TrackingNumber = wl.TrackingNumber
	if ack.TrackingNumber == "" {
		return finish(ReasonMissingTracking, nil)
	}

	sh, err := m.repo.GetShipmentByTrackingNumber(ctx, ack.TrackingNumber)
	if errors.Is(err, apperr.ErrShipmentNotFound) {
		m.log.Info("webhook for unknown shipment", zap.String("tracking_number", ack.TrackingNumber))
		return finish(ReasonShipmentNotFound, nil)
	}
	if err != nil {
		m.log.Error("load shipment for webhook", zap.String("tracking_number", ack.TrackingNumber), zap.Error(err))
		return finish(ReasonInternalError, err)
	}

	rawStatus := whStatus.String(raw)
	st := status.Normalize(rawStatus)
	desc := whDescription.String(raw)
	if desc == "" {
		desc = status.Translate(st)
	}
	eventTime, ok := whEventTime.Time(raw)
	if !ok {
		eventTime = now
	}

	ev := &models.ShipmentEvent{
		ID:          uuid.New(),
		ShipmentID:  sh.ID,
		Status:      st,
		Description: desc,
		Location:    whLocation.String(raw),
		RawStatus:   rawStatus,
		Payload:     wl.Payload,
		EventTime:   eventTime,
		CreatedAt:   now,
	}
	if c := whCarrier.String(raw); c != "" && sh.CarrierID != "" && c != sh.CarrierID {
		m.log.Warn("webhook carrier mismatch",
			zap.String("tracking_number", ack.TrackingNumber),
			zap.String("carrier", c),
			zap.String("shipment_carrier", sh.CarrierID),
		)
	}

	prev := sh.Status
	if err := m.applyStatus(ctx, sh, ev); err != nil {
		m.log.Error("apply webhook status", zap.String("tracking_number", ack.TrackingNumber), zap.Error(err))
		return finish(ReasonInternalError, err)
	}
	m.publish(ctx, sh, prev, desc, ev.Location, messages.SourceWebhook)

	ack.Processed = true
	ack.Status = st
	return finish("", nil)
}

func storablePayload(payload []byte, decodeErr error) json.RawMessage {
	if decodeErr == nil {
		return json.RawMessage(payload)
	}
	b, _ := json.Marshal(map[string]string{"raw": string(payload)})
	return b
}
