package messages

import (
	"encoding/json"
	"time"
)

const (
	SourceLabel    = "label"
	SourceTracking = "tracking"
	SourceWebhook  = "webhook"
	SourceCancel   = "cancel"
)

// ShipmentStatusChanged публикуется после каждого сохранённого изменения статуса.
type ShipmentStatusChanged struct {
	ShipmentID     string    `json:"shipment_id"`
	OrderID        string    `json:"order_id"`
	TrackingNumber string    `json:"tracking_number"`
	CarrierID      string    `json:"carrier_id"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Status         string    `json:"status"`
	Description    string    `json:"description,omitempty"`
	Location       string    `json:"location,omitempty"`
	Source         string    `json:"source"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// WebhookReceived: сырой вебхук, переданный на асинхронную обработку.
type WebhookReceived struct {
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload"`
}
