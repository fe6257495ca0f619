package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CanonicalStatus: нормализованный статус отправления, общий для всех перевозчиков.
type CanonicalStatus string

const (
	StatusPending          CanonicalStatus = "pending"
	StatusLabelCreated     CanonicalStatus = "label_created"
	StatusAwaitingPickup   CanonicalStatus = "awaiting_pickup"
	StatusPickedUp         CanonicalStatus = "picked_up"
	StatusInTransit        CanonicalStatus = "in_transit"
	StatusOutForDelivery   CanonicalStatus = "out_for_delivery"
	StatusDeliveryAttempt1 CanonicalStatus = "delivery_attempt_1"
	StatusDeliveryAttempt2 CanonicalStatus = "delivery_attempt_2"
	StatusDeliveryAttempt3 CanonicalStatus = "delivery_attempt_3"
	StatusDelayed          CanonicalStatus = "delayed"
	StatusAddressError     CanonicalStatus = "address_error"
	StatusUndeliverable    CanonicalStatus = "undeliverable"
	StatusException        CanonicalStatus = "exception"
	StatusReturning        CanonicalStatus = "returning"
	StatusDelivered        CanonicalStatus = "delivered"
	StatusReturned         CanonicalStatus = "returned"
	StatusRejected         CanonicalStatus = "rejected"
	StatusCancelled        CanonicalStatus = "cancelled"
	StatusLost             CanonicalStatus = "lost"
	StatusDamaged          CanonicalStatus = "damaged"
)

// AllStatuses перечисляет все канонические статусы.
var AllStatuses = []CanonicalStatus{
	StatusPending, StatusLabelCreated, StatusAwaitingPickup, StatusPickedUp,
	StatusInTransit, StatusOutForDelivery,
	StatusDeliveryAttempt1, StatusDeliveryAttempt2, StatusDeliveryAttempt3,
	StatusDelayed, StatusAddressError, StatusUndeliverable, StatusException,
	StatusReturning, StatusDelivered, StatusReturned, StatusRejected,
	StatusCancelled, StatusLost, StatusDamaged,
}

type Shipment struct {
	ID             uuid.UUID `json:"id"`
	OrderID        string    `json:"orderId"`
	CarrierID      string    `json:"carrierId"`
	ServiceID      string    `json:"serviceId"`
	TrackingNumber string    `json:"trackingNumber"`
	LabelURL       string    `json:"labelUrl,omitempty"`
	LabelID        string    `json:"labelId,omitempty"`

	Status               CanonicalStatus `json:"status"`
	StatusDescription    string          `json:"statusDescription"`
	LastEventDescription string          `json:"lastEventDescription,omitempty"`
	LastEventLocation    string          `json:"lastEventLocation,omitempty"`
	LastEventAt          *time.Time      `json:"lastEventAt,omitempty"`
	DeliveredAt          *time.Time      `json:"deliveredAt,omitempty"`
	PickupScheduled      bool            `json:"pickupScheduled"`

	NextCheckAt    time.Time `json:"-"`
	CheckFailCount int32     `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ShipmentEvent struct {
	ID          uuid.UUID       `json:"id"`
	ShipmentID  uuid.UUID       `json:"shipmentId"`
	Status      CanonicalStatus `json:"status"`
	Description string          `json:"description"`
	Location    string          `json:"location,omitempty"`
	RawStatus   string          `json:"rawStatus"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	EventTime   time.Time       `json:"eventTime"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ShipmentUpdate: изменение статуса отправления по результату трекинга или вебхука.
type ShipmentUpdate struct {
	ShipmentID           uuid.UUID
	Status               CanonicalStatus
	StatusDescription    string
	LastEventDescription string
	LastEventLocation    string
	LastEventAt          *time.Time
	// DeliveredAt выставляется только для статуса delivered.
	DeliveredAt *time.Time
}

type WebhookLog struct {
	ID             uuid.UUID       `json:"id"`
	TrackingNumber string          `json:"trackingNumber"`
	EventType      string          `json:"eventType"`
	Payload        json.RawMessage `json:"payload"`
	ReceivedAt     time.Time       `json:"receivedAt"`
	ProcessedAt    *time.Time      `json:"processedAt,omitempty"`
	Processed      bool            `json:"processed"`
	Error          string          `json:"error,omitempty"`
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	WeightKg  *float64        `json:"weightKg,omitempty"`
}

type Order struct {
	ID              string          `json:"id"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress Address         `json:"shippingAddress"`
	Items           []OrderItem     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TrackingNumber  string          `json:"trackingNumber,omitempty"`
	CarrierID       string          `json:"carrierId,omitempty"`
	ServiceID       string          `json:"serviceId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// OrderShippingUpdate: данные отгрузки, которые пишутся в заказ после создания этикетки.
type OrderShippingUpdate struct {
	OrderID        string
	TrackingNumber string
	CarrierID      string
	ServiceID      string
	Status         OrderStatus
}
