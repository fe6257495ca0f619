package carrier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/shopspring/decimal"
)

const DefaultTimeout = 30 * time.Second

var (
	ErrGatewayUnconfigured = apperr.ErrNotConfigured
	ErrGatewayTimeout      = apperr.ErrTimeout
	ErrGatewayRejected     = apperr.ErrRejected
)

// RejectedError: провайдер ответил не-2xx. Повторять запрос автоматически нельзя.
type RejectedError struct {
	HTTPStatus     int
	CarrierMessage string
	CarrierCode    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("provider rejected request: http %d: %s", e.HTTPStatus, e.CarrierMessage)
}

func (e *RejectedError) Unwrap() error {
	return ErrGatewayRejected.WithDetails(e.CarrierMessage).WithData(map[string]any{
		"httpStatus":  e.HTTPStatus,
		"carrierCode": e.CarrierCode,
	})
}

type RawServiceOffer struct {
	CarrierID    string
	CarrierName  string
	ServiceID    string
	ServiceName  string
	Description  string
	Price        decimal.Decimal
	Currency     string
	DeliveryTime string
}

type RawLabelResult struct {
	TrackingNumber string
	LabelURL       string
	LabelID        string
	Raw            json.RawMessage
}

type RawTrackingEvent struct {
	Status      string
	Description string
	Location    string
	EventTime   time.Time
	Raw         json.RawMessage
}

type RawTrackingResult struct {
	TrackingNumber string
	CarrierID      string
	Status         string
	Description    string
	Events         []RawTrackingEvent
	Raw            json.RawMessage
}

type PickupRequest struct {
	CarrierID       string    `json:"carrierId" validate:"required"`
	TrackingNumbers []string  `json:"trackingNumbers" validate:"min=1,dive,required"`
	Date            time.Time `json:"date" validate:"required"`
	Window          string    `json:"window,omitempty"`
	PackageCount    int       `json:"packageCount" validate:"gte=1"`
}

type RawPickupResult struct {
	PickupID  string          `json:"pickupId,omitempty"`
	Status    string          `json:"status,omitempty"`
	Scheduled bool            `json:"scheduled"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

type RawCancelResult struct {
	Cancelled bool            `json:"cancelled"`
	Status    string          `json:"status,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// Gateway: транспорт к одному провайдеру доставки. Адрес отправителя задаётся при создании.
// Ничего не сохраняет и не повторяет запросы.
type Gateway interface {
	Configured() bool
	Quote(ctx context.Context, dest models.Address, pkgs []models.Package, carrierID string) ([]RawServiceOffer, error)
	CreateLabel(ctx context.Context, dest models.Address, pkgs []models.Package, carrierID, serviceID, reference string) (RawLabelResult, error)
	Track(ctx context.Context, trackingNumber, carrierID string) (RawTrackingResult, error)
	SchedulePickup(ctx context.Context, req PickupRequest) (RawPickupResult, error)
	Cancel(ctx context.Context, labelID, carrierID string) (RawCancelResult, error)
}
