package shipments

import (
	"context"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/status"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type LabelRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	CarrierID string `json:"carrierId" validate:"required"`
	ServiceID string `json:"serviceId" validate:"required"`
}

// PartialLabel: то, что провайдер успел вернуть, когда этикетку нельзя считать созданной.
// Нужна для ручной сверки: у перевозчика этикетка может уже существовать.
type PartialLabel struct {
	OrderID   string `json:"orderId"`
	CarrierID string `json:"carrierId"`
	ServiceID string `json:"serviceId"`
	LabelID   string `json:"labelId,omitempty"`
	LabelURL  string `json:"labelUrl,omitempty"`
	Tracking  string `json:"trackingNumber,omitempty"`
	Raw       string `json:"raw,omitempty"`
}

func (m *Manager) CreateLabel(ctx context.Context, req LabelRequest) (*models.Shipment, error) {
	if err := m.validate.Struct(req); err != nil {
		return nil, apperr.ErrValidation.WithDetails(err.Error())
	}
	if !m.gw.Configured() {
		return nil, carrier.ErrGatewayUnconfigured
	}

	order, err := m.repo.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := m.validate.Struct(order.ShippingAddress); err != nil {
		return nil, apperr.ErrValidation.WithDetails("incomplete destination: " + err.Error())
	}

	pkg := models.PackageFromItems(order.Items, m.cfg.DefaultPackage)
	res, err := m.gw.CreateLabel(ctx, order.ShippingAddress, []models.Package{pkg}, req.CarrierID, req.ServiceID, order.ID)
	if err != nil {
		return nil, err
	}

	partial := PartialLabel{
		OrderID: order.ID, CarrierID: req.CarrierID, ServiceID: req.ServiceID,
		LabelID: res.LabelID, LabelURL: res.LabelURL, Tracking: res.TrackingNumber, Raw: string(res.Raw),
	}
	if res.TrackingNumber == "" {
		m.log.Error("label without tracking number",
			zap.String("order_id", order.ID),
			zap.String("carrier", req.CarrierID),
			zap.String("label_id", res.LabelID),
		)
		return nil, apperr.ErrLabelIncomplete.WithData(partial)
	}

	now := m.now()
	sh := &models.Shipment{
		ID:                uuid.New(),
		OrderID:           order.ID,
		CarrierID:         req.CarrierID,
		ServiceID:         req.ServiceID,
		TrackingNumber:    res.TrackingNumber,
		LabelURL:          res.LabelURL,
		LabelID:           res.LabelID,
		Status:            models.StatusLabelCreated,
		StatusDescription: status.Translate(models.StatusLabelCreated),
		NextCheckAt:       now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := m.repo.CreateShipment(ctx, sh); err != nil {
		m.log.Error("save shipment after label creation",
			zap.String("order_id", order.ID),
			zap.String("tracking_number", sh.TrackingNumber),
			zap.Error(err),
		)
		return nil, apperr.ErrInternal.WithDetails("label created but shipment was not saved").WithData(partial)
	}

	if err := m.repo.UpdateOrderShipping(ctx, models.OrderShippingUpdate{
		OrderID:        order.ID,
		TrackingNumber: sh.TrackingNumber,
		CarrierID:      sh.CarrierID,
		ServiceID:      sh.ServiceID,
		Status:         models.OrderProcessing,
	}); err != nil {
		m.log.Warn("update order shipping", zap.String("order_id", order.ID), zap.Error(err))
	}

	m.publish(ctx, sh, "", sh.StatusDescription, "", messages.SourceLabel)
	return sh, nil
}

func (m *Manager) SchedulePickup(ctx context.Context, req carrier.PickupRequest) (carrier.RawPickupResult, error) {
	if err := m.validate.Struct(req); err != nil {
		return carrier.RawPickupResult{}, apperr.ErrValidation.WithDetails(err.Error())
	}
	if !m.gw.Configured() {
		return carrier.RawPickupResult{}, carrier.ErrGatewayUnconfigured
	}

	res, err := m.gw.SchedulePickup(ctx, req)
	if err != nil {
		return carrier.RawPickupResult{}, err
	}
	if res.Scheduled {
		if err := m.repo.MarkPickupScheduled(ctx, req.TrackingNumbers); err != nil {
			m.log.Warn("mark pickup scheduled", zap.Strings("tracking_numbers", req.TrackingNumbers), zap.Error(err))
		}
	}
	return res, nil
}

type CancelRequest struct {
	TrackingNumber string `json:"trackingNumber"`
	LabelID        string `json:"labelId"`
	CarrierID      string `json:"carrierId"`
}

func (m *Manager) Cancel(ctx context.Context, req CancelRequest) (carrier.RawCancelResult, error) {
	if req.TrackingNumber == "" && req.LabelID == "" {
		return carrier.RawCancelResult{}, apperr.ErrValidation.WithDetails("trackingNumber or labelId is required")
	}
	if !m.gw.Configured() {
		return carrier.RawCancelResult{}, carrier.ErrGatewayUnconfigured
	}

	var sh *models.Shipment
	if req.TrackingNumber != "" {
		found, err := m.repo.GetShipmentByTrackingNumber(ctx, req.TrackingNumber)
		switch {
		case err == nil:
			sh = found
		case errors.Is(err, apperr.ErrShipmentNotFound):
			if req.LabelID == "" {
				return carrier.RawCancelResult{}, err
			}
		default:
			return carrier.RawCancelResult{}, err
		}
	}
	if sh != nil {
		if req.LabelID == "" {
			req.LabelID = sh.LabelID
		}
		if req.CarrierID == "" {
			req.CarrierID = sh.CarrierID
		}
	}
	if req.LabelID == "" || req.CarrierID == "" {
		return carrier.RawCancelResult{}, apperr.ErrValidation.WithDetails("labelId and carrierId are required")
	}

	res, err := m.gw.Cancel(ctx, req.LabelID, req.CarrierID)
	if err != nil {
		return carrier.RawCancelResult{}, err
	}
	if res.Cancelled && sh != nil {
		m.markCancelled(ctx, sh)
	}
	return res, nil
}

func (m *Manager) markCancelled(ctx context.Context, sh *models.Shipment) {
	prev := sh.Status
	now := m.now()
	desc := status.Translate(models.StatusCancelled)

	if err := m.repo.UpdateShipmentStatus(ctx, models.ShipmentUpdate{
		ShipmentID:           sh.ID,
		Status:               models.StatusCancelled,
		StatusDescription:    desc,
		LastEventDescription: desc,
		LastEventAt:          &now,
	}); err != nil {
		m.log.Warn("mark shipment cancelled", zap.String("tracking_number", sh.TrackingNumber), zap.Error(err))
		return
	}
	if err := m.repo.AppendShipmentEvent(ctx, &models.ShipmentEvent{
		ID:          uuid.New(),
		ShipmentID:  sh.ID,
		Status:      models.StatusCancelled,
		Description: desc,
		RawStatus:   "CANCELLED",
		EventTime:   now,
		CreatedAt:   now,
	}); err != nil {
		m.log.Warn("append cancel event", zap.String("tracking_number", sh.TrackingNumber), zap.Error(err))
	}

	sh.Status = models.StatusCancelled
	m.publish(ctx, sh, prev, desc, "", messages.SourceCancel)
}
