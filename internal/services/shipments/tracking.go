package shipments

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/metrics"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/status"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type TrackingEvent struct {
	Status      models.CanonicalStatus `json:"status"`
	StatusLabel string                 `json:"statusLabel"`
	Description string                 `json:"description"`
	Location    string                 `json:"location,omitempty"`
	RawStatus   string                 `json:"rawStatus"`
	EventTime   time.Time              `json:"eventTime"`
	raw         json.RawMessage
}

type TrackingView struct {
	TrackingNumber string                 `json:"trackingNumber"`
	CarrierID      string                 `json:"carrierId,omitempty"`
	Status         models.CanonicalStatus `json:"status"`
	StatusLabel    string                 `json:"statusLabel"`
	RawStatus      string                 `json:"rawStatus"`
	Category       status.Category        `json:"category"`
	IsFinal        bool                   `json:"isFinal"`
	IsProblem      bool                   `json:"isProblem"`
	Events         []TrackingEvent        `json:"events"`
	LatestEvent    *TrackingEvent         `json:"latestEvent,omitempty"`
}

// Track запрашивает трекинг у провайдера и, если не включён readonly, сохраняет новый статус.
func (m *Manager) Track(ctx context.Context, trackingNumber, carrierID string) (*TrackingView, error) {
	view, _, err := m.refresh(ctx, trackingNumber, carrierID)
	return view, err
}

func (m *Manager) refresh(ctx context.Context, trackingNumber, carrierID string) (*TrackingView, bool, error) {
	if trackingNumber == "" {
		return nil, false, apperr.ErrValidation.WithDetails("trackingNumber is required")
	}
	if !m.gw.Configured() {
		return nil, false, carrier.ErrGatewayUnconfigured
	}

	raw, err := m.gw.Track(ctx, trackingNumber, carrierID)
	if err != nil {
		return nil, false, err
	}
	view := buildView(trackingNumber, carrierID, raw)

	if m.cfg.Readonly {
		return view, false, nil
	}
	changed, err := m.persistRefresh(ctx, view)
	if err != nil {
		// Ответ провайдера всё равно отдаём: запись просто останется со старым статусом.
		m.log.Warn("persist tracking refresh",
			zap.String("tracking_number", trackingNumber),
			zap.Error(err),
		)
	}
	return view, changed, nil
}

func buildView(trackingNumber, carrierID string, raw carrier.RawTrackingResult) *TrackingView {
	events := make([]TrackingEvent, 0, len(raw.Events))
	for _, e := range raw.Events {
		st := status.Normalize(e.Status)
		desc := e.Description
		if desc == "" {
			desc = status.Translate(st)
		}
		events = append(events, TrackingEvent{
			Status:      st,
			StatusLabel: status.Translate(st),
			Description: desc,
			Location:    e.Location,
			RawStatus:   e.Status,
			EventTime:   e.EventTime,
			raw:         e.Raw,
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].EventTime.After(events[j].EventTime) })

	rawStatus := raw.Status
	if rawStatus == "" && len(events) > 0 {
		rawStatus = events[0].RawStatus
	}
	st := status.Normalize(rawStatus)

	if carrierID == "" {
		carrierID = raw.CarrierID
	}
	view := &TrackingView{
		TrackingNumber: trackingNumber,
		CarrierID:      carrierID,
		Status:         st,
		StatusLabel:    status.Translate(st),
		RawStatus:      rawStatus,
		Category:       status.CategoryOf(st),
		IsFinal:        status.IsFinal(st),
		IsProblem:      status.IsProblem(st),
		Events:         events,
	}
	if len(events) > 0 {
		latest := events[0]
		view.LatestEvent = &latest
	}
	return view
}

// persistRefresh пишет результат трекинга, только если статус действительно сменился.
func (m *Manager) persistRefresh(ctx context.Context, view *TrackingView) (bool, error) {
	sh, err := m.repo.GetShipmentByTrackingNumber(ctx, view.TrackingNumber)
	if errors.Is(err, apperr.ErrShipmentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if sh.Status == view.Status {
		return false, nil
	}

	now := m.now()
	ev := &models.ShipmentEvent{
		ID:          uuid.New(),
		ShipmentID:  sh.ID,
		Status:      view.Status,
		Description: view.StatusLabel,
		RawStatus:   view.RawStatus,
		EventTime:   now,
		CreatedAt:   now,
	}
	if l := view.LatestEvent; l != nil {
		ev.Description = l.Description
		ev.Location = l.Location
		ev.Payload = l.raw
		if !l.EventTime.IsZero() {
			ev.EventTime = l.EventTime
		}
	}

	prev := sh.Status
	if err := m.applyStatus(ctx, sh, ev); err != nil {
		return false, err
	}
	m.publish(ctx, sh, prev, ev.Description, ev.Location, messages.SourceTracking)
	return true, nil
}

// applyStatus добавляет событие, перезаписывает статус отправления (last write wins)
// и каскадно обновляет заказ.
func (m *Manager) applyStatus(ctx context.Context, sh *models.Shipment, ev *models.ShipmentEvent) error {
	if err := m.repo.AppendShipmentEvent(ctx, ev); err != nil {
		return errors.Wrap(err, "append shipment event")
	}

	upd := models.ShipmentUpdate{
		ShipmentID:           sh.ID,
		Status:               ev.Status,
		StatusDescription:    status.Translate(ev.Status),
		LastEventDescription: ev.Description,
		LastEventLocation:    ev.Location,
		LastEventAt:          &ev.EventTime,
	}
	if ev.Status == models.StatusDelivered {
		at := ev.EventTime
		upd.DeliveredAt = &at
	}
	if err := m.repo.UpdateShipmentStatus(ctx, upd); err != nil {
		return errors.Wrap(err, "update shipment status")
	}

	prev := sh.Status
	sh.Status = ev.Status
	sh.StatusDescription = upd.StatusDescription
	sh.LastEventDescription = upd.LastEventDescription
	sh.LastEventLocation = upd.LastEventLocation
	sh.LastEventAt = upd.LastEventAt
	if upd.DeliveredAt != nil {
		sh.DeliveredAt = upd.DeliveredAt
	}

	m.cascadeOrder(ctx, sh.OrderID, prev, ev.Status)
	return nil
}

var alreadyShipped = map[models.CanonicalStatus]struct{}{
	models.StatusPickedUp:       {},
	models.StatusInTransit:      {},
	models.StatusOutForDelivery: {},
	models.StatusDelivered:      {},
}

// orderStatusFor: shipped при первом переходе в picked_up/in_transit, delivered всегда при delivered.
// Остальные статусы заказ не трогают.
func orderStatusFor(prev, next models.CanonicalStatus) (models.OrderStatus, bool) {
	switch next {
	case models.StatusDelivered:
		return models.OrderDelivered, true
	case models.StatusPickedUp, models.StatusInTransit:
		if _, ok := alreadyShipped[prev]; ok {
			return "", false
		}
		return models.OrderShipped, true
	default:
		return "", false
	}
}

func (m *Manager) cascadeOrder(ctx context.Context, orderID string, prev, next models.CanonicalStatus) {
	if orderID == "" {
		return
	}
	st, ok := orderStatusFor(prev, next)
	if !ok {
		return
	}
	if err := m.repo.UpdateOrderStatus(ctx, orderID, st); err != nil {
		m.log.Warn("cascade order status",
			zap.String("order_id", orderID),
			zap.String("status", string(st)),
			zap.Error(err),
		)
	}
}

type SyncItem struct {
	TrackingNumber string `json:"trackingNumber"`
	CarrierID      string `json:"carrierId,omitempty"`
}

type SyncResult struct {
	TrackingNumber string                 `json:"trackingNumber"`
	Status         models.CanonicalStatus `json:"status,omitempty"`
	Changed        bool                   `json:"changed"`
	Error          string                 `json:"error,omitempty"`
}

type SyncReport struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []SyncResult `json:"results"`
}

// SyncMany обновляет трекинг группами по SyncBatchSize: группа выполняется параллельно,
// следующая стартует после завершения предыдущей.
func (m *Manager) SyncMany(ctx context.Context, items []SyncItem) SyncReport {
	results := make([]SyncResult, len(items))
	size := m.cfg.SyncBatchSize

	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			idx := i
			go func() {
				defer wg.Done()
				it := items[idx]
				res := SyncResult{TrackingNumber: it.TrackingNumber}
				view, changed, err := m.refresh(ctx, it.TrackingNumber, it.CarrierID)
				if err != nil {
					res.Error = err.Error()
				} else {
					res.Status = view.Status
					res.Changed = changed
				}
				results[idx] = res
			}()
		}
		wg.Wait()
	}

	rep := SyncReport{Total: len(items), Results: results}
	for _, r := range results {
		if r.Error != "" {
			rep.Failed++
			metrics.SyncItemsTotal.WithLabelValues("error").Inc()
		} else {
			rep.Succeeded++
			metrics.SyncItemsTotal.WithLabelValues("ok").Inc()
		}
	}
	return rep
}
