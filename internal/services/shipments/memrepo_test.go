package shipments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/google/uuid"
)

// memRepo: потокобезопасное хранилище в памяти для сценарных тестов.
type memRepo struct {
	mu        sync.Mutex
	orders    map[string]*models.Order
	shipments map[uuid.UUID]*models.Shipment
	events    []models.ShipmentEvent
	webhooks  map[uuid.UUID]*models.WebhookLog
	pickups   []string
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders:    map[string]*models.Order{},
		shipments: map[uuid.UUID]*models.Shipment{},
		webhooks:  map[uuid.UUID]*models.WebhookLog{},
	}
}

func (r *memRepo) addOrder(o models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = &o
}

func (r *memRepo) addShipment(sh models.Shipment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shipments[sh.ID] = &sh
}

func (r *memRepo) order(id string) models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.orders[id]
}

func (r *memRepo) shipmentByTracking(tn string) (models.Shipment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sh := range r.shipments {
		if sh.TrackingNumber == tn {
			return *sh, true
		}
	}
	return models.Shipment{}, false
}

func (r *memRepo) eventsFor(id uuid.UUID) []models.ShipmentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ShipmentEvent
	for _, ev := range r.events {
		if ev.ShipmentID == id {
			out = append(out, ev)
		}
	}
	return out
}

func (r *memRepo) webhookLogs() []models.WebhookLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.WebhookLog, 0, len(r.webhooks))
	for _, wl := range r.webhooks {
		out = append(out, *wl)
	}
	return out
}

func (r *memRepo) GetOrder(_ context.Context, orderID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, apperr.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) UpdateOrderShipping(_ context.Context, upd models.OrderShippingUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[upd.OrderID]
	if !ok {
		return apperr.ErrOrderNotFound
	}
	o.TrackingNumber = upd.TrackingNumber
	o.CarrierID = upd.CarrierID
	o.ServiceID = upd.ServiceID
	o.Status = upd.Status
	return nil
}

func (r *memRepo) UpdateOrderStatus(_ context.Context, orderID string, st models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return apperr.ErrOrderNotFound
	}
	o.Status = st
	return nil
}

func (r *memRepo) CreateShipment(_ context.Context, sh *models.Shipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sh
	r.shipments[sh.ID] = &cp
	return nil
}

func (r *memRepo) GetShipment(_ context.Context, id uuid.UUID) (*models.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sh, ok := r.shipments[id]
	if !ok {
		return nil, apperr.ErrShipmentNotFound
	}
	cp := *sh
	return &cp, nil
}

func (r *memRepo) GetShipmentByTrackingNumber(_ context.Context, trackingNumber string) (*models.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sh := range r.shipments {
		if sh.TrackingNumber == trackingNumber {
			cp := *sh
			return &cp, nil
		}
	}
	return nil, apperr.ErrShipmentNotFound
}

func (r *memRepo) UpdateShipmentStatus(_ context.Context, upd models.ShipmentUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sh, ok := r.shipments[upd.ShipmentID]
	if !ok {
		return apperr.ErrShipmentNotFound
	}
	sh.Status = upd.Status
	sh.StatusDescription = upd.StatusDescription
	sh.LastEventDescription = upd.LastEventDescription
	sh.LastEventLocation = upd.LastEventLocation
	sh.LastEventAt = upd.LastEventAt
	if upd.DeliveredAt != nil {
		sh.DeliveredAt = upd.DeliveredAt
	}
	return nil
}

func (r *memRepo) AppendShipmentEvent(_ context.Context, ev *models.ShipmentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
	return nil
}

// ListShipmentEvents сортирует как pgshipping: по времени события, новые первыми.
func (r *memRepo) ListShipmentEvents(_ context.Context, shipmentID uuid.UUID, limit, offset int) ([]*models.ShipmentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ShipmentEvent
	for i := range r.events {
		if r.events[i].ShipmentID == shipmentID {
			cp := r.events[i]
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EventTime.After(out[j].EventTime) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) MarkPickupScheduled(_ context.Context, trackingNumbers []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pickups = append(r.pickups, trackingNumbers...)
	for _, sh := range r.shipments {
		for _, tn := range trackingNumbers {
			if sh.TrackingNumber == tn {
				sh.PickupScheduled = true
			}
		}
	}
	return nil
}

func (r *memRepo) SaveWebhookLog(_ context.Context, log *models.WebhookLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *log
	r.webhooks[log.ID] = &cp
	return nil
}

func (r *memRepo) GetWebhookLog(_ context.Context, id uuid.UUID) (*models.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wl, ok := r.webhooks[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *wl
	return &cp, nil
}

func (r *memRepo) MarkWebhookProcessed(_ context.Context, id uuid.UUID, processedAt time.Time, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	wl, ok := r.webhooks[id]
	if !ok {
		return apperr.ErrNotFound
	}
	wl.Processed = true
	wl.ProcessedAt = &processedAt
	wl.Error = errMsg
	return nil
}

// trackGateway отвечает на Track из функции и считает пиковую параллельность.
type trackGateway struct {
	carrier.Gateway
	track func(trackingNumber string) (carrier.RawTrackingResult, error)

	mu       sync.Mutex
	inFlight int
	peak     int
}

func (g *trackGateway) Configured() bool { return true }

func (g *trackGateway) Track(_ context.Context, trackingNumber, _ string) (carrier.RawTrackingResult, error) {
	g.mu.Lock()
	g.inFlight++
	if g.inFlight > g.peak {
		g.peak = g.inFlight
	}
	g.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()
	return g.track(trackingNumber)
}
