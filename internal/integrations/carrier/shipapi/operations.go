package shipapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/BearBump/ShipBox/internal/extract"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Провайдер не держит единый формат ответа, поэтому каждое логическое поле
// ищется по нескольким ключам.
var (
	fOfferList    = extract.NewField("offers", "data", "services", "results", "quotes")
	fOfferError   = extract.NewField("error", "error", "error_message")
	fServiceID    = extract.NewField("service_id", "id", "service_id", "serviceId", "service.id")
	fServiceName  = extract.NewField("service_name", "name", "service_name", "serviceName", "service.name")
	fCarrierID    = extract.NewField("carrier_id", "company.id", "carrier.id", "carrier_id", "carrierId")
	fCarrierName  = extract.NewField("carrier_name", "company.name", "carrier.name", "carrier_name", "carrierName")
	fPrice        = extract.NewField("price", "custom_price", "price", "total", "amount")
	fCurrency     = extract.NewField("currency", "currency")
	fDeliveryTime = extract.NewField("delivery_time", "custom_delivery_time", "delivery_time", "delivery_range.max", "deadline", "days")
	fDescription  = extract.NewField("description", "description", "service_description", "status_description", "message")

	fTracking = extract.NewField("tracking_number",
		"tracking_number", "trackingNumber", "tracking", "tracking_code", "self_tracking",
		"data.tracking_number", "data.tracking", "label.tracking")
	fLabelURL = extract.NewField("label_url",
		"label_url", "labelUrl", "url", "print.url", "data.label_url", "data.url", "label.url")
	fLabelID = extract.NewField("label_id",
		"label_id", "labelId", "id", "order_id", "data.id", "label.id")

	fStatus      = extract.NewField("status", "status", "status_code", "data.status", "tracking.status")
	fEvents      = extract.NewField("events", "events", "history", "tracking_events", "data.events")
	fEventStatus = extract.NewField("event_status", "status", "code", "event")
	fEventDesc   = extract.NewField("event_description", "description", "message", "details")
	fEventLoc    = extract.NewField("event_location", "location", "city", "place")
	fEventTime   = extract.NewField("event_time", "date", "event_time", "created_at", "datetime", "timestamp")

	fPickupID   = extract.NewField("pickup_id", "pickup_id", "id", "protocol", "data.id")
	fCancelled  = extract.NewField("cancelled", "canceled", "cancelled", "success", "data.canceled")
	fStatusText = extract.NewField("status", "status", "data.status")
)

type quoteRequest struct {
	From     addressBlock   `json:"from"`
	To       addressBlock   `json:"to"`
	Packages []packageBlock `json:"packages"`
	Carrier  string         `json:"carrier"`
}

func (c *Client) Quote(ctx context.Context, dest models.Address, pkgs []models.Package, carrierID string) ([]carrier.RawServiceOffer, error) {
	b, err := c.do(ctx, "quote", http.MethodPost, "/api/v2/shipment/calculate", nil, quoteRequest{
		From:     toAddress(c.origin),
		To:       toAddress(dest),
		Packages: toPackages(pkgs),
		Carrier:  carrierID,
	})
	if err != nil {
		return nil, err
	}

	items, err := decodeList(b, fOfferList)
	if err != nil {
		return nil, errors.Wrap(err, "decode quote")
	}

	out := make([]carrier.RawServiceOffer, 0, len(items))
	for _, it := range items {
		if fOfferError.String(it) != "" {
			continue
		}
		price, perr := decimal.NewFromString(fPrice.String(it))
		if perr != nil {
			continue
		}
		cid := fCarrierID.String(it)
		if cid == "" {
			cid = carrierID
		}
		out = append(out, carrier.RawServiceOffer{
			CarrierID:    cid,
			CarrierName:  fCarrierName.String(it),
			ServiceID:    fServiceID.String(it),
			ServiceName:  fServiceName.String(it),
			Description:  fDescription.String(it),
			Price:        price,
			Currency:     fCurrency.String(it),
			DeliveryTime: fDeliveryTime.String(it),
		})
	}
	return out, nil
}

type labelRequest struct {
	From      addressBlock   `json:"from"`
	To        addressBlock   `json:"to"`
	Packages  []packageBlock `json:"packages"`
	Carrier   string         `json:"carrier"`
	Service   string         `json:"service"`
	Reference string         `json:"reference,omitempty"`
}

func (c *Client) CreateLabel(ctx context.Context, dest models.Address, pkgs []models.Package, carrierID, serviceID, reference string) (carrier.RawLabelResult, error) {
	b, err := c.do(ctx, "create_label", http.MethodPost, "/api/v2/shipment/labels", nil, labelRequest{
		From:      toAddress(c.origin),
		To:        toAddress(dest),
		Packages:  toPackages(pkgs),
		Carrier:   carrierID,
		Service:   serviceID,
		Reference: reference,
	})
	if err != nil {
		return carrier.RawLabelResult{}, err
	}

	raw, err := decodeObject(b)
	if err != nil {
		return carrier.RawLabelResult{}, errors.Wrap(err, "decode label")
	}
	return carrier.RawLabelResult{
		TrackingNumber: fTracking.String(raw),
		LabelURL:       fLabelURL.String(raw),
		LabelID:        fLabelID.String(raw),
		Raw:            json.RawMessage(b),
	}, nil
}

func (c *Client) Track(ctx context.Context, trackingNumber, carrierID string) (carrier.RawTrackingResult, error) {
	q := url.Values{}
	q.Set("tracking", trackingNumber)
	if carrierID != "" {
		q.Set("carrier", carrierID)
	}
	b, err := c.do(ctx, "track", http.MethodGet, "/api/v2/shipment/tracking", q, nil)
	if err != nil {
		return carrier.RawTrackingResult{}, err
	}

	raw, err := decodeObject(b)
	if err != nil {
		return carrier.RawTrackingResult{}, errors.Wrap(err, "decode tracking")
	}
	// Иногда ответ приходит как {"<tracking>": {...}}.
	if nested, ok := raw[trackingNumber].(map[string]any); ok {
		raw = nested
	}

	res := carrier.RawTrackingResult{
		TrackingNumber: trackingNumber,
		CarrierID:      carrierID,
		Status:         fStatus.String(raw),
		Description:    fDescription.String(raw),
		Raw:            json.RawMessage(b),
	}
	for _, ev := range fEvents.List(raw) {
		at, _ := fEventTime.Time(ev)
		evRaw, _ := json.Marshal(ev)
		res.Events = append(res.Events, carrier.RawTrackingEvent{
			Status:      fEventStatus.String(ev),
			Description: fEventDesc.String(ev),
			Location:    fEventLoc.String(ev),
			EventTime:   at,
			Raw:         evRaw,
		})
	}
	return res, nil
}

type pickupRequest struct {
	Carrier  string   `json:"carrier"`
	Orders   []string `json:"orders"`
	Date     string   `json:"date"`
	Window   string   `json:"window,omitempty"`
	Volumes  int      `json:"volumes"`
	Location string   `json:"postal_code"`
}

func (c *Client) SchedulePickup(ctx context.Context, req carrier.PickupRequest) (carrier.RawPickupResult, error) {
	b, err := c.do(ctx, "schedule_pickup", http.MethodPost, "/api/v2/shipment/pickup", nil, pickupRequest{
		Carrier:  req.CarrierID,
		Orders:   req.TrackingNumbers,
		Date:     req.Date.Format("2006-01-02"),
		Window:   req.Window,
		Volumes:  req.PackageCount,
		Location: digits(c.origin.PostalCode),
	})
	if err != nil {
		return carrier.RawPickupResult{}, err
	}

	raw, err := decodeObject(b)
	if err != nil {
		return carrier.RawPickupResult{}, errors.Wrap(err, "decode pickup")
	}
	st := fStatusText.String(raw)
	return carrier.RawPickupResult{
		PickupID:  fPickupID.String(raw),
		Status:    st,
		Scheduled: !strings.EqualFold(st, "rejected") && !strings.EqualFold(st, "failed"),
		Raw:       json.RawMessage(b),
	}, nil
}

type cancelRequest struct {
	ID      string `json:"id"`
	Carrier string `json:"carrier"`
	Reason  string `json:"reason"`
}

func (c *Client) Cancel(ctx context.Context, labelID, carrierID string) (carrier.RawCancelResult, error) {
	b, err := c.do(ctx, "cancel", http.MethodPost, "/api/v2/shipment/cancel", nil, cancelRequest{
		ID:      labelID,
		Carrier: carrierID,
		Reason:  "cancelled by merchant",
	})
	if err != nil {
		return carrier.RawCancelResult{}, err
	}

	raw, err := decodeObject(b)
	if err != nil {
		return carrier.RawCancelResult{}, errors.Wrap(err, "decode cancel")
	}
	res := carrier.RawCancelResult{Status: fStatusText.String(raw), Raw: json.RawMessage(b)}
	if v, ok := fCancelled.Lookup(raw); ok {
		res.Cancelled, _ = v.(bool)
	}
	if !res.Cancelled {
		s := strings.ToLower(res.Status)
		res.Cancelled = s == "canceled" || s == "cancelled"
	}
	return res, nil
}

// decodeObject разбирает объект; пустое тело считается пустым объектом.
func decodeObject(b []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(b))) == 0 {
		return map[string]any{}, nil
	}
	return extract.Decode(b)
}

// decodeList принимает как голый массив, так и объект с массивом внутри.
func decodeList(b []byte, field extract.Field) ([]map[string]any, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case []any:
		return extract.NewField(field.Name, "items").List(map[string]any{"items": t}), nil
	case map[string]any:
		if l := field.List(t); l != nil {
			return l, nil
		}
		return []map[string]any{t}, nil
	default:
		return nil, nil
	}
}
