package shipping_api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/integrations/carrier/fake"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/services/rates"
	"github.com/BearBump/ShipBox/internal/services/shipments"
	"github.com/stretchr/testify/require"
)

type stubShipments struct {
	Shipments

	tracked   []string
	synced    []shipments.SyncItem
	cancelReq shipments.CancelRequest
	webhooks  [][]byte
	trackErr  error
	listArgs  []int
}

func (s *stubShipments) Track(_ context.Context, tn, carrierID string) (*shipments.TrackingView, error) {
	s.tracked = append(s.tracked, tn+"/"+carrierID)
	if s.trackErr != nil {
		return nil, s.trackErr
	}
	return &shipments.TrackingView{TrackingNumber: tn, CarrierID: carrierID, Status: models.StatusInTransit}, nil
}

func (s *stubShipments) SyncMany(_ context.Context, items []shipments.SyncItem) shipments.SyncReport {
	s.synced = items
	return shipments.SyncReport{Total: len(items), Succeeded: len(items)}
}

func (s *stubShipments) Cancel(_ context.Context, req shipments.CancelRequest) (carrier.RawCancelResult, error) {
	s.cancelReq = req
	return carrier.RawCancelResult{Cancelled: true, Status: "cancelled"}, nil
}

func (s *stubShipments) CreateLabel(_ context.Context, req shipments.LabelRequest) (*models.Shipment, error) {
	return nil, apperr.ErrLabelIncomplete.WithData(shipments.PartialLabel{OrderID: req.OrderID, LabelID: "L1"})
}

func (s *stubShipments) IngestWebhook(_ context.Context, payload []byte) shipments.WebhookAck {
	s.webhooks = append(s.webhooks, payload)
	return shipments.WebhookAck{Received: true, Reason: shipments.ReasonShipmentNotFound}
}

func (s *stubShipments) ConfigStatus() shipments.ConfigStatus {
	return shipments.ConfigStatus{Active: true, Provider: "fake", Mode: "fake"}
}

func (s *stubShipments) GetShipment(_ context.Context, ref string) (*models.Shipment, error) {
	if ref != "BR123" {
		return nil, apperr.ErrShipmentNotFound
	}
	return &models.Shipment{TrackingNumber: ref, CarrierID: "1", Status: models.StatusInTransit}, nil
}

func (s *stubShipments) ListEvents(_ context.Context, ref string, limit, offset int) ([]*models.ShipmentEvent, error) {
	s.listArgs = []int{limit, offset}
	if ref != "BR123" {
		return nil, apperr.ErrShipmentNotFound
	}
	return []*models.ShipmentEvent{
		{Status: models.StatusInTransit, RawStatus: "IN_TRANSIT"},
		{Status: models.StatusPickedUp, RawStatus: "POSTED"},
	}, nil
}

func (s *stubShipments) GetWebhookLog(_ context.Context, id string) (*models.WebhookLog, error) {
	if id != "wh-1" {
		return nil, apperr.ErrNotFound
	}
	return &models.WebhookLog{TrackingNumber: "BR123", Processed: true, Error: shipments.ReasonShipmentNotFound}, nil
}

type relay struct {
	topic string
	msgs  []any
	err   error
}

func (r *relay) PublishJSON(_ context.Context, topic, _ string, v any) error {
	if r.err != nil {
		return r.err
	}
	r.topic = topic
	r.msgs = append(r.msgs, v)
	return nil
}

func newServer(t *testing.T, ships *stubShipments, opts Options) *httptest.Server {
	t.Helper()
	agg := rates.New(fake.New(), nil, rates.Config{Carriers: []string{"1", "2"}}, nil)
	srv := httptest.NewServer(New(agg, ships, opts, nil).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestQuotes_FromItems(t *testing.T) {
	srv := newServer(t, &stubShipments{}, Options{})

	resp, out := do(t, http.MethodPost, srv.URL+"/v1/quotes", `{
		"destination": {"postalCode": "24020-005", "city": "Niterói", "region": "RJ"},
		"items": [{"productId": "p1", "quantity": 2, "unitPrice": "50", "weightKg": 0.5}],
		"subtotal": "100"
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, out["isFallback"])
	require.NotEmpty(t, out["quotes"])
}

func TestQuotes_InvalidPostal(t *testing.T) {
	srv := newServer(t, &stubShipments{}, Options{})

	resp, out := do(t, http.MethodPost, srv.URL+"/v1/quotes", `{
		"destination": {"postalCode": "123"},
		"packages": [{"quantity": 1, "weightKg": 1}],
		"subtotal": "10"
	}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_POSTAL_CODE", out["error"].(map[string]any)["code"])
}

func TestQuotes_BadJSON(t *testing.T) {
	srv := newServer(t, &stubShipments{}, Options{})

	resp, out := do(t, http.MethodPost, srv.URL+"/v1/quotes", `{"destination":`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "VALIDATION_FAILED", out["error"].(map[string]any)["code"])
}

func TestTrack(t *testing.T) {
	ships := &stubShipments{}
	srv := newServer(t, ships, Options{})

	resp, out := do(t, http.MethodGet, srv.URL+"/v1/tracking/BR123?carrier=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "in_transit", out["status"])
	require.Equal(t, []string{"BR123/1"}, ships.tracked)

	ships.trackErr = carrier.ErrGatewayTimeout
	resp, out = do(t, http.MethodGet, srv.URL+"/v1/tracking/BR123", "")
	require.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	require.Equal(t, "GATEWAY_TIMEOUT", out["error"].(map[string]any)["code"])
}

func TestCreateLabel_PartialDataInError(t *testing.T) {
	srv := newServer(t, &stubShipments{}, Options{})

	resp, out := do(t, http.MethodPost, srv.URL+"/v1/labels", `{"orderId":"o1","carrierId":"1","serviceId":"s"}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	e := out["error"].(map[string]any)
	require.Equal(t, "LABEL_INCOMPLETE", e["code"])
	require.Equal(t, "L1", e["data"].(map[string]any)["labelId"])
}

func TestSync_MergesTrackingNumbers(t *testing.T) {
	ships := &stubShipments{}
	srv := newServer(t, ships, Options{})

	resp, out := do(t, http.MethodPost, srv.URL+"/v1/shipments/sync",
		`{"items":[{"trackingNumber":"A","carrierId":"1"}],"trackingNumbers":["B"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 2, out["total"])
	require.Equal(t, []shipments.SyncItem{{TrackingNumber: "A", CarrierID: "1"}, {TrackingNumber: "B"}}, ships.synced)

	resp, _ = do(t, http.MethodPost, srv.URL+"/v1/shipments/sync", `{}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancel_UsesPathTracking(t *testing.T) {
	ships := &stubShipments{}
	srv := newServer(t, ships, Options{})

	resp, out := do(t, http.MethodPost, srv.URL+"/v1/shipments/BR9/cancel", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, out["cancelled"])
	require.Equal(t, "BR9", ships.cancelReq.TrackingNumber)
}

func TestWebhook_InlineAlwaysOK(t *testing.T) {
	ships := &stubShipments{}
	srv := newServer(t, ships, Options{})

	resp, out := do(t, http.MethodPost, srv.URL+"/v1/webhooks/shipping", `not json`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, out["received"])
	require.Len(t, ships.webhooks, 1)
}

func TestWebhook_Relayed(t *testing.T) {
	ships := &stubShipments{}
	rl := &relay{}
	srv := newServer(t, ships, Options{Relay: rl, WebhookTopic: "webhooks"})

	resp, out := do(t, http.MethodPost, srv.URL+"/v1/webhooks/shipping", `{"tracking":"BR1","status":"delivered"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, reasonQueued, out["reason"])
	require.Empty(t, ships.webhooks)
	require.Equal(t, "webhooks", rl.topic)
	require.Len(t, rl.msgs, 1)
	require.JSONEq(t, `{"tracking":"BR1","status":"delivered"}`, string(rl.msgs[0].(messages.WebhookReceived).Payload))
}

func TestWebhook_RelayFailureProcessesInline(t *testing.T) {
	ships := &stubShipments{}
	srv := newServer(t, ships, Options{Relay: &relay{err: errors.New("broker down")}, WebhookTopic: "webhooks"})

	resp, out := do(t, http.MethodPost, srv.URL+"/v1/webhooks/shipping", `{"tracking":"BR1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, shipments.ReasonShipmentNotFound, out["reason"])
	require.Len(t, ships.webhooks, 1)
}

func TestStatusAndHealth(t *testing.T) {
	srv := newServer(t, &stubShipments{}, Options{})

	resp, out := do(t, http.MethodGet, srv.URL+"/v1/shipping/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, out["active"])

	resp, out = do(t, http.MethodGet, srv.URL+"/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", out["status"])

	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	require.Equal(t, http.StatusOK, metricsResp.StatusCode)
}

func TestGetShipment(t *testing.T) {
	srv := newServer(t, &stubShipments{}, Options{})

	resp, out := do(t, http.MethodGet, srv.URL+"/v1/shipments/BR123", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "BR123", out["trackingNumber"])
	require.Equal(t, "in_transit", out["status"])

	resp, out = do(t, http.MethodGet, srv.URL+"/v1/shipments/NOPE", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "SHIPMENT_NOT_FOUND", out["error"].(map[string]any)["code"])
}

func TestListEvents(t *testing.T) {
	ships := &stubShipments{}
	srv := newServer(t, ships, Options{})

	resp, out := do(t, http.MethodGet, srv.URL+"/v1/shipments/BR123/events?limit=20&offset=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []int{20, 5}, ships.listArgs)
	evs := out["events"].([]any)
	require.Len(t, evs, 2)
	require.Equal(t, "in_transit", evs[0].(map[string]any)["status"])

	resp, out = do(t, http.MethodGet, srv.URL+"/v1/shipments/BR123/events?limit=ten", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "VALIDATION_FAILED", out["error"].(map[string]any)["code"])
}

func TestGetWebhookLog(t *testing.T) {
	srv := newServer(t, &stubShipments{}, Options{})

	resp, out := do(t, http.MethodGet, srv.URL+"/v1/webhooks/shipping/wh-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "BR123", out["trackingNumber"])
	require.Equal(t, true, out["processed"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/webhooks/shipping/wh-2", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
