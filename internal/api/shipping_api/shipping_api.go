package shipping_api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/metrics"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/services/rates"
	"github.com/BearBump/ShipBox/internal/services/shipments"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

const (
	maxBodyBytes    = 1 << 20
	maxSyncItems    = 200
	reasonQueued    = "queued"
	contentTypeJSON = "application/json"
)

type Quoter interface {
	GetQuotes(ctx context.Context, req rates.Request) (rates.Result, error)
}

type Shipments interface {
	CreateLabel(ctx context.Context, req shipments.LabelRequest) (*models.Shipment, error)
	Track(ctx context.Context, trackingNumber, carrierID string) (*shipments.TrackingView, error)
	SyncMany(ctx context.Context, items []shipments.SyncItem) shipments.SyncReport
	SchedulePickup(ctx context.Context, req carrier.PickupRequest) (carrier.RawPickupResult, error)
	Cancel(ctx context.Context, req shipments.CancelRequest) (carrier.RawCancelResult, error)
	IngestWebhook(ctx context.Context, payload []byte) shipments.WebhookAck
	ConfigStatus() shipments.ConfigStatus

	GetShipment(ctx context.Context, ref string) (*models.Shipment, error)
	ListEvents(ctx context.Context, ref string, limit, offset int) ([]*models.ShipmentEvent, error)
	GetWebhookLog(ctx context.Context, id string) (*models.WebhookLog, error)
}

// WebhookRelay: очередь для асинхронной обработки вебхуков (Kafka).
type WebhookRelay interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

type Options struct {
	SwaggerPath    string
	DefaultPackage models.Dimensions

	// Если заданы оба, вебхук уходит в очередь и подтверждается сразу.
	Relay        WebhookRelay
	WebhookTopic string
}

type Handler struct {
	quotes Quoter
	ships  Shipments
	opts   Options
	log    *zap.Logger
}

func New(quotes Quoter, ships Shipments, opts Options, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{quotes: quotes, ships: ships, opts: opts, log: log}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(countRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	if h.opts.SwaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, h.opts.SwaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(h.opts.SwaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/quotes", h.getQuotes)
		r.Post("/labels", h.createLabel)
		r.Get("/tracking/{trackingNumber}", h.track)
		r.Post("/shipments/sync", h.syncMany)
		r.Get("/shipments/{trackingNumber}", h.getShipment)
		r.Get("/shipments/{trackingNumber}/events", h.listEvents)
		r.Post("/shipments/{trackingNumber}/cancel", h.cancel)
		r.Post("/pickups", h.schedulePickup)
		r.Post("/webhooks/shipping", h.webhook)
		r.Get("/webhooks/shipping/{webhookID}", h.getWebhookLog)
		r.Get("/shipping/status", h.status)
	})
	return r
}

type quoteRequest struct {
	Destination models.Address     `json:"destination"`
	Packages    []models.Package   `json:"packages"`
	Items       []models.OrderItem `json:"items"`
	Carriers    []string           `json:"carriers"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
}

func (h *Handler) getQuotes(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	pkgs := req.Packages
	if len(pkgs) == 0 && len(req.Items) > 0 {
		pkgs = []models.Package{models.PackageFromItems(req.Items, h.opts.DefaultPackage)}
	}

	res, err := h.quotes.GetQuotes(r.Context(), rates.Request{
		Destination: req.Destination,
		Packages:    pkgs,
		Carriers:    req.Carriers,
		Subtotal:    req.Subtotal,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) createLabel(w http.ResponseWriter, r *http.Request) {
	var req shipments.LabelRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	sh, err := h.ships.CreateLabel(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sh)
}

func (h *Handler) track(w http.ResponseWriter, r *http.Request) {
	view, err := h.ships.Track(r.Context(), chi.URLParam(r, "trackingNumber"), r.URL.Query().Get("carrier"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// getShipment отдаёт сохранённое состояние; trackingNumber может быть и UUID отправления.
func (h *Handler) getShipment(w http.ResponseWriter, r *http.Request) {
	sh, err := h.ships.GetShipment(r.Context(), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.writeError(w, err)
		return
	}
	evs, err := h.ships.ListEvents(r.Context(), chi.URLParam(r, "trackingNumber"), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

type syncRequest struct {
	Items           []shipments.SyncItem `json:"items"`
	TrackingNumbers []string             `json:"trackingNumbers"`
}

func (h *Handler) syncMany(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	items := req.Items
	for _, tn := range req.TrackingNumbers {
		items = append(items, shipments.SyncItem{TrackingNumber: tn})
	}
	if len(items) == 0 {
		h.writeError(w, apperr.ErrValidation.WithDetails("items or trackingNumbers is required"))
		return
	}
	if len(items) > maxSyncItems {
		h.writeError(w, apperr.ErrValidation.WithDetails("too many items, max "+strconv.Itoa(maxSyncItems)))
		return
	}
	writeJSON(w, http.StatusOK, h.ships.SyncMany(r.Context(), items))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var req shipments.CancelRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			h.writeError(w, err)
			return
		}
	}
	req.TrackingNumber = chi.URLParam(r, "trackingNumber")

	res, err := h.ships.Cancel(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": res.Cancelled, "status": res.Status})
}

func (h *Handler) schedulePickup(w http.ResponseWriter, r *http.Request) {
	var req carrier.PickupRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.ships.SchedulePickup(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pickupId": res.PickupID, "status": res.Status, "scheduled": res.Scheduled})
}

// webhook всегда отвечает 200: провайдер ретраит только на не-2xx, а повтор ничего не исправит.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.log.Warn("read webhook body", zap.Error(err))
	}

	if h.opts.Relay != nil && h.opts.WebhookTopic != "" && json.Valid(body) {
		msg := messages.WebhookReceived{ReceivedAt: time.Now().UTC(), Payload: body}
		err := h.opts.Relay.PublishJSON(r.Context(), h.opts.WebhookTopic, "", msg)
		if err == nil {
			writeJSON(w, http.StatusOK, shipments.WebhookAck{Received: true, Reason: reasonQueued})
			return
		}
		h.log.Warn("relay webhook, processing inline", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, h.ships.IngestWebhook(r.Context(), body))
}

func (h *Handler) getWebhookLog(w http.ResponseWriter, r *http.Request) {
	wl, err := h.ships.GetWebhookLog(r.Context(), chi.URLParam(r, "webhookID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ships.ConfigStatus())
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperr.ErrValidation.WithDetails("invalid JSON body: " + err.Error())
	}
	return nil
}

// queryInt: отсутствующий параметр даёт 0.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.ErrValidation.WithDetails(name + " must be an integer")
	}
	return n, nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	e := apperr.As(err)
	code := e.HTTPCode()
	if code >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("code", e.Code()), zap.Error(err))
	}
	writeJSON(w, code, map[string]errorBody{"error": {
		Code:    e.Code(),
		Message: e.Message(),
		Details: e.Details(),
		Data:    e.Data(),
	}})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// countRequests считает запросы по шаблону маршрута, а не по сырому пути.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
	})
}
