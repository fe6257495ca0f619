package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/cache"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/metrics"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	LabelCheapest = "Most economical"
	LabelFastest  = "Fastest"

	unparsableDays = 99
)

var expressKeywords = []string{"express", "priority", "overnight", "next day", "same day", "24h"}

type Fallback struct {
	StandardPrice decimal.Decimal
	StandardDays  string
	ExpressPrice  decimal.Decimal
	ExpressDays   string
}

type Config struct {
	Carriers              []string
	CarrierExpressTokens  map[string][]string
	Currency              string
	FreeShippingThreshold decimal.Decimal
	PostalCodeLength      int
	CarrierTimeout        time.Duration
	CacheTTL              time.Duration
	Fallback              Fallback
}

func DefaultConfig() Config {
	return Config{
		Currency:              "BRL",
		FreeShippingThreshold: decimal.NewFromInt(500),
		PostalCodeLength:      8,
		CarrierTimeout:        carrier.DefaultTimeout,
		Fallback: Fallback{
			StandardPrice: decimal.NewFromInt(25),
			StandardDays:  "7-10",
			ExpressPrice:  decimal.NewFromInt(45),
			ExpressDays:   "2-4",
		},
	}
}

type Request struct {
	Destination models.Address   `json:"destination"`
	Packages    []models.Package `json:"packages"`
	Carriers    []string         `json:"carriers,omitempty"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
}

type CarrierError struct {
	CarrierID string `json:"carrierId"`
	Error     string `json:"error"`
}

type Result struct {
	Quotes                   []models.Quote  `json:"quotes"`
	FreeShippingThreshold    decimal.Decimal `json:"freeShippingThreshold"`
	Subtotal                 decimal.Decimal `json:"subtotal"`
	QualifiesForFreeShipping bool            `json:"qualifiesForFreeShipping"`
	IsFallback               bool            `json:"isFallback"`
	Errors                   []CarrierError  `json:"errors,omitempty"`
}

// Aggregator опрашивает перевозчиков параллельно и сводит ответы к одной-двум опциям.
type Aggregator struct {
	gw       carrier.Gateway
	cache    cache.BytesCache
	cfg      Config
	log      *zap.Logger
	validate *validator.Validate
}

func New(gw carrier.Gateway, c cache.BytesCache, cfg Config, log *zap.Logger) *Aggregator {
	def := DefaultConfig()
	if cfg.Currency == "" {
		cfg.Currency = def.Currency
	}
	if cfg.FreeShippingThreshold.IsZero() {
		cfg.FreeShippingThreshold = def.FreeShippingThreshold
	}
	if cfg.PostalCodeLength <= 0 {
		cfg.PostalCodeLength = def.PostalCodeLength
	}
	if cfg.CarrierTimeout <= 0 {
		cfg.CarrierTimeout = def.CarrierTimeout
	}
	if cfg.Fallback.StandardPrice.IsZero() && cfg.Fallback.ExpressPrice.IsZero() {
		cfg.Fallback = def.Fallback
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{gw: gw, cache: c, cfg: cfg, log: log, validate: validator.New()}
}

func (a *Aggregator) GetQuotes(ctx context.Context, req Request) (Result, error) {
	if err := a.validateRequest(&req); err != nil {
		return Result{}, err
	}
	carriers := req.Carriers
	if len(carriers) == 0 {
		carriers = a.cfg.Carriers
	}

	if !a.gw.Configured() {
		metrics.QuoteFallbacksTotal.WithLabelValues("unconfigured").Inc()
		return a.finish(a.fallbackQuotes(), req.Subtotal, true, nil), nil
	}

	key := cacheKey(req.Destination.PostalCode, req.Packages, carriers)
	if quotes, ok := a.fromCache(ctx, key); ok {
		return a.finish(reduce(quotes), req.Subtotal, false, nil), nil
	}

	quotes, errs := a.fanOut(ctx, req.Destination, req.Packages, carriers)
	if len(quotes) == 0 {
		metrics.QuoteFallbacksTotal.WithLabelValues("no_quotes").Inc()
		a.log.Warn("no carrier quotes, using fallback rates", zap.Int("carrier_errors", len(errs)))
		if len(errs) == 0 {
			errs = []CarrierError{{Error: "no carrier returned a quote"}}
		}
		return a.finish(a.fallbackQuotes(), req.Subtotal, true, errs), nil
	}
	if len(errs) == 0 {
		a.toCache(ctx, key, quotes)
	}

	return a.finish(reduce(quotes), req.Subtotal, false, errs), nil
}

func (a *Aggregator) validateRequest(req *Request) error {
	postal := digits(req.Destination.PostalCode)
	if len(postal) != a.cfg.PostalCodeLength {
		return apperr.ErrInvalidPostal.WithDetails(fmt.Sprintf("expected %d digits, got %d", a.cfg.PostalCodeLength, len(postal)))
	}
	req.Destination.PostalCode = postal

	if len(req.Packages) == 0 {
		return apperr.ErrValidation.WithDetails("at least one package is required")
	}
	for i := range req.Packages {
		if err := a.validate.Struct(req.Packages[i]); err != nil {
			return apperr.ErrValidation.WithDetails(fmt.Sprintf("packages[%d]: %s", i, err.Error()))
		}
	}
	return nil
}

type collector struct {
	mu     sync.Mutex
	quotes []models.Quote
	errs   []CarrierError
}

func (c *collector) add(quotes []models.Quote) {
	c.mu.Lock()
	c.quotes = append(c.quotes, quotes...)
	c.mu.Unlock()
}

func (c *collector) fail(carrierID string, err error) {
	c.mu.Lock()
	c.errs = append(c.errs, CarrierError{CarrierID: carrierID, Error: err.Error()})
	c.mu.Unlock()
}

// fanOut: одна горутина на перевозчика, у каждой свой таймаут.
// Ошибки перевозчиков собираются, но не прерывают остальных.
func (a *Aggregator) fanOut(ctx context.Context, dest models.Address, pkgs []models.Package, carriers []string) ([]models.Quote, []CarrierError) {
	col := &collector{}
	var wg sync.WaitGroup

	for _, cid := range carriers {
		wg.Add(1)
		cidCopy := cid
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, a.cfg.CarrierTimeout)
			defer cancel()

			offers, err := a.gw.Quote(cctx, dest, pkgs, cidCopy)
			if err != nil {
				a.log.Warn("carrier quote failed", zap.String("carrier", cidCopy), zap.Error(err))
				col.fail(cidCopy, err)
				return
			}
			quotes := make([]models.Quote, 0, len(offers))
			for _, o := range offers {
				quotes = append(quotes, a.toQuote(cidCopy, o))
			}
			col.add(quotes)
		}()
	}
	wg.Wait()

	sort.Slice(col.errs, func(i, j int) bool { return col.errs[i].CarrierID < col.errs[j].CarrierID })
	return col.quotes, col.errs
}

func (a *Aggregator) toQuote(carrierID string, o carrier.RawServiceOffer) models.Quote {
	cid := o.CarrierID
	if cid == "" {
		cid = carrierID
	}
	currency := o.Currency
	if currency == "" {
		currency = a.cfg.Currency
	}
	return models.Quote{
		CarrierID:     cid,
		CarrierName:   o.CarrierName,
		ServiceID:     o.ServiceID,
		ServiceName:   o.ServiceName,
		Description:   o.Description,
		Price:         o.Price,
		Currency:      currency,
		DeliveryTime:  o.DeliveryTime,
		Express:       a.isExpress(cid, o.ServiceName),
		OriginalPrice: o.Price,
	}
}

func (a *Aggregator) isExpress(carrierID, serviceName string) bool {
	name := strings.ToLower(serviceName)
	for _, kw := range expressKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	for _, kw := range a.cfg.CarrierExpressTokens[carrierID] {
		if kw != "" && strings.Contains(name, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (a *Aggregator) fallbackQuotes() []models.Quote {
	fb := a.cfg.Fallback
	return []models.Quote{
		{
			CarrierID: "fallback", CarrierName: "Standard shipping",
			ServiceID: "standard", ServiceName: "Standard",
			Price: fb.StandardPrice, OriginalPrice: fb.StandardPrice,
			Currency: a.cfg.Currency, DeliveryTime: fb.StandardDays,
			Label: LabelCheapest,
		},
		{
			CarrierID: "fallback", CarrierName: "Express shipping",
			ServiceID: "express", ServiceName: "Express",
			Price: fb.ExpressPrice, OriginalPrice: fb.ExpressPrice,
			Currency: a.cfg.Currency, DeliveryTime: fb.ExpressDays,
			Express: true, Label: LabelFastest,
		},
	}
}

func (a *Aggregator) finish(quotes []models.Quote, subtotal decimal.Decimal, fallback bool, errs []CarrierError) Result {
	qualifies := subtotal.GreaterThanOrEqual(a.cfg.FreeShippingThreshold)
	if qualifies {
		for i := range quotes {
			quotes[i].Price = decimal.Zero
			quotes[i].Free = true
		}
	}
	return Result{
		Quotes:                   quotes,
		FreeShippingThreshold:    a.cfg.FreeShippingThreshold,
		Subtotal:                 subtotal,
		QualifiesForFreeShipping: qualifies,
		IsFallback:               fallback,
		Errors:                   errs,
	}
}

func (a *Aggregator) fromCache(ctx context.Context, key string) ([]models.Quote, bool) {
	if a.cache == nil || a.cfg.CacheTTL <= 0 {
		return nil, false
	}
	b, ok, err := a.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var quotes []models.Quote
	if json.Unmarshal(b, &quotes) != nil || len(quotes) == 0 {
		return nil, false
	}
	return quotes, true
}

func (a *Aggregator) toCache(ctx context.Context, key string, quotes []models.Quote) {
	if a.cache == nil || a.cfg.CacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(quotes)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, b, a.cfg.CacheTTL); err != nil {
		a.log.Warn("cache quotes", zap.Error(err))
	}
}

func cacheKey(postal string, pkgs []models.Package, carriers []string) string {
	cs := append([]string(nil), carriers...)
	sort.Strings(cs)

	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%s|%s", postal, strings.Join(cs, ","))
	for _, p := range pkgs {
		_, _ = fmt.Fprintf(h, "|%d:%g:%s:%gx%gx%g", p.Quantity, p.WeightKg, p.DeclaredValue.String(), p.LengthCm, p.WidthCm, p.HeightCm)
	}
	return fmt.Sprintf("quotes:%x", h.Sum64())
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
