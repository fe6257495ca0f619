package shipapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/internal/extract"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/metrics"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/region"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 20

type Config struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
	Origin    models.Address
}

// Client: HTTP-шлюз к облачному агрегатору доставки.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	timeout   time.Duration
	origin    models.Address
	httpc     *http.Client
	log       *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = carrier.DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ShipBox/1.0"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		origin:    cfg.Origin,
		httpc:     &http.Client{},
		log:       log,
	}
}

func (c *Client) Configured() bool {
	return c.token != "" && c.baseURL != ""
}

type addressBlock struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city,omitempty"`
	StateAbbr  string `json:"state_abbr,omitempty"`
	PostalCode string `json:"postal_code"`
	CountryID  string `json:"country_id,omitempty"`
	Complement string `json:"complement,omitempty"`
}

type packageBlock struct {
	Height         float64 `json:"height"`
	Width          float64 `json:"width"`
	Length         float64 `json:"length"`
	Weight         float64 `json:"weight"`
	InsuranceValue string  `json:"insurance_value"`
	Quantity       int     `json:"quantity"`
	Content        string  `json:"content,omitempty"`
}

func toAddress(a models.Address) addressBlock {
	country := a.Country
	if country == "" {
		country = "BR"
	}
	return addressBlock{
		Name:       a.Name,
		Email:      a.Email,
		Phone:      a.Phone,
		Address:    a.Street,
		District:   a.District,
		City:       a.City,
		StateAbbr:  region.Normalize(a.Region),
		PostalCode: digits(a.PostalCode),
		CountryID:  country,
		Complement: a.Reference,
	}
}

func toPackages(pkgs []models.Package) []packageBlock {
	out := make([]packageBlock, 0, len(pkgs))
	for _, p := range pkgs {
		insurance := p.Insurance
		if insurance.IsZero() {
			insurance = p.DeclaredValue
		}
		qty := p.Quantity
		if qty <= 0 {
			qty = 1
		}
		out = append(out, packageBlock{
			Height:         p.HeightCm,
			Width:          p.WidthCm,
			Length:         p.LengthCm,
			Weight:         p.WeightKg,
			InsuranceValue: insurance.StringFixed(2),
			Quantity:       qty,
			Content:        p.Content,
		})
	}
	return out
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

// do выполняет один запрос к провайдеру со своим таймаутом.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) (b []byte, err error) {
	if !c.Configured() {
		return nil, carrier.ErrGatewayUnconfigured
	}

	started := time.Now()
	defer func() { metrics.ObserveGateway(op, started, err) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		payload, mErr := json.Marshal(body)
		if mErr != nil {
			return nil, errors.Wrap(mErr, "marshal request")
		}
		rdr = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, carrier.ErrGatewayTimeout.WithDetails(op)
		}
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	b, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, carrier.ErrGatewayTimeout.WithDetails(op)
		}
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode/100 != 2 {
		rej := rejected(resp.StatusCode, b)
		c.log.Warn("provider rejected request",
			zap.String("operation", op),
			zap.Int("http_status", resp.StatusCode),
			zap.String("carrier_message", rej.CarrierMessage),
		)
		return nil, rej
	}
	return b, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

var (
	fErrMessage = extract.NewField("message", "message", "error", "error.message", "errors.message", "detail")
	fErrCode    = extract.NewField("code", "code", "error_code", "error.code", "errors.code")
)

func rejected(status int, body []byte) *carrier.RejectedError {
	rej := &carrier.RejectedError{HTTPStatus: status}
	if raw, err := extract.Decode(body); err == nil {
		rej.CarrierMessage = fErrMessage.String(raw)
		rej.CarrierCode = fErrCode.String(raw)
	}
	if rej.CarrierMessage == "" {
		rej.CarrierMessage = http.StatusText(status)
	}
	return rej
}
