// Package api is the typed client for the basket server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/andrewbyteforge/pricecomparison/pkg/httpclient"
	"github.com/andrewbyteforge/pricecomparison/pkg/logger"
	"github.com/andrewbyteforge/pricecomparison/services/shopper/internal/domain"
)

const (
	serviceName   = "basket"
	basketPath    = "/api/v1/basket"
	maxBodyBytes  = 1 << 20
	csrfFlightKey = "csrf"
)

// Config configures a basket server client.
type Config struct {
	BaseURL string
	UserID  string
	Timeout time.Duration

	CSRFCookieName string
	CSRFHeaderName string

	Breaker httpclient.CircuitBreakerConfig
}

// DefaultConfig returns the defaults for talking to a local basket server.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:8010",
		Timeout:        10 * time.Second,
		CSRFCookieName: "csrftoken",
		CSRFHeaderName: "X-CSRFToken",
		Breaker:        httpclient.DefaultCircuitBreakerConfig("basket-server"),
	}
}

// Client talks to the basket server. Requests are never retried; a circuit
// breaker stops calls while the server is failing.
type Client struct {
	base   *url.URL
	cfg    Config
	http   *httpclient.CircuitBreakerClient
	group  singleflight.Group
	logger *slog.Logger
}

// NewClient creates a basket server client with its own cookie jar.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse basket server url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("basket server url %q must be absolute", cfg.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	hcfg := httpclient.DefaultConfig()
	hcfg.MaxRetries = 0
	hcfg.Jar = jar
	if cfg.Timeout > 0 {
		hcfg.Timeout = cfg.Timeout
	}

	return &Client{
		base:   base,
		cfg:    cfg,
		http:   httpclient.NewCircuitBreakerClient(httpclient.New(hcfg), cfg.Breaker, logger),
		logger: logger,
	}, nil
}

type addRequest struct {
	Store string `json:"store"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type removeRequest struct {
	ItemID string `json:"item_id"`
}

// statusResponse is the {success, error, message} shape of remove and empty.
type statusResponse struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type totalResponse struct {
	TotalPrice json.Number `json:"total_price"`
	Error      string      `json:"error"`
}

type listResponse struct {
	Items []domain.BasketItem `json:"items"`
}

type csrfResponse struct {
	CSRFToken string `json:"csrf_token"`
}

// Add asks the server to add an item and returns it with its server-issued
// ID. Every field of the reply is validated.
func (c *Client) Add(ctx context.Context, store domain.Store, name string, price decimal.Decimal) (domain.BasketItem, error) {
	var item domain.BasketItem
	err := c.call(ctx, http.MethodPost, "/add", false, addRequest{
		Store: string(store),
		Name:  name,
		Price: price.StringFixed(2),
	}, &item)
	if err != nil {
		return domain.BasketItem{}, err
	}
	if item.ItemID == "" {
		return domain.BasketItem{}, fmt.Errorf("%w: empty add response", domain.ErrMalformedResponse)
	}
	return item, nil
}

// Remove asks the server to remove an item. A reply flagged as a failure is
// returned as a *domain.ServerRejectedError.
func (c *Client) Remove(ctx context.Context, itemID string) error {
	var resp statusResponse
	err := c.call(ctx, http.MethodPost, "/remove", true, removeRequest{ItemID: itemID}, &resp)
	if err != nil {
		return err
	}
	return resp.check()
}

// Total fetches the server's total for one store.
func (c *Client) Total(ctx context.Context, store domain.Store) (decimal.Decimal, error) {
	var resp totalResponse
	path := "/total?" + url.Values{"store": {string(store)}}.Encode()
	if err := c.call(ctx, http.MethodGet, path, false, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.Error != "" {
		return decimal.Zero, &domain.ServerRejectedError{Message: resp.Error}
	}
	if resp.TotalPrice == "" {
		return decimal.Zero, fmt.Errorf("%w: missing total_price", domain.ErrMalformedResponse)
	}
	total, err := decimal.NewFromString(resp.TotalPrice.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: total_price %q", domain.ErrMalformedResponse, resp.TotalPrice)
	}
	return total, nil
}

// List fetches the authoritative item list.
func (c *Client) List(ctx context.Context) ([]domain.BasketItem, error) {
	var resp listResponse
	if err := c.call(ctx, http.MethodGet, "/", false, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		resp.Items = []domain.BasketItem{}
	}
	return resp.Items, nil
}

// Empty asks the server to delete every item.
func (c *Client) Empty(ctx context.Context) error {
	var resp statusResponse
	if err := c.call(ctx, http.MethodDelete, "/", true, nil, &resp); err != nil {
		return err
	}
	return resp.check()
}

func (r statusResponse) check() error {
	switch {
	case r.Success == nil:
		return fmt.Errorf("%w: missing success flag", domain.ErrMalformedResponse)
	case !*r.Success:
		msg := r.Error
		if msg == "" {
			msg = "request failed"
		}
		return &domain.ServerRejectedError{Message: msg}
	}
	return nil
}

// call sends one request and decodes a 2xx body into out. Errors are
// classified into the domain error kinds. With rejectable set, a non-2xx
// reply carrying {success:false, error} is a server rejection rather than a
// network error.
func (c *Client) call(ctx context.Context, method, path string, rejectable bool, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyStatus(resp, rejectable)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		if errors.Is(err, domain.ErrMalformedResponse) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rdr io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", path, err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), rdr)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-User-ID", c.cfg.UserID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	if method != http.MethodGet && method != http.MethodHead {
		token, err := c.csrfToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set(c.cfg.CSRFHeaderName, token)
	}
	return req, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + basketPath + path
}

// csrfToken returns the anti-forgery token from the cookie jar, fetching one
// from the server first if the jar has none. Concurrent callers share one
// fetch, which is not cancelled when the caller that started it goes away.
func (c *Client) csrfToken(ctx context.Context) (string, error) {
	if ck := c.http.Client().Cookie(c.base, c.cfg.CSRFCookieName); ck != nil && ck.Value != "" {
		return ck.Value, nil
	}

	shared := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(csrfFlightKey, func() (any, error) {
		var resp csrfResponse
		if err := c.call(shared, http.MethodGet, "/csrf", false, nil, &resp); err != nil {
			return "", fmt.Errorf("fetch csrf token: %w", err)
		}
		if ck := c.http.Client().Cookie(c.base, c.cfg.CSRFCookieName); ck != nil && ck.Value != "" {
			return ck.Value, nil
		}
		if resp.CSRFToken == "" {
			return "", fmt.Errorf("%w: no csrf token issued", domain.ErrMalformedResponse)
		}
		return resp.CSRFToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func classifyStatus(resp *http.Response, rejectable bool) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read %d response: %w", domain.ErrNetwork, resp.StatusCode, err)
	}

	if body, ok := httpclient.DecodeErrorBody(raw); ok && rejectable && isRejection(raw) {
		return &domain.ServerRejectedError{Message: body.Error}
	}

	resp.Body = io.NopCloser(bytes.NewReader(raw))
	return fmt.Errorf("%w: %w", domain.ErrNetwork, httpclient.ParseResponseError(resp, serviceName))
}

// isRejection reports whether the body carries an explicit success=false flag.
func isRejection(raw []byte) bool {
	var flag struct {
		Success *bool `json:"success"`
	}
	return json.Unmarshal(raw, &flag) == nil && flag.Success != nil && !*flag.Success
}

func classifyTransportError(err error) error {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		if body, ok := httpclient.DecodeErrorBody(statusErr.Body); ok {
			return fmt.Errorf("%w: %s returned %d: %s", domain.ErrNetwork, serviceName, statusErr.StatusCode, body.Error)
		}
		return fmt.Errorf("%w: %s returned %d", domain.ErrNetwork, serviceName, statusErr.StatusCode)
	}
	if errors.Is(err, httpclient.ErrCircuitOpen) {
		return fmt.Errorf("%w: %s unavailable: %w", domain.ErrNetwork, serviceName, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
}
