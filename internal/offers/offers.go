// Package offers talks to the external marketplace that quotes supplier
// offers for a part and accepts basket orders.
package offers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/partstrade/trade-service/internal/apperr"
	httpx "github.com/partstrade/trade-service/internal/http"
	"github.com/partstrade/trade-service/internal/http/ratelimit"
	"github.com/partstrade/trade-service/internal/metrics"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Source is the marketplace as the restock engine sees it.
type Source interface {
	GetOffers(ctx context.Context, oem, brand string, withoutCross bool) ([]types.MarketplaceOffer, error)
	AddToBasket(ctx context.Context, offer types.MarketplaceOffer, quantity int, comment string) (bool, error)
	OrderBasket(ctx context.Context) (bool, error)
}

// Config configures the marketplace client.
type Config struct {
	BaseURL   string           `mapstructure:"base_url"`
	APIKey    string           `mapstructure:"api_key"`
	Timeout   time.Duration    `mapstructure:"timeout"`
	RateLimit ratelimit.Config `mapstructure:"rate_limit"`
	CacheTTL  time.Duration    `mapstructure:"cache_ttl"`
}

// Client is the HTTP implementation of Source. The API key is passed
// through on every request.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	metrics *metrics.Recorder
	log     zerolog.Logger
}

// NewClient creates a marketplace client.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, apperr.New(apperr.CodeConfig, "marketplace base url is required")
	}
	return &Client{
		http:    httpx.NewClient(cfg.RateLimit, cfg.Timeout),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		metrics: metrics.NewRecorder(),
		log:     logger.With().Str("component", "marketplace").Logger(),
	}, nil
}

type searchResponse struct {
	Data []types.MarketplaceOffer `json:"data"`
}

type basketPosition struct {
	Number     string          `json:"number"`
	Brand      string          `json:"brand"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	HashKey    string          `json:"hash_key"`
	SystemHash string          `json:"system_hash"`
	Comment    string          `json:"comment,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// GetOffers searches offers for a part. withoutCross excludes analogues.
func (c *Client) GetOffers(ctx context.Context, oem, brand string, withoutCross bool) ([]types.MarketplaceOffer, error) {
	q := url.Values{}
	q.Set("number", oem)
	q.Set("brand", brand)
	if withoutCross {
		q.Set("without_cross", "1")
	}

	resp, err := c.http.Do(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil, c.header())
	if err != nil {
		c.metrics.RecordOfferRequest("error")
		return nil, dependencyError("search offers", err)
	}

	var out searchResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		c.metrics.RecordOfferRequest("error")
		return nil, apperr.Wrap(apperr.CodeDependency, err, "decode marketplace offers")
	}
	c.metrics.RecordOfferRequest("ok")

	c.log.Debug().Str("oem", oem).Str("brand", brand).Int("offers", len(out.Data)).Msg("Fetched marketplace offers")
	return out.Data, nil
}

// AddToBasket puts quantity units of offer into the marketplace basket.
func (c *Client) AddToBasket(ctx context.Context, offer types.MarketplaceOffer, quantity int, comment string) (bool, error) {
	body, err := json.Marshal(map[string][]basketPosition{"positions": {{
		Number:     offer.DetailName,
		Brand:      offer.MakeName,
		Quantity:   quantity,
		Price:      offer.Cost,
		HashKey:    offer.HashKey,
		SystemHash: offer.SystemHash,
		Comment:    comment,
	}}})
	if err != nil {
		return false, err
	}
	return c.postStatus(ctx, "/basket/add", body)
}

// OrderBasket turns the basket into an order.
func (c *Client) OrderBasket(ctx context.Context) (bool, error) {
	return c.postStatus(ctx, "/basket/order", []byte("{}"))
}

func (c *Client) postStatus(ctx context.Context, path string, body []byte) (bool, error) {
	h := c.header()
	h.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, http.MethodPost, c.baseURL+path, body, h)
	if err != nil {
		return false, dependencyError("marketplace "+path, err)
	}

	var out statusResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return false, apperr.Wrap(apperr.CodeDependency, err, "decode marketplace "+path)
	}
	if out.Status != "ok" {
		c.log.Warn().Str("path", path).Str("status", out.Status).Str("error", out.Error).Msg("Marketplace refused request")
		return false, nil
	}
	return true, nil
}

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.apiKey != "" {
		h.Set("X-Api-Key", c.apiKey)
	}
	return h
}

func dependencyError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperr.Wrap(apperr.CodeDependency, err, fmt.Sprintf("%s failed", op))
}
