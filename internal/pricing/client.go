package pricing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phrazzld/fare-enricher/internal/config"
	"github.com/phrazzld/fare-enricher/internal/platform/logger"
	"golang.org/x/time/rate"
)

const (
	dateLayout       = "2006-01-02"
	maxResponseBytes = 10 << 20
	maxErrorSnippet  = 512
)

// SearchRequest is a one-way fare query. The search API is round-trip shaped,
// so ReturnDate is always sent; callers pass the flight's arrival time there.
type SearchRequest struct {
	Origin       string
	Destination  string
	OutboundDate time.Time
	ReturnDate   time.Time
}

// Client performs fare searches against the configured API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        config.PricingConfig
	logger     *slog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client. The configured timeout is
// not applied to a client supplied this way.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a search client. A RequestsPerSecond of zero disables
// rate limiting.
func NewClient(cfg config.PricingConfig, log *slog.Logger, opts ...ClientOption) *Client {
	if log == nil {
		log = slog.Default()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		cfg:        cfg,
		logger:     log.With(slog.String("component", "pricing_client")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs one query and returns the decoded response document.
//
// Transport failures and non-2xx responses wrap ErrUpstream. A body that is
// not a JSON object wraps ErrExtraction. Context cancellation is returned as is.
func (c *Client) Search(ctx context.Context, req SearchRequest) (map[string]any, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrUpstream, err)
	}

	endpoint, err := c.buildURL(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// url.Error repeats the request URL, which carries the API key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		log.Warn("pricing request failed",
			slog.String("origin", req.Origin),
			slog.String("destination", req.Destination),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUpstream, err)
	}

	log.Debug("pricing response received",
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorSnippet {
			snippet = snippet[:maxErrorSnippet]
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: snippet}
	}

	return DecodeResponse(body)
}

func (c *Client) buildURL(req SearchRequest) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid pricing base url: %w", err)
	}

	q := base.Query()
	q.Set("engine", c.cfg.Engine)
	q.Set("departure_id", req.Origin)
	q.Set("arrival_id", req.Destination)
	q.Set("outbound_date", req.OutboundDate.UTC().Format(dateLayout))
	q.Set("return_date", req.ReturnDate.UTC().Format(dateLayout))
	q.Set("currency", c.cfg.Currency)
	q.Set("hl", c.cfg.Locale)
	q.Set("api_key", c.cfg.APIKey)
	base.RawQuery = q.Encode()

	return base.String(), nil
}
