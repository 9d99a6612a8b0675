// Package worldbank is a client for the World Bank Indicators API (v2).
//
// The API answers with a two-element JSON array: page metadata followed by the rows.
// Errors come back as a one-element array carrying a "message" list, usually with status 200.
package worldbank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/segmentio/encoding/json"
)

const (
	DefaultBaseURL = "https://api.worldbank.org/v2"
	defaultTimeout = 30 * time.Second

	countriesPerPage    = 400
	observationsPerPage = 20000
	// All three dashboard indicators are published in World Development Indicators;
	// the source parameter is mandatory when several indicators are requested at once.
	wdiSourceID = "2"

	breakerFailureThreshold = 5
	breakerDelay            = 2 * time.Minute
	maxBodyBytes            = 64 << 20
)

const (
	EndpointCountries    = "countries"
	EndpointObservations = "observations"
)

// ErrMalformedResponse indicates a payload that does not follow the API envelope.
var ErrMalformedResponse = errors.New("malformed world bank response")

// RequestObserver receives one call per upstream HTTP request.
type RequestObserver interface {
	ObserveUpstreamRequest(endpoint, outcome string, duration time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveUpstreamRequest(string, string, time.Duration) {}

// Client talks to the World Bank API.
type Client struct {
	httpClient *http.Client
	BaseURL    string
	breaker    circuitbreaker.CircuitBreaker[any]
	observer   RequestObserver
}

type Option func(*Client)

// WithObserver reports per-request latency and outcome.
func WithObserver(o RequestObserver) Option {
	return func(c *Client) { c.observer = o }
}

// WithBreaker overrides the circuit breaker thresholds.
func WithBreaker(failureThreshold uint, delay time.Duration) Option {
	return func(c *Client) { c.breaker = newBreaker(failureThreshold, delay) }
}

// NewClient creates a client. A non-positive timeout selects the default.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		breaker:    newBreaker(breakerFailureThreshold, breakerDelay),
		observer:   noopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// The breaker only makes a broken upstream fail fast; it never re-issues a request.
func newBreaker(failureThreshold uint, delay time.Duration) circuitbreaker.CircuitBreaker[any] {
	return circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(failureThreshold).
		WithDelay(delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "worldbank",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
		}).
		Build()
}

// Ping checks that the API answers; used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("per_page", "1")
	_, _, err := c.getPage(ctx, EndpointCountries, "/country", query)
	return err
}

type pageMeta struct {
	Page  flexInt `json:"page"`
	Pages flexInt `json:"pages"`
	Total flexInt `json:"total"`
}

// flexInt accepts both 7 and "7"; the API is inconsistent across endpoints.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", data, err)
	}
	*n = flexInt(v)
	return nil
}

type apiMessage struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type apiErrorEnvelope struct {
	Message []apiMessage `json:"message"`
}

// APIError is an error payload returned by the World Bank API.
type APIError struct {
	ID      string
	Key     string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("world bank api error %s (%s): %s", e.ID, e.Key, e.Message)
}

// forEachRow walks every page of path, calling fn with each raw row.
func (c *Client) forEachRow(ctx context.Context, endpoint, path string, query url.Values, fn func(json.RawMessage) error) error {
	for page := 1; ; page++ {
		query.Set("page", strconv.Itoa(page))

		meta, rows, err := c.getPage(ctx, endpoint, path, query)
		if err != nil {
			return err
		}

		for _, row := range rows {
			if err := fn(row); err != nil {
				return err
			}
		}

		if int(meta.Pages) <= page {
			return nil
		}
	}
}

func (c *Client) getPage(ctx context.Context, endpoint, path string, query url.Values) (pageMeta, []json.RawMessage, error) {
	if !c.breaker.TryAcquirePermit() {
		c.observer.ObserveUpstreamRequest(endpoint, "rejected", 0)
		return pageMeta{}, nil, fmt.Errorf("world bank %s: %w", endpoint, circuitbreaker.ErrOpen)
	}

	start := time.Now()
	body, err := c.get(ctx, path, query)
	elapsed := time.Since(start)

	var transient *transientError
	switch {
	case errors.As(err, &transient):
		c.breaker.RecordError(err)
		c.observer.ObserveUpstreamRequest(endpoint, "error", elapsed)
		return pageMeta{}, nil, fmt.Errorf("world bank %s: %w", endpoint, err)
	case err != nil:
		c.breaker.RecordSuccess()
		c.observer.ObserveUpstreamRequest(endpoint, "rejected_by_upstream", elapsed)
		return pageMeta{}, nil, fmt.Errorf("world bank %s: %w", endpoint, err)
	}

	c.breaker.RecordSuccess()

	meta, rows, err := decodeEnvelope(body)
	if err != nil {
		c.observer.ObserveUpstreamRequest(endpoint, "malformed", elapsed)
		return pageMeta{}, nil, fmt.Errorf("world bank %s: %w", endpoint, err)
	}

	c.observer.ObserveUpstreamRequest(endpoint, "ok", elapsed)
	return meta, rows, nil
}

// transientError marks failures that count against the circuit breaker:
// transport errors, timeouts and 5xx answers.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	query.Set("format", "json")
	u := c.BaseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("failed to execute request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &transientError{err: fmt.Errorf("received non-200 status code: %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("failed to read response: %w", err)}
	}
	return body, nil
}

func decodeEnvelope(body []byte) (pageMeta, []json.RawMessage, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return pageMeta{}, nil, fmt.Errorf("%w: failed to decode response: %v", ErrMalformedResponse, err)
	}

	if len(envelope) == 1 {
		var apiErr apiErrorEnvelope
		if err := json.Unmarshal(envelope[0], &apiErr); err == nil && len(apiErr.Message) > 0 {
			m := apiErr.Message[0]
			return pageMeta{}, nil, &APIError{ID: m.ID, Key: m.Key, Message: m.Value}
		}
	}
	if len(envelope) != 2 {
		return pageMeta{}, nil, fmt.Errorf("%w: expected 2 elements, got %d", ErrMalformedResponse, len(envelope))
	}

	var meta pageMeta
	if err := json.Unmarshal(envelope[0], &meta); err != nil {
		return pageMeta{}, nil, fmt.Errorf("%w: invalid page metadata: %v", ErrMalformedResponse, err)
	}

	// "null" rows mean the query matched nothing.
	var rows []json.RawMessage
	if err := json.Unmarshal(envelope[1], &rows); err != nil {
		return pageMeta{}, nil, fmt.Errorf("%w: invalid rows: %v", ErrMalformedResponse, err)
	}

	return meta, rows, nil
}
