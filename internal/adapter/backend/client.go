// Package backend is the HTTP client for the incidents service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
	"github.com/couchcryptid/citizen-alerts-service/internal/observability"
)

const (
	incidentsPath = "/api/incidents"
	reportsPath   = "/api/reports/v1"

	// maxErrorBody caps how much of a failed response is echoed into errors.
	maxErrorBody = 512
)

// Client implements pipeline.Gateway over HTTP/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a gateway client. requestsPerSecond <= 0 disables rate
// limiting.
func NewClient(baseURL string, timeout time.Duration, requestsPerSecond float64, logger *slog.Logger, metrics *observability.Metrics) *Client {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		metrics: metrics,
	}
}

// FetchIncidents lists incidents, optionally filtered by ongoing status.
func (c *Client) FetchIncidents(ctx context.Context, isOngoing *bool) ([]domain.RawIncident, error) {
	u := c.baseURL + incidentsPath
	if isOngoing != nil {
		u += "?" + url.Values{"isOngoing": {strconv.FormatBool(*isOngoing)}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &domain.NetworkError{Kind: domain.NetworkTransport, Detail: "build incidents request", Err: err}
	}

	var incidents []domain.RawIncident
	if err := c.do(req, "incidents", &incidents); err != nil {
		return nil, err
	}
	if incidents == nil {
		incidents = []domain.RawIncident{}
	}

	c.logger.Debug("fetched incidents", "count", len(incidents), "url", u)
	return incidents, nil
}

// SubmitReport posts a user report.
func (c *Client) SubmitReport(ctx context.Context, sub domain.ReportSubmission) (domain.ReportAck, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return domain.ReportAck{}, &domain.NetworkError{Kind: domain.NetworkTransport, Detail: "encode report", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+reportsPath, bytes.NewReader(body))
	if err != nil {
		return domain.ReportAck{}, &domain.NetworkError{Kind: domain.NetworkTransport, Detail: "build report request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var ack domain.ReportAck
	if err := c.do(req, "reports", &ack); err != nil {
		return domain.ReportAck{}, err
	}
	return ack, nil
}

func (c *Client) do(req *http.Request, endpoint string, out any) error {
	target := req.Method + " " + req.URL.Path

	if err := c.limiter.Wait(req.Context()); err != nil {
		kind := domain.NetworkTimeout
		if errors.Is(err, context.Canceled) {
			kind = domain.NetworkTransport
		}
		return &domain.NetworkError{Kind: kind, Detail: target, Err: errors.Wrap(err, "rate limiter")}
	}

	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.BackendDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return &domain.NetworkError{Kind: classify(err), Detail: target, Err: errors.Wrap(err, "request failed")}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.NetworkError{
			Kind:   domain.NetworkStatus,
			Detail: fmt.Sprintf("%s returned %d: %s", target, resp.StatusCode, bytes.TrimSpace(snippet)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if classify(err) == domain.NetworkTimeout {
			return &domain.NetworkError{Kind: domain.NetworkTimeout, Detail: target, Err: errors.Wrap(err, "read response")}
		}
		return &domain.NetworkError{Kind: domain.NetworkDecode, Detail: target, Err: errors.Wrap(err, "decode response")}
	}
	return nil
}

// classify maps a transport error to a kind. Cancellation by the caller is
// not a timeout.
func classify(err error) domain.NetworkErrorKind {
	if errors.Is(err, context.Canceled) {
		return domain.NetworkTransport
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NetworkTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NetworkTimeout
	}
	return domain.NetworkTransport
}
