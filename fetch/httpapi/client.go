package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/xraph/researchsync"
	"github.com/xraph/researchsync/job"
)

// tracerName is the instrumentation scope for request spans.
const tracerName = "github.com/xraph/researchsync/fetch/httpapi"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

// Compile-time check.
var _ job.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithRateLimit limits outgoing requests to perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider. Defaults to
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client talks to the research REST API.
type Client struct {
	base    string
	http    *http.Client
	token   string
	limiter *rate.Limiter
	tracer  trace.Tracer
	logger  *slog.Logger
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: 30 * time.Second},
		tracer: otel.Tracer(tracerName),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type startResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// StartJob asks the producer to begin research on key.
func (c *Client) StartJob(ctx context.Context, key job.Key) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	var resp startResponse
	if err := c.do(ctx, "start_job", http.MethodPost, keyPath(key), &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("%w: start response without job_id", researchsync.ErrTransport)
	}
	c.logger.Debug("research job started",
		slog.String("job_id", resp.JobID),
		slog.String("key", key.String()),
		slog.String("status", resp.Status),
	)
	return resp.JobID, nil
}

// FetchSnapshot returns the job with the given id.
func (c *Client) FetchSnapshot(ctx context.Context, jobID string) (*job.ResearchJob, error) {
	var j job.ResearchJob
	if err := c.do(ctx, "fetch_snapshot", http.MethodGet, "/research/job/"+url.PathEscape(jobID), &j); err != nil {
		return nil, err
	}
	if err := j.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %w", researchsync.ErrTransport, err)
	}
	return &j, nil
}

// FetchSnapshotByKey returns the canonical job for key, or nil when the API
// has none.
func (c *Client) FetchSnapshotByKey(ctx context.Context, key job.Key) (*job.ResearchJob, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var j job.ResearchJob
	err := c.do(ctx, "fetch_snapshot_by_key", http.MethodGet, keyPath(key), &j)
	if errors.Is(err, researchsync.ErrJobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := j.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %w", researchsync.ErrTransport, err)
	}
	return &j, nil
}

// ListJobs returns every job the API knows about.
func (c *Client) ListJobs(ctx context.Context) ([]*job.ResearchJob, error) {
	var jobs []*job.ResearchJob
	if err := c.do(ctx, "list_jobs", http.MethodGet, "/research/jobs", &jobs); err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if err := j.Normalize(); err != nil {
			return nil, fmt.Errorf("%w: job %s: %w", researchsync.ErrTransport, j.ID, err)
		}
	}
	return jobs, nil
}

func keyPath(key job.Key) string {
	return "/research/" + url.PathEscape(string(key.Platform)) + "/" + url.PathEscape(key.MarketID)
}

// do performs one request inside a client span and decodes a 2xx JSON body
// into out.
func (c *Client) do(ctx context.Context, op, method, path string, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "researchsync.http."+op,
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer func() {
		if err != nil && !errors.Is(err, researchsync.ErrJobNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s %s: %w", researchsync.ErrRateLimited, method, path, err)
		}
	}

	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader([]byte("{}"))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", researchsync.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", researchsync.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(method, path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %w", researchsync.ErrTransport, method, path, err)
	}
	return nil
}

func statusError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error != "" {
		msg = er.Error
	}

	sentinel := researchsync.ErrTransport
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = researchsync.ErrJobNotFound
	case http.StatusTooManyRequests:
		sentinel = researchsync.ErrRateLimited
	}
	return fmt.Errorf("%w: %s %s: status %d: %s", sentinel, method, path, resp.StatusCode, msg)
}
