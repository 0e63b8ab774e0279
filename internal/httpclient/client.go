package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultDialKeepAlive         = 10 * time.Second
	defaultRequestTimeout        = 10 * time.Second
	defaultMaxConnsPerHost       = 5
	defaultIdleConnTimeout       = 2 * time.Minute
	defaultExpectContinueTimeout = 100 * time.Millisecond
	maxBodyBytes                 = 1 << 20

	metricRequestCounter  = "http_client_requests_total"
	metricRequestDuration = "http_client_request_duration_seconds"
)

// StatusError is returned for responses with status >= 400.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// DecodeError is returned when a 2xx body is not valid JSON for the target.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode response: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// IsTransport reports whether err happened before a response was received.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	var de *DecodeError
	return !errors.As(err, &se) && !errors.As(err, &de)
}

// Client is an OTel-instrumented JSON HTTP client.
type Client struct {
	client         *http.Client
	baseURL        string
	providerName   string
	headers        map[string]string
	tracer         trace.Tracer
	requestCounter metric.Int64Counter
	duration       metric.Float64Histogram
}

// New creates an instrumented client.
func New(opts ...ClientOption) (*Client, error) {
	options := NewClientOptions(opts...)

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			KeepAlive: defaultDialKeepAlive,
		}).DialContext,
		MaxConnsPerHost:       defaultMaxConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}

	timeout := defaultRequestTimeout
	if options.requestTimeout != nil {
		timeout = *options.requestTimeout
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(
			transport,
			otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
				return otelhttptrace.NewClientTrace(ctx)
			}),
		),
	}

	providerName := options.providerName
	if providerName == "" {
		providerName = "default"
	}

	meter := otel.GetMeterProvider().Meter(
		"instrumented_http_client",
		metric.WithInstrumentationAttributes(attribute.String("provider", providerName)),
	)

	requestCounter, err := meter.Int64Counter(
		metricRequestCounter,
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		metricRequestDuration,
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Client{
		client:         httpClient,
		baseURL:        strings.TrimSuffix(options.baseURL, "/"),
		providerName:   providerName,
		headers:        options.headers,
		tracer:         otel.Tracer("instrumented_http_client"),
		requestCounter: requestCounter,
		duration:       duration,
	}, nil
}

// GetJSON issues GET baseURL+path?query and decodes a 2xx JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	full := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	ctx, span := c.tracer.Start(ctx, "http.get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.url", full),
			attribute.String("provider", c.providerName),
		),
	)
	defer span.End()

	start := time.Now()
	err := c.get(ctx, full, out)
	c.record(ctx, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var se *StatusError
		if errors.As(err, &se) {
			span.SetAttributes(attribute.Int("http.status_code", se.StatusCode))
		}
	}
	return err
}

func (c *Client) get(ctx context.Context, full string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return &DecodeError{Err: err}
		}
	}
	return nil
}

func (c *Client) record(ctx context.Context, start time.Time, err error) {
	attrs := metric.WithAttributes(
		attribute.String("provider", c.providerName),
		attribute.Bool("success", err == nil),
	)
	c.requestCounter.Add(ctx, 1, attrs)
	c.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
