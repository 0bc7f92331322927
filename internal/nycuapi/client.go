// Package nycuapi is the client for the university's legacy, form-encoded
// course catalog API. Each call is a single round trip; nothing is retried.
package nycuapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/corpix/uarand"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"

	domerrors "github.com/garyellow/nycu-course-go/internal/errors"
	"github.com/garyellow/nycu-course-go/internal/metrics"
)

const formContentType = "application/x-www-form-urlencoded; charset=UTF-8"

// maxBodySize caps a single response. Broad course queries run to a few MB.
const maxBodySize = 64 << 20

// Config configures a Client.
type Config struct {
	// Endpoint is the API base; operation names are appended verbatim.
	Endpoint string
	// Timeout bounds a whole round trip. Zero means no timeout.
	Timeout time.Duration
	// Throttle is slept after every department hierarchy request.
	Throttle time.Duration
	Metrics  *metrics.Metrics
	// HTTPClient overrides the default transport (tests).
	HTTPClient *http.Client
}

// Client talks to the catalog API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	throttle   time.Duration
	metrics    *metrics.Metrics
	userAgents []string
}

// NewClient creates a catalog API client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   cfg.Endpoint,
		throttle:   cfg.Throttle,
		metrics:    cfg.Metrics,
		userAgents: generateUserAgents(),
	}
}

// Do performs one round trip and returns the JSON body.
// Transport failures and non-2xx statuses wrap ErrUpstreamUnavailable;
// a body that is not JSON wraps ErrMalformedPayload.
func (c *Client) Do(ctx context.Context, r Request) (json.RawMessage, error) {
	start := time.Now()
	body, err := c.do(ctx, r)
	c.metrics.RecordUpstream(r.Operation, err, time.Since(start))
	if err != nil {
		slog.WarnContext(ctx, "Catalog API request failed",
			"operation", r.Operation,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return nil, err
	}
	slog.DebugContext(ctx, "Catalog API request completed",
		"operation", r.Operation,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds())
	return body, nil
}

func (c *Client) do(ctx context.Context, r Request) (json.RawMessage, error) {
	target := c.endpoint + r.Operation

	var payload io.Reader
	if r.Method == http.MethodPost {
		payload = strings.NewReader(r.Form.Encode())
	} else if len(r.Form) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.Form.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if r.Method == http.MethodPost {
		req.Header.Set("Content-Type", formContentType)
	}
	req.Header.Set("User-Agent", c.randomUserAgent())
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domerrors.NewUpstreamError(r.Operation, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, domerrors.NewUpstreamError(r.Operation, resp.StatusCode, nil)
	}

	reader, err := decodeBody(resp)
	if err != nil {
		return nil, domerrors.NewUpstreamError(r.Operation, resp.StatusCode, err)
	}
	if closer, ok := reader.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxBodySize))
	if err != nil {
		return nil, domerrors.NewUpstreamError(r.Operation, resp.StatusCode, err)
	}

	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s: %w", r.Operation, domerrors.ErrMalformedPayload)
	}
	return json.RawMessage(data), nil
}

// decodeBody undoes gzip and transcodes Big5 responses to UTF-8.
func decodeBody(resp *http.Response) (io.Reader, error) {
	var reader io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress gzip: %w", err)
		}
		reader = gz
	}
	if strings.Contains(strings.ToUpper(resp.Header.Get("Content-Type")), "BIG5") {
		reader = transform.NewReader(reader, traditionalchinese.Big5.NewDecoder())
	}
	return reader, nil
}

// FetchCourses runs a course list search and returns the raw nested payload.
func (c *Client) FetchCourses(ctx context.Context, q CourseQuery) (json.RawMessage, error) {
	return c.Do(ctx, q.Request())
}

// FetchAcademicPeriods lists period codes as returned by the API.
func (c *Client) FetchAcademicPeriods(ctx context.Context) ([]string, error) {
	raw, err := c.Do(ctx, AcademicPeriodsRequest())
	if err != nil {
		return nil, err
	}
	return ParseAcademicPeriods(raw), nil
}

// FetchDepartmentLevel fetches one hierarchy level, then sleeps for the
// configured throttle whether or not the request succeeded.
func (c *Client) FetchDepartmentLevel(ctx context.Context, q LevelQuery) (json.RawMessage, error) {
	raw, err := c.Do(ctx, q.Request())
	if sleepErr := Sleep(ctx, c.throttle); sleepErr != nil && err == nil {
		err = sleepErr
	}
	return raw, err
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// randomUserAgent returns a browser user agent, preferring the fixed list.
func (c *Client) randomUserAgent() string {
	if len(c.userAgents) == 0 {
		return uarand.GetRandom()
	}
	return c.userAgents[rand.IntN(len(c.userAgents))]
}

// generateUserAgents returns a few current browser strings plus random ones.
func generateUserAgents() []string {
	agents := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	}
	for range 4 {
		agents = append(agents, uarand.GetRandom())
	}
	return agents
}
