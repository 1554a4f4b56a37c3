// Package sanity reads site content from the Sanity HTTP query API.
package sanity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"finitefield.org/consultants-web/internal/content"
)

const (
	defaultDataset    = "production"
	defaultAPIVersion = "2023-12-01"
	maxErrorBody      = 4 << 10
)

var (
	json   = jsoniter.ConfigCompatibleWithStandardLibrary
	tracer = otel.Tracer("finitefield.org/consultants-web/internal/content/sanity")
)

// Config identifies the Sanity project and dataset to query.
type Config struct {
	ProjectID  string
	Dataset    string
	APIVersion string
	Token      string
	UseCDN     bool
	// Timeout bounds each HTTP round trip. Zero leaves requests bounded only by the caller's context.
	Timeout time.Duration
}

// QueryError is returned when the query API answers with a non-2xx status.
type QueryError struct {
	Status      int
	Description string
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("sanity: query failed with status %d", e.Status)
	}
	return fmt.Sprintf("sanity: query failed with status %d: %s", e.Status, e.Description)
}

// Client executes GROQ queries against a single dataset.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// Option customises the Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBaseURL replaces the project host, primarily for tests and proxies.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimRight(strings.TrimSpace(base), "/")
		if base == "" {
			return
		}
		if rest, ok := strings.CutPrefix(c.endpoint, "https://"); ok {
			if i := strings.Index(rest, "/"); i >= 0 {
				c.endpoint = base + rest[i:]
			}
		}
	}
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, errors.New("sanity: project id is required")
	}
	dataset := strings.TrimSpace(cfg.Dataset)
	if dataset == "" {
		dataset = defaultDataset
	}
	version := strings.TrimPrefix(strings.TrimSpace(cfg.APIVersion), "v")
	if version == "" {
		version = defaultAPIVersion
	}
	host := "api.sanity.io"
	if cfg.UseCDN && cfg.Token == "" {
		host = "apicdn.sanity.io"
	}

	c := &Client{
		endpoint: fmt.Sprintf("https://%s.%s/v%s/data/query/%s", projectID, host, version, url.PathEscape(dataset)),
		token:    strings.TrimSpace(cfg.Token),
		http:     &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type envelope struct {
	Result jsoniter.RawMessage `json:"result"`
	Error  *struct {
		Description string `json:"description"`
	} `json:"error"`
}

// Query runs a GROQ query and decodes its result into out. A null result
// (an indexed lookup that matched nothing) yields content.ErrNotFound.
func (c *Client) Query(ctx context.Context, groq string, params map[string]string, out any) (err error) {
	ctx, span := tracer.Start(ctx, "content.sanity.query", trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil && !errors.Is(err, content.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("sanity: build request: %w", err)
	}
	q := req.URL.Query()
	q.Set("query", groq)
	for name, value := range params {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("sanity: encode param %s: %w", name, err)
		}
		q.Set("$"+name, string(encoded))
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sanity: request: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		qe := &QueryError{Status: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var env envelope
		if json.Unmarshal(body, &env) == nil && env.Error != nil {
			qe.Description = env.Error.Description
		}
		return qe
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("sanity: decode response: %w", err)
	}
	raw := strings.TrimSpace(string(env.Result))
	if raw == "" || raw == "null" {
		return content.ErrNotFound
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("sanity: decode result: %w", err)
	}
	return nil
}
