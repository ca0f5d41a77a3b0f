package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/model"
	errx "github.com/Chative-core-poc-v1/sqlchat/internal/core/error"
)

// Endpoint names one of the three remote APIs.
type Endpoint string

const (
	EndpointQuery         Endpoint = "query"
	EndpointInsights      Endpoint = "insights"
	EndpointVisualization Endpoint = "visualization"
)

const (
	defaultMaxBodyBytes = 32 << 20
	requestIDHeader     = "X-Request-ID"
)

// Client talks JSON over HTTP POST to the Query, Insights and Visualization APIs.
type Client struct {
	httpClient *http.Client
	urls       map[Endpoint]string
	sessionID  string
	maxBody    int64
	observer   *Observer
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSessionID adds session_id to every Query API request.
func WithSessionID(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// WithObserver attaches request lifecycle callbacks.
func WithObserver(o *Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient validates the endpoint configuration and builds a Client.
func NewClient(cfg model.BackendConfig, opts ...Option) (*Client, error) {
	urls := map[Endpoint]string{
		EndpointQuery:         cfg.QueryURL,
		EndpointInsights:      cfg.InsightsURL,
		EndpointVisualization: cfg.VisualizationURL,
	}
	for ep, u := range urls {
		if u == "" {
			return nil, fmt.Errorf("%s api url is empty", ep)
		}
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		urls:       urls,
		maxBody:    cfg.MaxBodyBytes,
		observer:   NewLogObserver(),
	}
	if c.maxBody <= 0 {
		c.maxBody = defaultMaxBodyBytes
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type enrichmentRequest struct {
	UserInput   string         `json:"user_input"`
	QueryResult []model.Record `json:"query_result"`
}

// Query implements model.QueryBackend.
func (c *Client) Query(ctx context.Context, text string) (*model.ResponsePayload, error) {
	data, err := c.post(ctx, EndpointQuery, queryRequest{Query: text, SessionID: c.sessionID})
	if err != nil {
		return nil, err
	}
	return decodeQueryPayload(data)
}

// Enrich implements model.EnrichmentBackend.
func (c *Client) Enrich(ctx context.Context, kind model.Kind, userInput string, rows []model.Record) (*model.EnrichmentPayload, error) {
	req := enrichmentRequest{UserInput: userInput, QueryResult: rows}
	switch kind {
	case model.KindInsight:
		data, err := c.post(ctx, EndpointInsights, req)
		if err != nil {
			return nil, err
		}
		return decodeInsight(data)
	case model.KindVisualization:
		data, err := c.post(ctx, EndpointVisualization, req)
		if err != nil {
			return nil, err
		}
		return decodeVisualization(data)
	}
	return nil, errx.Validation(fmt.Errorf("unknown enrichment kind %q", kind))
}

// post sends body as JSON and returns the raw 2xx response body. Transport
// failures and non-2xx replies both come back as errx.AppError.
func (c *Client) post(ctx context.Context, ep Endpoint, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", ep, err)
	}

	info := &CallInfo{
		Endpoint:  ep,
		URL:       c.urls[ep],
		RequestID: uuid.New().String(),
		Started:   time.Now(),
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, info.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", ep, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, info.RequestID)

	ctx = c.observer.start(ctx, info)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := errx.WrapBackend(fmt.Errorf("%s api: %w", ep, err), 0)
		c.observer.fail(ctx, info, wrapped)
		return nil, wrapped
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		wrapped := errx.WrapBackend(fmt.Errorf("read %s response: %w", ep, err), 0)
		c.observer.fail(ctx, info, wrapped)
		return nil, wrapped
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		wrapped := errx.WrapBackend(
			fmt.Errorf("%s api returned %d: %s", ep, resp.StatusCode, safeSnippet(string(data))),
			resp.StatusCode,
		)
		c.observer.fail(ctx, info, wrapped)
		return nil, wrapped
	}
	if int64(len(data)) > c.maxBody {
		wrapped := errx.WrapDecode(fmt.Errorf("%s response exceeds %d bytes", ep, c.maxBody))
		c.observer.fail(ctx, info, wrapped)
		return nil, wrapped
	}

	c.observer.end(ctx, info, resp.StatusCode)
	return data, nil
}

var (
	_ model.QueryBackend      = (*Client)(nil)
	_ model.EnrichmentBackend = (*Client)(nil)
)
