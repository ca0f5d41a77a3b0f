package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/model"
	errx "github.com/Chative-core-poc-v1/sqlchat/internal/core/error"
)

// recordedRequest captures what the fake API received.
type recordedRequest struct {
	Path      string
	RequestID string
	Body      map[string]any
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]func(w http.ResponseWriter)
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{handlers: map[string]func(w http.ResponseWriter){}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var decoded map[string]any
		_ = json.Unmarshal(body, &decoded)

		api.mu.Lock()
		api.requests = append(api.requests, recordedRequest{
			Path:      r.URL.Path,
			RequestID: r.Header.Get("X-Request-ID"),
			Body:      decoded,
		})
		h := api.handlers[r.URL.Path]
		api.mu.Unlock()

		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if h == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w)
	}))
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) reply(path string, status int, body string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[path] = func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (a *fakeAPI) last() recordedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[len(a.requests)-1]
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(model.BackendConfig{
		QueryURL:         srv.URL + "/query",
		InsightsURL:      srv.URL + "/insights",
		VisualizationURL: srv.URL + "/visualize",
	}, append([]Option{WithObserver(nil)}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresURLs(t *testing.T) {
	_, err := NewClient(model.BackendConfig{QueryURL: "http://x"})
	assert.Error(t, err)
}

func TestQuery_Success(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply("/query", http.StatusOK, `{
		"status": "success",
		"generated_sql": "SELECT name, total FROM customers LIMIT 2",
		"query_result": [{"name": "alice", "total": 12.5}, {"name": "bob", "total": 3}],
		"suggestions": ["Try grouping by region"],
		"execution_time": 0.42,
		"detected_intent": "ranking"
	}`)
	c := newTestClient(t, srv, WithSessionID("sess-1"))

	p, err := c.Query(context.Background(), "show top customers")
	require.NoError(t, err)

	assert.Equal(t, "SELECT name, total FROM customers LIMIT 2", p.GeneratedSQL)
	require.Len(t, p.Rows, 2)
	assert.Equal(t, json.Number("12.5"), p.Rows[0]["total"])
	assert.Equal(t, []string{"name", "total"}, p.Columns)
	assert.Equal(t, []string{"Try grouping by region"}, p.Suggestions)
	assert.JSONEq(t, `0.42`, string(p.Debug["execution_time"]))
	assert.JSONEq(t, `"ranking"`, string(p.Debug["detected_intent"]))
	assert.NotContains(t, p.Debug, "generated_sql")

	req := api.last()
	assert.Equal(t, "/query", req.Path)
	assert.Equal(t, "show top customers", req.Body["query"])
	assert.Equal(t, "sess-1", req.Body["session_id"])
	assert.NotEmpty(t, req.RequestID)
}

func TestQuery_OmitsSessionIDByDefault(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply("/query", http.StatusOK, `{"generated_sql": "SELECT 1", "query_result": []}`)
	c := newTestClient(t, srv)

	_, err := c.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.NotContains(t, api.last().Body, "session_id")
}

func TestQuery_GeneratedSQLObjectForm(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply("/query", http.StatusOK, `{
		"generated_sql": {"query": "SELECT 1", "suggestions": "first\n\nsecond"},
		"results": [{"b": 1, "a": 2}],
		"suggestions": ["second", "third"]
	}`)
	c := newTestClient(t, srv)

	p, err := c.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", p.GeneratedSQL)
	assert.Equal(t, []string{"first", "second", "third"}, p.Suggestions)
	assert.Equal(t, []string{"b", "a"}, p.Columns)
	require.Len(t, p.Rows, 1)
}

func TestQuery_BlockedCommands(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply("/query", http.StatusOK, `{"generated_sql": {"blocked_cmds": "DROP is not allowed"}, "query_result": null}`)
	c := newTestClient(t, srv)

	p, err := c.Query(context.Background(), "drop everything")
	require.NoError(t, err)
	assert.Equal(t, "DROP is not allowed", p.BlockedCommands)
	assert.Empty(t, p.GeneratedSQL)
	assert.Empty(t, p.Rows)
}

func TestQuery_MetadataColumnsWin(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply("/query", http.StatusOK, `{
		"generated_sql": "SELECT a, b FROM t",
		"query_result": [{"b": 1, "a": 2}],
		"query_metadata": {"columns": ["a", "b"], "row_count": 1}
	}`)
	c := newTestClient(t, srv)

	p, err := c.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, p.Columns)
	assert.Contains(t, p.Debug, "query_metadata")
}

func TestQuery_InlineErrorIsStillSuccess(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply("/query", http.StatusOK, `{"status": "success", "generated_sql": "SELECT x", "query_result": [], "error": "column x does not exist"}`)
	c := newTestClient(t, srv)

	p, err := c.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "column x does not exist", p.Error)
}

func TestQuery_ApplicationError(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply("/query", http.StatusOK, `{"status": "error", "error": "graph not initialized"}`)
	c := newTestClient(t, srv)

	_, err := c.Query(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph not initialized")
	assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err))
}

func TestQuery_Non2xx(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply("/query", http.StatusInternalServerError, `{"status": "error", "error": "boom"}`)
	c := newTestClient(t, srv)

	_, err := c.Query(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, errx.StatusOf(err))
	assert.Contains(t, err.Error(), "query api returned 500")
}

func TestQuery_TransportFailure(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.Query(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err))
}

func TestQuery_NotJSON(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply("/query", http.StatusOK, `<html>oops</html>`)
	c := newTestClient(t, srv)

	_, err := c.Query(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), errx.BackendDecodeMessage)
}

func TestQuery_BodyLimit(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply("/query", http.StatusOK, `{"generated_sql": "`+strings.Repeat("x", 256)+`"}`)
	c, err := NewClient(model.BackendConfig{
		QueryURL:         srv.URL + "/query",
		InsightsURL:      srv.URL + "/insights",
		VisualizationURL: srv.URL + "/visualize",
		MaxBodyBytes:     64,
	}, WithObserver(nil))
	require.NoError(t, err)

	_, err = c.Query(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 64 bytes")
}

func TestEnrich_Insight(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply("/insights", http.StatusOK, `{"insights": "Alice accounts for most revenue."}`)
	c := newTestClient(t, srv)

	rows := []model.Record{{"name": "alice", "total": 10}}
	p, err := c.Enrich(context.Background(), model.KindInsight, "top customers", rows)
	require.NoError(t, err)
	require.NotNil(t, p.Insight)
	assert.Equal(t, "Alice accounts for most revenue.", p.Insight.Text)
	assert.Equal(t, model.KindInsight, p.Kind())

	req := api.last()
	assert.Equal(t, "top customers", req.Body["user_input"])
	assert.Len(t, req.Body["query_result"], 1)
}

func TestEnrich_InsightMissingText(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply("/insights", http.StatusOK, `{"insights": ""}`)
	c := newTestClient(t, srv)

	_, err := c.Enrich(context.Background(), model.KindInsight, "q", []model.Record{{"a": 1}})
	assert.Error(t, err)
}

func TestEnrich_Visualization(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply("/visualize", http.StatusOK, `{
		"explanation": "Bar chart of totals",
		"visualization_config": {"chart_type": "bar", "x": "name", "y": "total", "top_n": 5},
		"visualization_data": [{"name": "alice", "total": 10}]
	}`)
	c := newTestClient(t, srv)

	p, err := c.Enrich(context.Background(), model.KindVisualization, "q", []model.Record{{"a": 1}})
	require.NoError(t, err)
	require.NotNil(t, p.Visualization)
	assert.Equal(t, "bar", p.Visualization.Config.ChartType)
	assert.Equal(t, 5, p.Visualization.Config.TopN)
	assert.Equal(t, "Bar chart of totals", p.Visualization.Explanation)
	require.Len(t, p.Visualization.Data, 1)
	assert.Equal(t, json.Number("10"), p.Visualization.Data[0]["total"])
}

func TestEnrich_Failure(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply("/visualize", http.StatusServiceUnavailable, `busy`)
	c := newTestClient(t, srv)

	_, err := c.Enrich(context.Background(), model.KindVisualization, "q", []model.Record{{"a": 1}})
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, errx.StatusOf(err))
}

func TestEnrich_UnknownKind(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := newTestClient(t, srv)

	_, err := c.Enrich(context.Background(), model.Kind("summary"), "q", []model.Record{{"a": 1}})
	assert.True(t, errx.IsValidation(err))
}

func TestObserver_Callbacks(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply("/query", http.StatusOK, `{"generated_sql": "SELECT 1"}`)
	api.reply("/insights", http.StatusBadGateway, `nope`)

	var mu sync.Mutex
	var events []string
	obs := &Observer{
		OnStart: func(ctx context.Context, info *CallInfo) context.Context {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, "start:"+string(info.Endpoint))
			return ctx
		},
		OnEnd: func(ctx context.Context, info *CallInfo, status int) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, "end:"+string(info.Endpoint))
		},
		OnError: func(ctx context.Context, info *CallInfo, err error) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, "error:"+string(info.Endpoint))
		},
	}
	c := newTestClient(t, srv, WithObserver(obs))

	_, err := c.Query(context.Background(), "q")
	require.NoError(t, err)
	_, err = c.Enrich(context.Background(), model.KindInsight, "q", []model.Record{{"a": 1}})
	require.Error(t, err)

	assert.Equal(t, []string{"start:query", "end:query", "start:insights", "error:insights"}, events)
}
