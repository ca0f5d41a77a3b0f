package conversation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/model"
)

// fakeQueryBackend answers queries through reply. When gate is non-nil every
// call blocks until a value is received from it or ctx is done.
type fakeQueryBackend struct {
	calls   atomic.Int32
	gate    chan struct{}
	entered chan string
	reply   func(text string) (*model.ResponsePayload, error)

	mu    sync.Mutex
	texts []string
}

func (f *fakeQueryBackend) Query(ctx context.Context, text string) (*model.ResponsePayload, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- text
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.reply != nil {
		return f.reply(text)
	}
	return &model.ResponsePayload{GeneratedSQL: "SELECT 1", Rows: []model.Record{{"n": 1}}}, nil
}

func (f *fakeQueryBackend) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeEnrichmentBackend struct {
	calls   atomic.Int32
	gate    chan struct{}
	entered chan model.Kind
	err     error
}

func (f *fakeEnrichmentBackend) Enrich(ctx context.Context, kind model.Kind, userInput string, rows []model.Record) (*model.EnrichmentPayload, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- kind
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	switch kind {
	case model.KindInsight:
		return &model.EnrichmentPayload{Insight: &model.Insight{Text: fmt.Sprintf("%d rows for %s", len(rows), userInput)}}, nil
	default:
		return &model.EnrichmentPayload{Visualization: &model.Visualization{
			Config: model.VisualizationConfig{ChartType: "bar", X: "name", Y: "total"},
			Data:   rows,
		}}, nil
	}
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]*model.EnrichmentPayload
	sets int
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string]*model.EnrichmentPayload{}}
}

func (c *mapCache) Get(_ context.Context, key string) (*model.EnrichmentPayload, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.data[key]
	return p, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, p *model.EnrichmentPayload, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = p
	c.sets++
	return nil
}

func fiveRows() []model.Record {
	return []model.Record{
		{"name": "alice", "total": 50},
		{"name": "bob", "total": 40},
		{"name": "carol", "total": 30},
		{"name": "dave", "total": 20},
		{"name": "erin", "total": 10},
	}
}

// answered submits text and records a successful response carrying rows.
func answered(t *testing.T, s *Store, text string, rows []model.Record) int {
	t.Helper()
	pos, err := s.SubmitQuery(text)
	require.NoError(t, err)
	ticket, err := s.BeginDispatch(pos)
	require.NoError(t, err)
	require.NoError(t, s.RecordResponse(ticket, model.QueryOutcome{
		Payload: &model.ResponsePayload{GeneratedSQL: "SELECT ...", Rows: rows},
	}))
	return pos
}

func countPending(snap Snapshot) int {
	n := 0
	for _, r := range snap.Responses {
		if r.Status == model.StatusPending {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}
