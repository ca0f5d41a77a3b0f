package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/model"
	logx "github.com/Chative-core-poc-v1/sqlchat/pkg/logger"
)

// SessionConfig holds the collaborators a Session is composed from.
type SessionConfig struct {
	ID                string
	QueryBackend      model.QueryBackend
	EnrichmentBackend model.EnrichmentBackend
	// Cache is optional.
	Cache    model.EnrichmentCache
	CacheTTL time.Duration
}

// Session is the submission handler a host talks to. It owns one Store and
// wires the Dispatcher and EnrichmentService to it.
type Session struct {
	id         string
	store      *Store
	dispatcher *Dispatcher
	enrichment *EnrichmentService

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.QueryBackend == nil {
		return nil, fmt.Errorf("query backend is nil")
	}
	if cfg.EnrichmentBackend == nil {
		return nil, fmt.Errorf("enrichment backend is nil")
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}

	store := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         cfg.ID,
		store:      store,
		dispatcher: NewDispatcher(store, cfg.QueryBackend),
		enrichment: NewEnrichmentService(store, cfg.EnrichmentBackend, cfg.Cache, cfg.CacheTTL),
		ctx:        ctx,
		cancel:     cancel,
	}
	logx.Debug().Str("component", "session").Str("session_id", s.id).Msg("session started")
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Submit appends a query and starts dispatching it in the background. The
// returned position identifies the query for later enrichment.
func (s *Session) Submit(text string) (int, error) {
	if s.ctx.Err() != nil {
		return 0, ErrSessionClosed
	}
	pos, err := s.store.SubmitQuery(text)
	if err != nil {
		return 0, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.dispatcher.Dispatch(s.ctx, pos)
		switch {
		case err == nil:
		case errors.Is(err, ErrDispatchBusy), errors.Is(err, ErrOutOfOrder), errors.Is(err, ErrAlreadyAnswered):
			// The running or an earlier dispatch answers pos.
			logx.Debug().Err(err).Str("component", "session").Int("position", pos).Msg("dispatch deferred")
		default:
			logx.Warn().Err(err).Str("component", "session").Int("position", pos).Msg("dispatch rejected")
		}
	}()
	return pos, nil
}

// Generate fetches the kind enrichment for the response at pos, using the
// query text and result rows recorded for that position.
func (s *Session) Generate(ctx context.Context, kind model.Kind, pos int) (*model.Enrichment, error) {
	if s.ctx.Err() != nil {
		return nil, ErrSessionClosed
	}
	if !kind.Valid() {
		return nil, ErrInvalidEnrichmentRequest
	}
	q, ok := s.store.Query(pos)
	if !ok {
		return nil, ErrNotEnrichable
	}
	resp, ok := s.store.Response(pos)
	if !ok || resp.Status != model.StatusSuccess {
		return nil, ErrNotEnrichable
	}
	var rows []model.Record
	if resp.Payload != nil {
		rows = resp.Payload.Rows
	}
	return s.enrichment.Generate(ctx, kind, pos, q.Text, rows)
}

// Timeline projects the current state.
func (s *Session) Timeline() []DisplayEntry {
	return ProjectSnapshot(s.store.Snapshot())
}

// Pending reports whether the host should draw an in-progress indicator.
func (s *Session) Pending() bool {
	return ShowPending(s.store.Snapshot())
}

func (s *Session) Snapshot() Snapshot {
	return s.store.Snapshot()
}

func (s *Session) Subscribe() (<-chan struct{}, func()) {
	return s.store.Subscribe()
}

// Clear resets the conversation and aborts the outstanding query call. Its
// late outcome is discarded.
func (s *Session) Clear() {
	s.store.Clear()
	s.dispatcher.CancelInFlight()
	logx.Info().Str("component", "session").Str("session_id", s.id).Msg("conversation cleared")
}

// Wait blocks until every background dispatch has returned or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels outstanding calls and waits for background work to stop.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		logx.Debug().Str("component", "session").Str("session_id", s.id).Msg("session closed")
	})
}
