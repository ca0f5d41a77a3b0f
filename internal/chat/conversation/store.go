package conversation

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/model"
)

// Ticket authorizes one outcome write. It is bound to the generation that was
// current when it was issued.
type Ticket struct {
	Position   int
	Generation uint64
}

// Snapshot is a point-in-time copy of the conversation.
type Snapshot struct {
	Queries          []model.Query
	Responses        []model.Response
	Enrichments      []model.Enrichment
	Submitted        bool
	DispatchInFlight bool
	Generation       uint64
}

// Store owns the conversation state. Every operation takes the same lock, so
// no two mutations interleave and readers never observe a partial update.
type Store struct {
	mu sync.Mutex

	queries          []model.Query
	responses        []model.Response
	enrichments      map[model.EnrichmentKey]*model.Enrichment
	submitted        bool
	dispatchInFlight bool
	generation       uint64

	subs    map[int]chan struct{}
	nextSub int
}

func NewStore() *Store {
	return &Store{
		enrichments: make(map[model.EnrichmentKey]*model.Enrichment),
		subs:        make(map[int]chan struct{}),
	}
}

// SubmitQuery appends a query at the next position. Blank text is rejected
// with ErrBlankQuery and leaves the state untouched.
func (s *Store) SubmitQuery(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrBlankQuery
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos := len(s.queries)
	s.queries = append(s.queries, model.Query{Position: pos, Text: text})
	s.submitted = true
	s.notifyLocked()
	return pos, nil
}

// BeginDispatch records a pending response at pos and raises the in-flight
// flag. Responses are created strictly in position order and only one may be
// pending at a time.
func (s *Store) BeginDispatch(pos int) (Ticket, error) {
	t, _, err := s.beginDispatch(pos)
	return t, err
}

// beginDispatch also returns the query so callers read it under the same lock.
func (s *Store) beginDispatch(pos int) (Ticket, model.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos < 0 || pos >= len(s.queries) {
		return Ticket{}, model.Query{}, fmt.Errorf("%w: %d", ErrUnknownPosition, pos)
	}
	if s.dispatchInFlight {
		return Ticket{}, model.Query{}, ErrDispatchInFlight
	}
	switch {
	case pos < len(s.responses):
		return Ticket{}, model.Query{}, fmt.Errorf("%w: %d", ErrAlreadyAnswered, pos)
	case pos > len(s.responses):
		return Ticket{}, model.Query{}, fmt.Errorf("%w: %d", ErrOutOfOrder, pos)
	}

	s.responses = append(s.responses, model.Response{Position: pos, Status: model.StatusPending})
	s.dispatchInFlight = true
	s.notifyLocked()
	return Ticket{Position: pos, Generation: s.generation}, s.queries[pos], nil
}

// RecordResponse turns the pending response at the ticket's position into a
// terminal one and clears the in-flight flag.
func (s *Store) RecordResponse(t Ticket, outcome model.QueryOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Generation != s.generation {
		return ErrStaleTicket
	}
	if t.Position < 0 || t.Position >= len(s.queries) {
		return fmt.Errorf("%w: %d", ErrUnknownPosition, t.Position)
	}
	if t.Position >= len(s.responses) || s.responses[t.Position].Status != model.StatusPending {
		return fmt.Errorf("%w: %d", ErrNotPending, t.Position)
	}

	resp := model.Response{Position: t.Position}
	if outcome.Err != nil {
		resp.Status = model.StatusError
		resp.ErrorMessage = outcome.Err.Error()
	} else {
		resp.Status = model.StatusSuccess
		resp.Payload = outcome.Payload
		if resp.Payload == nil {
			resp.Payload = &model.ResponsePayload{}
		}
	}
	s.responses[t.Position] = resp
	s.dispatchInFlight = false
	s.notifyLocked()
	return nil
}

// BeginEnrichment marks (kind, pos) as pending. It fails when the response at
// pos is not a success, when the key already succeeded, or when a fetch for
// the key is already running.
func (s *Store) BeginEnrichment(kind model.Kind, pos int) (Ticket, error) {
	if !kind.Valid() {
		return Ticket{}, ErrInvalidEnrichmentRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.succeededLocked(pos) {
		return Ticket{}, ErrNotEnrichable
	}
	key := model.EnrichmentKey{Kind: kind, Position: pos}
	if e, ok := s.enrichments[key]; ok {
		switch e.Status {
		case model.StatusSuccess:
			return Ticket{}, ErrAlreadyEnriched
		case model.StatusPending:
			return Ticket{}, ErrEnrichmentInFlight
		}
	}
	s.enrichments[key] = &model.Enrichment{Kind: kind, Position: pos, Status: model.StatusPending}
	s.notifyLocked()
	return Ticket{Position: pos, Generation: s.generation}, nil
}

// RecordEnrichment writes a terminal enrichment for (kind, t.Position) unless
// one already succeeded.
func (s *Store) RecordEnrichment(t Ticket, kind model.Kind, outcome model.EnrichmentOutcome) error {
	if !kind.Valid() {
		return ErrInvalidEnrichmentRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Generation != s.generation {
		return ErrStaleTicket
	}
	if !s.succeededLocked(t.Position) {
		return ErrNotEnrichable
	}
	key := model.EnrichmentKey{Kind: kind, Position: t.Position}
	if e, ok := s.enrichments[key]; ok && e.Status == model.StatusSuccess {
		return ErrAlreadyEnriched
	}

	e := &model.Enrichment{Kind: kind, Position: t.Position}
	switch {
	case outcome.Err != nil:
		e.Status = model.StatusError
		e.ErrorMessage = outcome.Err.Error()
	case outcome.Payload == nil || outcome.Payload.Kind() != kind:
		e.Status = model.StatusError
		e.ErrorMessage = fmt.Sprintf("empty %s payload", kind)
	default:
		e.Status = model.StatusSuccess
		e.Payload = outcome.Payload
	}
	s.enrichments[key] = e
	s.notifyLocked()
	return nil
}

// Clear resets queries, responses, enrichments and both flags in one step and
// invalidates every outstanding ticket.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = nil
	s.responses = nil
	s.enrichments = make(map[model.EnrichmentKey]*model.Enrichment)
	s.submitted = false
	s.dispatchInFlight = false
	s.generation++
	s.notifyLocked()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Queries:          append([]model.Query(nil), s.queries...),
		Responses:        append([]model.Response(nil), s.responses...),
		Enrichments:      make([]model.Enrichment, 0, len(s.enrichments)),
		Submitted:        s.submitted,
		DispatchInFlight: s.dispatchInFlight,
		Generation:       s.generation,
	}
	for _, e := range s.enrichments {
		snap.Enrichments = append(snap.Enrichments, *e)
	}
	sort.Slice(snap.Enrichments, func(i, j int) bool {
		a, b := snap.Enrichments[i], snap.Enrichments[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.Kind < b.Kind
	})
	return snap
}

// Query returns the query at pos.
func (s *Store) Query(pos int) (model.Query, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos < 0 || pos >= len(s.queries) {
		return model.Query{}, false
	}
	return s.queries[pos], true
}

// Response returns the response at pos, pending or terminal.
func (s *Store) Response(pos int) (model.Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos < 0 || pos >= len(s.responses) {
		return model.Response{}, false
	}
	return s.responses[pos], true
}

func (s *Store) Enrichment(kind model.Kind, pos int) (model.Enrichment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrichments[model.EnrichmentKey{Kind: kind, Position: pos}]
	if !ok {
		return model.Enrichment{}, false
	}
	return *e, true
}

// NextUnanswered returns the first position that has a query but no response
// yet, pending or otherwise.
func (s *Store) NextUnanswered() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responses) < len(s.queries) {
		return len(s.responses), true
	}
	return 0, false
}

func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Subscribe returns a channel that receives a value after every change. Bursts
// of changes coalesce into one signal. The returned func unsubscribes and
// closes the channel.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Store) succeededLocked(pos int) bool {
	return pos >= 0 && pos < len(s.responses) && s.responses[pos].Status == model.StatusSuccess
}

func (s *Store) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
