package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/model"
	logx "github.com/Chative-core-poc-v1/sqlchat/pkg/logger"
)

// EnrichmentService fetches insights and visualizations for successful
// responses. Each (kind, position) is fetched at most once at a time; callers
// that arrive while a fetch is running share its result instead of starting
// another one.
type EnrichmentService struct {
	store    *Store
	backend  model.EnrichmentBackend
	cache    model.EnrichmentCache
	cacheTTL time.Duration

	group singleflight.Group
}

// NewEnrichmentService builds the service. cache may be nil.
func NewEnrichmentService(store *Store, backend model.EnrichmentBackend, cache model.EnrichmentCache, cacheTTL time.Duration) *EnrichmentService {
	return &EnrichmentService{store: store, backend: backend, cache: cache, cacheTTL: cacheTTL}
}

// Generate returns the enrichment for (kind, pos), fetching it when needed.
//
// An existing success is returned without any call. Backend failures are
// logged and recorded as an error enrichment; the returned error is nil in
// that case and a later call retries. Requests missing a kind, input or rows
// fail with ErrInvalidEnrichmentRequest before anything else happens.
func (s *EnrichmentService) Generate(ctx context.Context, kind model.Kind, pos int, userInput string, rows []model.Record) (*model.Enrichment, error) {
	if !kind.Valid() || strings.TrimSpace(userInput) == "" || len(rows) == 0 {
		return nil, ErrInvalidEnrichmentRequest
	}

	flightKey := fmt.Sprintf("%s:%d:%d", kind, pos, s.store.Generation())
	v, err, shared := s.group.Do(flightKey, func() (any, error) {
		return s.fetch(ctx, kind, pos, userInput, rows)
	})
	if shared {
		logx.Debug().Str("component", "enrichment").Str("key", flightKey).Msg("joined in-flight fetch")
	}
	if err != nil {
		return nil, err
	}
	return v.(*model.Enrichment), nil
}

func (s *EnrichmentService) fetch(ctx context.Context, kind model.Kind, pos int, userInput string, rows []model.Record) (*model.Enrichment, error) {
	ticket, err := s.store.BeginEnrichment(kind, pos)
	switch {
	case errors.Is(err, ErrAlreadyEnriched):
		e, _ := s.store.Enrichment(kind, pos)
		return &e, nil
	case err != nil:
		return nil, err
	}

	log := logx.Debug().Str("component", "enrichment").Str("kind", string(kind)).Int("position", pos)

	cacheKey, keyErr := model.CacheKey(kind, userInput, rows)
	if keyErr != nil {
		logx.Warn().Err(keyErr).Str("component", "enrichment").Msg("cache key unavailable")
	}

	var outcome model.EnrichmentOutcome
	if payload, ok := s.cached(ctx, cacheKey); ok {
		log.Msg("served from cache")
		outcome.Payload = payload
	} else {
		log.Msg("fetching")
		outcome.Payload, outcome.Err = s.backend.Enrich(ctx, kind, userInput, rows)
		if outcome.Err != nil {
			logx.Warn().Err(outcome.Err).Str("component", "enrichment").Str("kind", string(kind)).Int("position", pos).Msg("enrichment failed")
		} else {
			s.remember(ctx, cacheKey, outcome.Payload)
		}
	}

	if err := s.store.RecordEnrichment(ticket, kind, outcome); err != nil {
		return nil, err
	}
	e, _ := s.store.Enrichment(kind, pos)
	return &e, nil
}

func (s *EnrichmentService) cached(ctx context.Context, key string) (*model.EnrichmentPayload, bool) {
	if s.cache == nil || key == "" {
		return nil, false
	}
	payload, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logx.Warn().Err(err).Str("component", "enrichment").Str("cache_key", key).Msg("cache read failed")
		return nil, false
	}
	return payload, ok && payload != nil
}

func (s *EnrichmentService) remember(ctx context.Context, key string, payload *model.EnrichmentPayload) {
	if s.cache == nil || key == "" || payload == nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL); err != nil {
		logx.Warn().Err(err).Str("component", "enrichment").Str("cache_key", key).Msg("cache write failed")
	}
}
