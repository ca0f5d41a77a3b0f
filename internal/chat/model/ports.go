package model

import (
	"context"
	"time"
)

type QueryBackend interface {
	// Query sends the question text to the Query API and returns the parsed body.
	Query(ctx context.Context, text string) (*ResponsePayload, error)
}

type EnrichmentBackend interface {
	// Enrich calls the Insights or Visualization API depending on kind.
	Enrich(ctx context.Context, kind Kind, userInput string, rows []Record) (*EnrichmentPayload, error)
}

// EnrichmentCache memoizes enrichment payloads by content key.
type EnrichmentCache interface {
	Get(ctx context.Context, key string) (*EnrichmentPayload, bool, error)
	Set(ctx context.Context, key string, payload *EnrichmentPayload, ttl time.Duration) error
}
