package model

import "time"

// ================ Config ================
type BackendConfig struct {
	QueryURL         string        `envconfig:"QUERY_API_URL" required:"true"`
	InsightsURL      string        `envconfig:"INSIGHTS_API_URL" required:"true"`
	VisualizationURL string        `envconfig:"VISUALIZATION_API_URL" required:"true"`
	Timeout          time.Duration `envconfig:"BACKEND_TIMEOUT" default:"0s"`
	MaxBodyBytes     int64         `envconfig:"BACKEND_MAX_BODY_BYTES" default:"33554432"`
}

type ConversationConfig struct {
	SessionID     string `envconfig:"SESSION_ID"`
	SendSessionID bool   `envconfig:"SEND_SESSION_ID" default:"false"`
}

type EnrichmentConfig struct {
	CacheTTL     time.Duration `envconfig:"ENRICHMENT_CACHE_TTL" default:"30m"`
	CacheCleanup time.Duration `envconfig:"ENRICHMENT_CACHE_CLEANUP" default:"10m"`
}

type ConsoleConfig struct {
	HistoryTurns int  `envconfig:"CONSOLE_HISTORY_TURNS" default:"20"`
	NoColor      bool `envconfig:"CONSOLE_NO_COLOR" default:"false"`
}
