package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/backend"
	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/conversation"
	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/model"
	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/repo"
	"github.com/Chative-core-poc-v1/sqlchat/internal/console"
	"github.com/Chative-core-poc-v1/sqlchat/internal/core"
	logx "github.com/Chative-core-poc-v1/sqlchat/pkg/logger"
	pkgredis "github.com/Chative-core-poc-v1/sqlchat/pkg/redis"
)

// AppConfig defines all configurable parameters of the console client,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis pkgredis.Config

	// Remote APIs
	Backend model.BackendConfig

	Conversation model.ConversationConfig
	Enrichment   model.EnrichmentConfig
	Console      model.ConsoleConfig
}

func main() {
	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(envCfg.Environment),
		Level:       envCfg.LogLevel,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, envCfg); err != nil {
		logx.Error().Err(err).Msg("sqlchat stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg AppConfig) error {
	sessionID := cfg.Conversation.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	opts := []backend.Option{backend.WithObserver(backend.NewLogObserver())}
	if cfg.Conversation.SendSessionID {
		opts = append(opts, backend.WithSessionID(sessionID))
	}
	client, err := backend.NewClient(cfg.Backend, opts...)
	if err != nil {
		return fmt.Errorf("build backend client: %w", err)
	}

	cache, closeCache, err := newEnrichmentCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	session, err := conversation.NewSession(conversation.SessionConfig{
		ID:                sessionID,
		QueryBackend:      client,
		EnrichmentBackend: client,
		Cache:             cache,
		CacheTTL:          cfg.Enrichment.CacheTTL,
	})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.Close()

	fmt.Printf("sqlchat session %s\n", session.ID())
	fmt.Println("Ask a question about your data. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	con := console.New(session, console.Config{
		In:           os.Stdin,
		Out:          os.Stdout,
		HistoryTurns: cfg.Console.HistoryTurns,
		NoColor:      cfg.Console.NoColor,
	})
	if err := con.Run(ctx); err != nil {
		return err
	}
	fmt.Println("\nGoodbye!")
	return nil
}

// newEnrichmentCache uses Redis when REDIS_URL is set and an in-process cache
// otherwise.
func newEnrichmentCache(cfg AppConfig) (model.EnrichmentCache, func(), error) {
	rdb, err := cfg.Redis.New()
	switch {
	case errors.Is(err, pkgredis.ErrNotConfigured):
		logx.Debug().Msg("REDIS_URL not set, caching enrichments in memory")
		return repo.NewMemoryEnrichmentCache(cfg.Enrichment.CacheTTL, cfg.Enrichment.CacheCleanup), func() {}, nil
	case err != nil:
		return nil, nil, fmt.Errorf("initialise redis client: %w", err)
	}
	logx.Info().Msg("Connected to Redis successfully")
	return repo.NewRedisEnrichmentCache(rdb, cfg.Enrichment.CacheTTL), func() { _ = rdb.Close() }, nil
}
