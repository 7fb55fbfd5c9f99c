package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/knockout/go/internal/questionbank"
	"github.com/mcdev12/knockout/go/internal/trivia"
	"github.com/mcdev12/knockout/go/internal/trivia/api"
	"github.com/mcdev12/knockout/go/internal/trivia/archive"
	"github.com/mcdev12/knockout/go/internal/trivia/gateway"
	"github.com/mcdev12/knockout/go/internal/trivia/publisher"
	"github.com/mcdev12/knockout/go/internal/trivia/store"
)

type Services struct {
	DB          *sql.DB
	Engine      *trivia.Engine
	Connections *gateway.ConnectionManager
	WebSocket   *gateway.WebSocketHandler
	API         *api.Handler
	Sweeper     *trivia.Sweeper
	Publisher   *publisher.JetStreamPublisher
}

// setupServices wires storage → question bank → engine → transports.
func setupServices(ctx context.Context, cfg Config) (*Services, error) {
	svc := &Services{}

	// Storage
	var (
		sessions store.Store
		repo     questionbank.Repository
	)
	switch cfg.StoreDriver {
	case "postgres":
		db, err := setupDatabase(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		svc.DB = db

		pgStore := store.NewPostgresStore(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		pgRepo := questionbank.NewPostgresRepository(db)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sessions, repo = pgStore, pgRepo
	default:
		sessions, repo = store.NewMemoryStore(), questionbank.NewMemoryRepository()
	}

	cached, err := store.NewCachedStore(sessions, cfg.StoreCacheSize)
	if err != nil {
		return nil, err
	}

	// Question bank
	bank := questionbank.NewApp(repo)
	seed, err := questionbank.LoadSeed(cfg.QuestionsFile)
	if err != nil {
		return nil, err
	}
	added, err := bank.Seed(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to seed question bank: %w", err)
	}
	log.Info().Int("added", added).Int("seeded", len(seed)).Msg("question bank ready")

	// Fan-out: realtime clients always, JetStream when configured
	svc.Connections = gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	broadcasters := trivia.MultiBroadcaster{svc.Connections}
	if cfg.NATSURL != "" {
		jsCfg := publisher.DefaultConfig()
		jsCfg.URL = cfg.NATSURL
		jsCfg.SubjectPrefix = cfg.NATSSubjectPrefix
		pub, err := publisher.New(ctx, jsCfg)
		if err != nil {
			return nil, fmt.Errorf("create JetStream publisher: %w", err)
		}
		svc.Publisher = pub
		broadcasters = append(broadcasters, pub)
	}

	deps := trivia.Deps{
		Clock:       clockwork.NewRealClock(),
		Store:       cached,
		Broadcaster: broadcasters,
		Questions:   bank,
	}
	if cfg.ArchiveBucket != "" {
		archiver, err := archive.New(ctx, archive.Config{
			Bucket:          cfg.ArchiveBucket,
			Region:          cfg.ArchiveRegion,
			Endpoint:        cfg.ArchiveEndpoint,
			AccessKeyID:     cfg.ArchiveAccessKey,
			SecretAccessKey: cfg.ArchiveSecretKey,
		})
		if err != nil {
			return nil, err
		}
		deps.Archiver = archiver
	}

	svc.Engine = trivia.NewEngine(cfg.engineConfig(), deps)
	svc.WebSocket = gateway.NewWebSocketHandler(
		svc.Connections,
		gateway.NewCommandHandler(svc.Engine, svc.Connections),
	)
	svc.API = api.NewHandler(svc.Engine, cached, bank)

	svc.Sweeper, err = trivia.NewSweeper(svc.Engine, deps.Clock, cfg.SweepInterval)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// Close releases external connections.
func (s *Services) Close(ctx context.Context) {
	if s.Publisher != nil {
		if err := s.Publisher.Close(ctx); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}
}
