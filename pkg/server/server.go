// Package server provides the public entry point for initializing the
// SwarmGate coordination plane.
//
// It lives in pkg/ (not internal/) so embedders can compose the plane
// into a larger process:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/swarmgate/swarmgate/internal/api"
	"github.com/swarmgate/swarmgate/internal/api/handlers"
	"github.com/swarmgate/swarmgate/internal/config"
	"github.com/swarmgate/swarmgate/internal/coordinator"
	"github.com/swarmgate/swarmgate/internal/embeddings"
	"github.com/swarmgate/swarmgate/internal/msgindex"
	"github.com/swarmgate/swarmgate/internal/telemetry"
	"github.com/swarmgate/swarmgate/internal/vectorstore"
	"github.com/swarmgate/swarmgate/pkg/contracts"
	"github.com/swarmgate/swarmgate/pkg/models"

	"github.com/rs/zerolog/log"
)

// Options overrides parts of the environment-derived configuration.
// Zero values mean "use config defaults".
type Options struct {
	// Rules replaces the default routing rule tables.
	Rules *models.RoutingRules

	// RoutingConfigs replaces the default strategy → config table.
	RoutingConfigs map[string]models.RoutingConfig
}

// Server holds the initialized coordination plane.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Coordinator and Index expose the core services for in-process
	// callers that bypass HTTP.
	Coordinator contracts.CoordinatorService
	Index       contracts.MessageIndexService

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc flushes telemetry and the vector store snapshot.
	ShutdownFunc func(context.Context) error
}

// New initializes the coordination plane from environment config.
func New(ctx context.Context) (*Server, error) {
	return NewWithOptions(ctx, Options{})
}

// NewWithOptions initializes the coordination plane with explicit
// overrides for the routing tables.
func NewWithOptions(ctx context.Context, opts Options) (*Server, error) {
	cfg := config.Load()

	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	// Embedding driver
	embRegistry := embeddings.NewRegistry()
	embRegistry.Register("ollama", embeddings.NewOllamaDriver(cfg.Index.OllamaEndpoint, cfg.Index.EmbeddingModel))
	if cfg.Index.OpenAIAPIKey != "" {
		embRegistry.Register("openai", embeddings.NewOpenAIDriver(cfg.Index.OpenAIAPIKey, cfg.Index.EmbeddingModel))
	}
	embDriver, err := embRegistry.Get(cfg.Index.EmbeddingProvider)
	if err != nil {
		return nil, fmt.Errorf("select embedding provider: %w", err)
	}

	// Vector store driver
	vsRegistry := vectorstore.NewRegistry()
	em := vectorstore.NewEmbeddedStore(vectorstore.WithPersistDir(cfg.Index.PersistDir))
	vsRegistry.Register("embedded", em)
	closeStore := em.Close
	if cfg.Index.PgvectorURL != "" {
		pg, err := vectorstore.NewPgvectorStore(ctx, cfg.Index.PgvectorURL, embDriver.Dimensions())
		if err != nil {
			return nil, fmt.Errorf("init pgvector store: %w", err)
		}
		vsRegistry.Register("pgvector", pg)
		closeEmbedded := closeStore
		closeStore = func() error { pg.Close(); return closeEmbedded() }
	}
	store, err := vsRegistry.Get(cfg.Index.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("select vector store: %w", err)
	}

	// Core services
	var coordOpts []coordinator.Option
	if opts.Rules != nil {
		coordOpts = append(coordOpts, coordinator.WithRules(*opts.Rules))
	}
	if opts.RoutingConfigs != nil {
		coordOpts = append(coordOpts, coordinator.WithRoutingConfigs(opts.RoutingConfigs))
	}
	coord := coordinator.New(coordOpts...)
	index := msgindex.New(embDriver, store, msgindex.WithMessageCollection(cfg.Index.DefaultCollection))

	log.Info().Str("embeddings", embDriver.Kind()).Str("store", store.Kind()).Msg("Coordination plane initialized")

	h := handlers.New(coord, index)
	h.Embeddings = embRegistry
	h.VectorStores = vsRegistry
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:     router,
		Coordinator: coord,
		Index:       index,
		Port:        cfg.Port,
		ShutdownFunc: func(ctx context.Context) error {
			if err := closeStore(); err != nil {
				log.Warn().Err(err).Msg("Vector store close failed")
			}
			return shutdownTelemetry(ctx)
		},
	}, nil
}
