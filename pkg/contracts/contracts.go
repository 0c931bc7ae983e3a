// Package contracts defines the service interfaces for the SwarmGate
// coordination plane.
//
// The HTTP handlers depend on these interfaces, so swapping an
// implementation (a different vector store, a remote embedding
// provider, an enhanced coordinator) is a single line change in the
// wiring code (pkg/server).
package contracts

import (
	"context"

	"github.com/swarmgate/swarmgate/pkg/models"
)

// ── Coordinator Service ─────────────────────────────────────

// CoordinatorService routes inbound messages to a coordination
// strategy and keeps the auditable command history.
//
// ProcessMessage never returns an error: failures are classified into
// a result with status "failed" and still recorded in history, so the
// history length always equals the number of processed messages.
type CoordinatorService interface {
	// ProcessMessage resolves a strategy and routing config for the
	// message and records the outcome.
	ProcessMessage(ctx context.Context, msg *models.Message) *models.ProcessingResult

	// DetermineStrategy resolves the strategy for a message without
	// processing it. Precedence: priority, then message type, then
	// sender type, then the default strategy.
	DetermineStrategy(msg *models.Message) string

	// RoutingConfig looks up the config for a strategy. The second
	// return is false when the strategy has no entry, which means
	// "use caller-default routing behavior", not an error.
	RoutingConfig(strategy string) (models.RoutingConfig, bool)

	// ValidateMessage reports missing required fields. Advisory only;
	// ProcessMessage does not call it.
	ValidateMessage(msg *models.Message) models.ValidationResult

	// Stats derives command counters on demand.
	Stats() models.CommandStats

	// History returns the most recent entries, oldest first. A
	// non-positive limit returns the full history.
	History(limit int) []models.HistoryEntry

	// UpdateRule rewrites one entry of one rule table at runtime.
	// Returns false (a no-op, never an error) when the rule kind or
	// key does not exist.
	UpdateRule(kind models.RuleKind, key, strategy string) bool

	// Reset clears history and counters. Rule tables and routing
	// configs are untouched.
	Reset()
}

// ── Message Index Service ───────────────────────────────────

// MessageIndexService turns messages and devlog entries into embedded
// documents and answers semantic queries over them.
//
// Indexing is fire-and-forget: failures are reported as false and
// never raised, so indexing can never block the messaging path.
// Search failures, by contrast, propagate to the caller.
type MessageIndexService interface {
	IndexMessage(ctx context.Context, msg *models.Message) bool
	IndexDevlogEntry(ctx context.Context, entry *models.DevlogEntry) bool

	// SearchMessages queries the "messages" collection only.
	SearchMessages(ctx context.Context, query string, limit int) ([]models.SearchResult, error)

	// SearchAll queries every collection and merges results by score.
	SearchAll(ctx context.Context, query string, limit int) ([]models.SearchResult, error)

	// RelatedMessages uses the stored content of the given message as
	// the query and excludes the message itself from the results.
	RelatedMessages(ctx context.Context, messageID string, limit int) ([]models.SearchResult, error)

	// Stats reshapes the vector store's own stats.
	Stats(ctx context.Context) (*models.IndexStats, error)
}

// ── Embedding Driver ────────────────────────────────────────

// EmbeddingDriver generates vector embeddings for text.
// Ships: OpenAI (remote API) and Ollama (local model) drivers.
type EmbeddingDriver interface {
	// Kind returns the driver identifier (e.g., "openai", "ollama").
	Kind() string

	// Dimensions returns the embedding dimensionality. Collections
	// created with one dimensionality reject vectors of another.
	Dimensions() int

	// MaxBatchSize returns the maximum texts per Embed call.
	MaxBatchSize() int

	// Embed generates one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// HealthCheck verifies the backing model or API is reachable.
	HealthCheck(ctx context.Context) error
}

// ── Vector Store Driver ─────────────────────────────────────

// VectorStoreDriver stores and searches embedded documents grouped
// into collections. Ships: embedded (in-memory with JSON snapshot
// persistence) and pgvector (user-provided PostgreSQL).
//
// Concurrent reads are safe; concurrent writes to the same document
// ID are last-write-wins.
type VectorStoreDriver interface {
	// Kind returns the store identifier (e.g., "embedded", "pgvector").
	Kind() string

	// Upsert inserts or overwrites documents by (collection, id).
	Upsert(ctx context.Context, collection string, docs []models.VectorDoc) error

	// Search returns up to topK results ordered by descending score.
	// An empty collection searches across all collections.
	Search(ctx context.Context, collection string, vector []float64, topK int) ([]models.SearchResult, error)

	// Get fetches a stored document, or a NotFound error.
	Get(ctx context.Context, collection, id string) (*models.VectorDoc, error)

	// Delete removes documents by ID. Missing IDs are not an error.
	Delete(ctx context.Context, collection string, ids []string) error

	// Stats reports document counts per collection plus operation
	// counters.
	Stats(ctx context.Context) (*models.IndexStats, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}
