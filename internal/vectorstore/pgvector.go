package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/swarmgate/swarmgate/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PgvectorStore implements VectorStoreDriver using PostgreSQL with the
// pgvector extension. Users provide their own PostgreSQL instance with
// pgvector installed; the connection URL comes from SWARMGATE_PGVECTOR_URL.
type PgvectorStore struct {
	pool       *pgxpool.Pool
	dimensions int

	upserts  atomic.Int64
	searches atomic.Int64
	deletes  atomic.Int64
}

// NewPgvectorStore creates a pgvector-backed vector store. It creates
// the required table and indexes if they don't exist.
func NewPgvectorStore(ctx context.Context, connURL string, dimensions int) (*PgvectorStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("pgvector connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector ping: %w", err)
	}

	s := &PgvectorStore{pool: pool, dimensions: dimensions}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector migrate: %w", err)
	}

	log.Info().Int("dims", dimensions).Msg("pgvector store initialized")
	return s, nil
}

func (s *PgvectorStore) migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS sg_vectors (
			id         TEXT NOT NULL,
			collection TEXT NOT NULL,
			content    TEXT NOT NULL DEFAULT '',
			metadata   JSONB NOT NULL DEFAULT '{}',
			vector     vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (collection, id)
		);

		CREATE INDEX IF NOT EXISTS idx_sg_vectors_collection ON sg_vectors (collection);
	`, s.dimensions)

	_, err := s.pool.Exec(ctx, ddl)
	return err
}

func (s *PgvectorStore) Kind() string { return "pgvector" }

// Upsert inserts or overwrites documents by (collection, id).
// The table dimensionality is fixed at creation; zero-length vectors
// (empty content) are stored as NULL and never matched by search.
func (s *PgvectorStore) Upsert(ctx context.Context, collection string, docs []models.VectorDoc) error {
	if len(docs) == 0 {
		return nil
	}

	for _, d := range docs {
		if len(d.Vector) > 0 && len(d.Vector) != s.dimensions {
			return fmt.Errorf("store expects %d-dimensional vectors, got %d (mixed embedding providers?)", s.dimensions, len(d.Vector))
		}
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO sg_vectors (id, collection, content, metadata, vector, created_at)
		VALUES `)

	args := make([]interface{}, 0, len(docs)*6)
	for i, d := range docs {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i*6 + 1
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", base, base+1, base+2, base+3, base+4, base+5))
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		created := d.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		metadata := d.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		var vec interface{}
		if len(d.Vector) > 0 {
			vec = pgvectorArray(d.Vector)
		}
		args = append(args, id, collection, d.Content, metadata, vec, created)
	}

	sb.WriteString(` ON CONFLICT (collection, id) DO UPDATE SET
		content = EXCLUDED.content,
		metadata = EXCLUDED.metadata,
		vector = EXCLUDED.vector,
		created_at = EXCLUDED.created_at`)

	if _, err := s.pool.Exec(ctx, sb.String(), args...); err != nil {
		return err
	}
	s.upserts.Add(1)
	return nil
}

// Search returns topK results by cosine similarity. An empty
// collection searches across all collections.
func (s *PgvectorStore) Search(ctx context.Context, collection string, vector []float64, topK int) ([]models.SearchResult, error) {
	s.searches.Add(1)

	query := `SELECT id, collection, content, metadata, created_at,
		1 - (vector <=> $1) AS score
		FROM sg_vectors
		WHERE vector IS NOT NULL`

	args := []interface{}{pgvectorArray(vector)}
	if collection != "" {
		query += " AND collection = $2"
		args = append(args, collection)
	}
	query += fmt.Sprintf(" ORDER BY vector <=> $1 LIMIT %d", topK)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var doc models.VectorDoc
		var score float64
		if err := rows.Scan(&doc.ID, &doc.Collection, &doc.Content, &doc.Metadata, &doc.CreatedAt, &score); err != nil {
			return nil, fmt.Errorf("pgvector scan: %w", err)
		}
		results = append(results, models.SearchResult{Doc: doc, Score: score})
	}
	return results, rows.Err()
}

// Get fetches a stored document by (collection, id).
func (s *PgvectorStore) Get(ctx context.Context, collection, id string) (*models.VectorDoc, error) {
	var doc models.VectorDoc
	err := s.pool.QueryRow(ctx,
		`SELECT id, collection, content, metadata, created_at FROM sg_vectors WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&doc.ID, &doc.Collection, &doc.Content, &doc.Metadata, &doc.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, &NotFoundError{Collection: collection, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("pgvector get: %w", err)
	}
	return &doc, nil
}

func (s *PgvectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, "DELETE FROM sg_vectors WHERE collection = $1 AND id = ANY($2)", collection, ids)
	if err == nil {
		s.deletes.Add(1)
	}
	return err
}

// Stats reports per-collection counts plus operation counters.
func (s *PgvectorStore) Stats(ctx context.Context) (*models.IndexStats, error) {
	rows, err := s.pool.Query(ctx, "SELECT collection, COUNT(*) FROM sg_vectors GROUP BY collection ORDER BY collection")
	if err != nil {
		return nil, fmt.Errorf("pgvector stats: %w", err)
	}
	defer rows.Close()

	stats := &models.IndexStats{
		Collections: []models.CollectionStats{},
		Performance: models.PerformanceMetrics{
			Upserts:  s.upserts.Load(),
			Searches: s.searches.Load(),
			Deletes:  s.deletes.Load(),
		},
	}
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("pgvector stats scan: %w", err)
		}
		stats.Collections = append(stats.Collections, models.CollectionStats{
			Name:       name,
			Documents:  count,
			Dimensions: s.dimensions,
		})
		stats.TotalDocuments += count
	}
	stats.TotalCollections = len(stats.Collections)
	return stats, rows.Err()
}

func (s *PgvectorStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PgvectorStore) Close() {
	s.pool.Close()
}

// pgvectorArray converts a float64 slice to pgvector's text format: [1.0,2.0,3.0]
func pgvectorArray(v []float64) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(fmt.Sprintf("%g", f))
	}
	sb.WriteByte(']')
	return sb.String()
}
