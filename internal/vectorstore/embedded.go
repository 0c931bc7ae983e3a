package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/swarmgate/swarmgate/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultMaxVectors is the default document cap for the embedded store.
const DefaultMaxVectors = 50_000

// snapshotFile is the file name used under the persist directory.
const snapshotFile = "vectors.json"

// EmbeddedStore is a lightweight in-memory vector store using
// brute-force cosine similarity search. Suitable for development and
// small agent swarms (≤50K documents); use pgvector beyond that.
//
// With a persist directory configured, the store loads a JSON snapshot
// on startup and writes one (debounced) after every mutation, so
// indexed messages survive restarts.
type EmbeddedStore struct {
	mu         sync.RWMutex
	docs       map[string]*models.VectorDoc // key: collection:id
	dims       map[string]int               // collection → embedding dimensionality
	metrics    models.PerformanceMetrics
	maxVectors int

	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{}
	closeOnce    sync.Once
}

// EmbeddedOption configures the embedded store.
type EmbeddedOption func(*EmbeddedStore)

// WithMaxVectors sets the maximum number of documents (default 50K).
func WithMaxVectors(max int) EmbeddedOption {
	return func(s *EmbeddedStore) { s.maxVectors = max }
}

// WithPersistDir enables JSON snapshot persistence under dir.
func WithPersistDir(dir string) EmbeddedOption {
	return func(s *EmbeddedStore) {
		if dir != "" {
			s.snapshotPath = filepath.Join(dir, snapshotFile)
		}
	}
}

// NewEmbeddedStore creates an in-memory vector store.
func NewEmbeddedStore(opts ...EmbeddedOption) *EmbeddedStore {
	s := &EmbeddedStore{
		docs:       make(map[string]*models.VectorDoc),
		dims:       make(map[string]int),
		maxVectors: DefaultMaxVectors,
		saveCh:     make(chan struct{}, 1),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.snapshotPath != "" {
		if err := os.MkdirAll(filepath.Dir(s.snapshotPath), 0o755); err != nil {
			log.Warn().Err(err).Str("path", s.snapshotPath).Msg("Cannot create persist dir, persistence disabled")
			s.snapshotPath = ""
		} else {
			s.load()
			go s.saveLoop()
		}
	}

	log.Info().Int("max_vectors", s.maxVectors).Bool("persistent", s.snapshotPath != "").Msg("Embedded vector store initialized")
	return s
}

func (s *EmbeddedStore) Kind() string { return "embedded" }

// Upsert inserts or overwrites documents by (collection, id). All
// non-empty vectors in a collection must share the dimensionality the
// collection was created with; a mismatch means two providers were
// mixed and is rejected as a configuration error. Zero-length vectors
// (empty content) are stored but never matched by search.
func (s *EmbeddedStore) Upsert(_ context.Context, collection string, docs []models.VectorDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newCount := 0
	for _, d := range docs {
		if len(d.Vector) > 0 {
			if want, ok := s.dims[collection]; ok && want != len(d.Vector) {
				return fmt.Errorf("collection %q expects %d-dimensional vectors, got %d (mixed embedding providers?)", collection, want, len(d.Vector))
			}
		}
		if _, exists := s.docs[key(collection, d.ID)]; !exists {
			newCount++
		}
	}
	if total := len(s.docs) + newCount; total > s.maxVectors {
		return fmt.Errorf("embedded vector store capacity exceeded: %d > %d (consider pgvector)", total, s.maxVectors)
	}

	now := time.Now().UTC()
	for _, d := range docs {
		cp := d
		cp.Collection = collection
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		if len(cp.Vector) > 0 {
			if _, ok := s.dims[collection]; !ok {
				s.dims[collection] = len(cp.Vector)
			}
		}
		s.docs[key(collection, cp.ID)] = &cp
	}
	s.metrics.Upserts++

	s.requestSave()
	return nil
}

// Search returns up to topK results ordered by descending cosine
// similarity. An empty collection searches across every collection;
// documents whose dimensionality differs from the query are skipped.
func (s *EmbeddedStore) Search(_ context.Context, collection string, vector []float64, topK int) ([]models.SearchResult, error) {
	s.mu.Lock()
	s.metrics.Searches++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if collection != "" {
		if want, ok := s.dims[collection]; ok && len(vector) > 0 && want != len(vector) {
			return nil, fmt.Errorf("query dimensionality %d does not match collection %q (%d)", len(vector), collection, want)
		}
	}

	type scored struct {
		doc   *models.VectorDoc
		score float64
	}
	var candidates []scored

	for _, d := range s.docs {
		if collection != "" && d.Collection != collection {
			continue
		}
		if len(d.Vector) == 0 || len(d.Vector) != len(vector) {
			continue
		}
		candidates = append(candidates, scored{doc: d, score: cosineSimilarity(vector, d.Vector)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	if topK < 0 {
		topK = 0
	}

	results := make([]models.SearchResult, topK)
	for i := 0; i < topK; i++ {
		results[i] = models.SearchResult{Doc: *candidates[i].doc, Score: candidates[i].score}
	}
	return results, nil
}

// Get fetches a stored document by (collection, id).
func (s *EmbeddedStore) Get(_ context.Context, collection, id string) (*models.VectorDoc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[key(collection, id)]
	if !ok {
		return nil, &NotFoundError{Collection: collection, ID: id}
	}
	cp := *d
	return &cp, nil
}

// Delete removes documents by ID. Missing IDs are not an error.
func (s *EmbeddedStore) Delete(_ context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.docs, key(collection, id))
	}
	s.metrics.Deletes++
	s.requestSave()
	return nil
}

// Stats reports per-collection document counts plus operation counters.
func (s *EmbeddedStore) Stats(_ context.Context) (*models.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, d := range s.docs {
		counts[d.Collection]++
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	stats := &models.IndexStats{
		TotalDocuments:   len(s.docs),
		TotalCollections: len(counts),
		Collections:      make([]models.CollectionStats, 0, len(counts)),
		Performance:      s.metrics,
	}
	for _, name := range names {
		stats.Collections = append(stats.Collections, models.CollectionStats{
			Name:       name,
			Documents:  counts[name],
			Dimensions: s.dims[name],
		})
	}
	return stats, nil
}

func (s *EmbeddedStore) HealthCheck(_ context.Context) error {
	return nil // in-memory, always healthy
}

// Close stops the background saver and flushes a final snapshot.
func (s *EmbeddedStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.doneCh)
		if s.snapshotPath != "" {
			s.save()
		}
	})
	return nil
}

// ── Persistence ─────────────────────────────────────────────

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Docs map[string]*models.VectorDoc `json:"docs"`
	Dims map[string]int               `json:"dims"`
}

func (s *EmbeddedStore) load() {
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.snapshotPath).Msg("Cannot read vector snapshot")
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Str("path", s.snapshotPath).Msg("Corrupt vector snapshot, starting empty")
		return
	}

	s.mu.Lock()
	if snap.Docs != nil {
		s.docs = snap.Docs
	}
	if snap.Dims != nil {
		s.dims = snap.Dims
	}
	count := len(s.docs)
	s.mu.Unlock()

	log.Info().Int("documents", count).Str("path", s.snapshotPath).Msg("Vector snapshot loaded")
}

// requestSave schedules a debounced snapshot write. Caller holds s.mu.
func (s *EmbeddedStore) requestSave() {
	if s.snapshotPath == "" {
		return
	}
	select {
	case s.saveCh <- struct{}{}:
	default:
	}
}

// saveLoop coalesces bursts of mutations into one snapshot write.
func (s *EmbeddedStore) saveLoop() {
	for {
		select {
		case <-s.doneCh:
			return
		case <-s.saveCh:
			timer := time.NewTimer(250 * time.Millisecond)
			select {
			case <-s.doneCh:
				timer.Stop()
				s.save()
				return
			case <-timer.C:
				s.save()
			}
		}
	}
}

func (s *EmbeddedStore) save() {
	s.mu.RLock()
	snap := snapshot{
		Docs: make(map[string]*models.VectorDoc, len(s.docs)),
		Dims: make(map[string]int, len(s.dims)),
	}
	for k, v := range s.docs {
		snap.Docs[k] = v
	}
	for k, v := range s.dims {
		snap.Dims[k] = v
	}
	s.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		log.Warn().Err(err).Msg("Cannot marshal vector snapshot")
		return
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Warn().Err(err).Str("path", tmp).Msg("Cannot write vector snapshot")
		return
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		log.Warn().Err(err).Str("path", s.snapshotPath).Msg("Cannot replace vector snapshot")
	}
}

// ── Helpers ─────────────────────────────────────────────────

func key(collection, id string) string {
	return collection + ":" + id
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
