// Package msgindex implements the vector messaging index: a thin
// façade that embeds message and devlog content, stores the resulting
// documents in the vector store, and answers semantic queries.
//
// Indexing is fire-and-forget by contract: failures are logged and
// reported as a boolean so indexing can never block the messaging
// path. Search failures propagate, since a caller awaiting results
// needs to know the query did not execute.
package msgindex

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/swarmgate/swarmgate/pkg/contracts"
	"github.com/swarmgate/swarmgate/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Collection names used by the index.
const (
	CollectionMessages = "messages"
	CollectionDevlogs  = "devlogs"
)

// DefaultSearchLimit applies when a caller passes a non-positive limit.
const DefaultSearchLimit = 5

// Index embeds and searches message/devlog documents.
type Index struct {
	embeddings    contracts.EmbeddingDriver
	store         contracts.VectorStoreDriver
	msgCollection string
}

// Option configures an Index.
type Option func(*Index)

// WithMessageCollection overrides the collection used for message
// documents (default "messages").
func WithMessageCollection(name string) Option {
	return func(ix *Index) {
		if name != "" {
			ix.msgCollection = name
		}
	}
}

// New creates a messaging index over the given embedding driver and
// vector store.
func New(emb contracts.EmbeddingDriver, store contracts.VectorStoreDriver, opts ...Option) *Index {
	ix := &Index{embeddings: emb, store: store, msgCollection: CollectionMessages}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexMessage embeds the message content and stores it in the
// "messages" collection. Re-indexing the same message ID overwrites
// the stored document. Returns false on any embedding or storage
// failure; never panics or returns an error to the caller.
func (ix *Index) IndexMessage(ctx context.Context, msg *models.Message) bool {
	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}

	doc := models.VectorDoc{
		ID:      id,
		Content: msg.Content,
		Metadata: map[string]string{
			"agent_id": msg.Recipient,
			"sender":   msg.Sender,
			"type":     string(msg.Type),
		},
		CreatedAt: msg.Timestamp,
	}

	return ix.indexDoc(ctx, ix.msgCollection, doc)
}

// IndexDevlogEntry stores a devlog entry in the "devlogs" collection.
// The embedded content is the entry title concatenated with its body.
func (ix *Index) IndexDevlogEntry(ctx context.Context, entry *models.DevlogEntry) bool {
	doc := models.VectorDoc{
		ID:      uuid.NewString(),
		Content: strings.TrimSpace(entry.Title + "\n\n" + entry.Content),
		Metadata: map[string]string{
			"agent_id": entry.AgentID,
			"category": entry.Category,
		},
		CreatedAt: entry.Timestamp,
	}

	return ix.indexDoc(ctx, CollectionDevlogs, doc)
}

// indexDoc embeds and upserts one document, swallowing failures into
// a boolean. Empty content is indexed with a zero-length vector
// rather than calling the provider; such documents are stored but
// never matched by similarity search.
func (ix *Index) indexDoc(ctx context.Context, collection string, doc models.VectorDoc) bool {
	if doc.Content != "" {
		vectors, err := ix.embeddings.Embed(ctx, []string{doc.Content})
		if err != nil || len(vectors) == 0 {
			log.Warn().Err(err).Str("collection", collection).Str("id", doc.ID).Msg("Embedding failed, document not indexed")
			return false
		}
		doc.Vector = vectors[0]
	} else {
		doc.Vector = []float64{}
	}

	if err := ix.store.Upsert(ctx, collection, []models.VectorDoc{doc}); err != nil {
		log.Warn().Err(err).Str("collection", collection).Str("id", doc.ID).Msg("Vector store upsert failed")
		return false
	}
	return true
}

// SearchMessages embeds the query and searches the "messages"
// collection only.
func (ix *Index) SearchMessages(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	return ix.search(ctx, ix.msgCollection, query, limit)
}

// SearchAll embeds the query and searches every collection, ordering
// merged results by score rather than by collection.
func (ix *Index) SearchAll(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	return ix.search(ctx, "", query, limit)
}

func (ix *Index) search(ctx context.Context, collection, query string, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vectors, err := ix.embeddings.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}

	results, err := ix.store.Search(ctx, collection, vectors[0], limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// RelatedMessages looks up the stored message by ID and uses its
// content as the query, excluding the message itself from the
// results. Used to reconstruct a conversation thread from one
// message ID.
func (ix *Index) RelatedMessages(ctx context.Context, messageID string, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	seed, err := ix.store.Get(ctx, ix.msgCollection, messageID)
	if err != nil {
		return nil, fmt.Errorf("look up message %s: %w", messageID, err)
	}

	// Over-fetch by one so the seed document can be dropped without
	// shrinking the result set.
	results, err := ix.search(ctx, ix.msgCollection, seed.Content, limit+1)
	if err != nil {
		return nil, err
	}

	related := make([]models.SearchResult, 0, limit)
	for _, r := range results {
		if r.Doc.ID == messageID {
			continue
		}
		related = append(related, r)
		if len(related) == limit {
			break
		}
	}
	return related, nil
}

// Stats reshapes the vector store's own stats call.
func (ix *Index) Stats(ctx context.Context) (*models.IndexStats, error) {
	stats, err := ix.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("vector store stats: %w", err)
	}
	return stats, nil
}
