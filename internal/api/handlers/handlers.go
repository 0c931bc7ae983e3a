// Package handlers implements the HTTP handlers for the SwarmGate
// coordination plane: message processing, rule management, indexing,
// and semantic search.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/swarmgate/swarmgate/internal/embeddings"
	"github.com/swarmgate/swarmgate/internal/vectorstore"
	"github.com/swarmgate/swarmgate/pkg/contracts"
	"github.com/swarmgate/swarmgate/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Coordinator contracts.CoordinatorService
	Index       contracts.MessageIndexService

	// Driver registries, optional. Only used by the driver info and
	// health endpoints; a nil registry reports as empty, not unhealthy.
	Embeddings   *embeddings.Registry
	VectorStores *vectorstore.Registry
}

// New creates a new Handlers instance.
func New(coord contracts.CoordinatorService, index contracts.MessageIndexService) *Handlers {
	return &Handlers{Coordinator: coord, Index: index}
}

// ── Coordination ────────────────────────────────────────────

// processResponse is the envelope returned by ProcessMessage. Indexed
// is only meaningful when indexing was requested.
type processResponse struct {
	MessageID string                   `json:"message_id"`
	Result    *models.ProcessingResult `json:"result"`
	Indexed   *bool                    `json:"indexed,omitempty"`
}

// ProcessMessage routes a message through the coordinator. With
// ?index=true the message is also handed to the vector index;
// indexing failure never affects the routing result.
func (h *Handlers) ProcessMessage(w http.ResponseWriter, r *http.Request) {
	var msg models.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	result := h.Coordinator.ProcessMessage(r.Context(), &msg)

	resp := processResponse{MessageID: msg.ID, Result: result}
	if r.URL.Query().Get("index") == "true" {
		ok := h.Index.IndexMessage(r.Context(), &msg)
		resp.Indexed = &ok
	}
	respondJSON(w, http.StatusOK, resp)
}

// ValidateMessage reports missing required fields without processing.
func (h *Handlers) ValidateMessage(w http.ResponseWriter, r *http.Request) {
	var msg models.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	respondJSON(w, http.StatusOK, h.Coordinator.ValidateMessage(&msg))
}

// CoordinationStats returns the derived command counters.
func (h *Handlers) CoordinationStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Coordinator.Stats())
}

// CoordinationHistory returns recent history entries, oldest first.
func (h *Handlers) CoordinationHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	entries := h.Coordinator.History(limit)
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

type updateRuleRequest struct {
	Kind     models.RuleKind `json:"kind"`
	Key      string          `json:"key"`
	Strategy string          `json:"strategy"`
}

// UpdateRule rewrites one routing rule at runtime. Unknown kinds or
// keys are reported as not applied, never as an error.
func (h *Handlers) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req updateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	applied := h.Coordinator.UpdateRule(req.Kind, req.Key, req.Strategy)
	respondJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

// ResetCoordinator clears history and counters.
func (h *Handlers) ResetCoordinator(w http.ResponseWriter, r *http.Request) {
	h.Coordinator.Reset()
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// ── Indexing & Search ───────────────────────────────────────

// IndexMessage hands a message to the vector index. The boolean
// contract surfaces as "indexed" in the response body; HTTP status is
// 200 either way since a failed index is not a failed request.
func (h *Handlers) IndexMessage(w http.ResponseWriter, r *http.Request) {
	var msg models.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	ok := h.Index.IndexMessage(r.Context(), &msg)
	respondJSON(w, http.StatusOK, map[string]interface{}{"message_id": msg.ID, "indexed": ok})
}

// IndexDevlog hands a devlog entry to the vector index.
func (h *Handlers) IndexDevlog(w http.ResponseWriter, r *http.Request) {
	var entry models.DevlogEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	ok := h.Index.IndexDevlogEntry(r.Context(), &entry)
	respondJSON(w, http.StatusOK, map[string]bool{"indexed": ok})
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
	// Scope is "messages" (default) or "all".
	Scope string `json:"scope,omitempty"`
}

// Search runs a semantic query over the messages collection, or over
// every collection with scope "all". Search failures are real errors.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Query == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	var results []models.SearchResult
	var err error
	if req.Scope == "all" {
		results, err = h.Index.SearchAll(r.Context(), req.Query, req.Limit)
	} else {
		results, err = h.Index.SearchMessages(r.Context(), req.Query, req.Limit)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	respondJSON(w, http.StatusOK, results)
}

// RelatedMessages reconstructs a conversation thread around one
// message id.
func (h *Handlers) RelatedMessages(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	limit := queryInt(r, "limit", 0)

	results, err := h.Index.RelatedMessages(r.Context(), messageID, limit)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	respondJSON(w, http.StatusOK, results)
}

// IndexDrivers lists the registered embedding and vector store
// drivers.
func (h *Handlers) IndexDrivers(w http.ResponseWriter, r *http.Request) {
	emb, vs := []string{}, []string{}
	if h.Embeddings != nil {
		emb = h.Embeddings.List()
	}
	if h.VectorStores != nil {
		vs = h.VectorStores.List()
	}
	respondJSON(w, http.StatusOK, map[string][]string{
		"embeddings":    emb,
		"vector_stores": vs,
	})
}

// IndexHealth pings every registered embedding and vector store
// driver. Always returns 200 with per-driver status in the body so a
// degraded driver is visible without failing the probe.
func (h *Handlers) IndexHealth(w http.ResponseWriter, r *http.Request) {
	emb := map[string]string{}
	if h.Embeddings != nil {
		emb = healthStrings(h.Embeddings.HealthCheckAll(r.Context()))
	}
	vs := map[string]string{}
	if h.VectorStores != nil {
		vs = healthStrings(h.VectorStores.HealthCheckAll(r.Context()))
	}
	respondJSON(w, http.StatusOK, map[string]map[string]string{
		"embeddings":    emb,
		"vector_stores": vs,
	})
}

func healthStrings(results map[string]error) map[string]string {
	status := make(map[string]string, len(results))
	for name, err := range results {
		if err != nil {
			status[name] = "error: " + err.Error()
		} else {
			status[name] = "ok"
		}
	}
	return status
}

// IndexStats returns the vector store's aggregated stats.
func (h *Handlers) IndexStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Index.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// ── Helpers ─────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
