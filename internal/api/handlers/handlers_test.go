package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/swarmgate/swarmgate/internal/api"
	"github.com/swarmgate/swarmgate/internal/api/handlers"
	"github.com/swarmgate/swarmgate/internal/config"
	"github.com/swarmgate/swarmgate/internal/coordinator"
	"github.com/swarmgate/swarmgate/internal/msgindex"
	"github.com/swarmgate/swarmgate/internal/vectorstore"
	"github.com/swarmgate/swarmgate/pkg/models"
)

// stubEmbedder returns a fixed-direction vector per known text so
// search ordering is deterministic.
type stubEmbedder struct{}

func (stubEmbedder) Kind() string      { return "stub" }
func (stubEmbedder) Dimensions() int   { return 3 }
func (stubEmbedder) MaxBatchSize() int { return 16 }

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	known := map[string][]float64{
		"deploy failed on node 4": {1, 0, 0},
		"retrying the deploy":     {0.9, 0.1, 0},
		"lunch menu posted":       {0, 0, 1},
	}
	out := make([][]float64, len(texts))
	for i, txt := range texts {
		if v, ok := known[txt]; ok {
			out[i] = v
		} else {
			out[i] = []float64{0.5, 0.5, 0.5}
		}
	}
	return out, nil
}

func (stubEmbedder) HealthCheck(context.Context) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := vectorstore.NewEmbeddedStore()
	t.Cleanup(func() { store.Close() })

	coord := coordinator.New()
	index := msgindex.New(stubEmbedder{}, store)
	return api.NewRouter(config.Load(), handlers.New(coord, index))
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestProcessMessage_ReturnsStrategyAndID(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/messages", models.Message{
		Content:  "all hands on deck",
		Sender:   "agent-1",
		Priority: models.PriorityUrgent,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		MessageID string                  `json:"message_id"`
		Result    models.ProcessingResult `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.MessageID == "" {
		t.Error("Expected a generated message_id")
	}
	if resp.Result.Strategy != "highest_priority" {
		t.Errorf("Strategy = %q, want %q", resp.Result.Strategy, "highest_priority")
	}
	if resp.Result.Status != models.StatusProcessed {
		t.Errorf("Status = %q, want %q", resp.Result.Status, models.StatusProcessed)
	}
}

func TestProcessMessage_WithIndexing(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/messages?index=true", models.Message{
		Content: "deploy failed on node 4",
		Sender:  "agent-1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Indexed *bool `json:"indexed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Indexed == nil || !*resp.Indexed {
		t.Error("Expected indexed=true in response")
	}
}

func TestProcessMessage_InvalidBody(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestValidateMessage_ReportsMissingFields(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/messages/validate", models.Message{})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var result models.ValidationResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Valid {
		t.Error("Expected empty message to be invalid")
	}
	if len(result.Errors) != 3 {
		t.Errorf("Errors = %d, want 3", len(result.Errors))
	}
}

func TestCoordinationStatsAndHistory(t *testing.T) {
	router := newTestRouter(t)

	for i := 0; i < 3; i++ {
		doJSON(t, router, http.MethodPost, "/api/v1/messages", models.Message{
			Content: "ping", Sender: "agent-1",
		})
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/coordination/stats", nil)
	var stats models.CommandStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalCommands != 3 || stats.SuccessfulCommands != 3 {
		t.Errorf("stats = %+v, want 3 total / 3 successful", stats)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/coordination/history?limit=2", nil)
	var entries []models.HistoryEntry
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("history entries = %d, want 2", len(entries))
	}
}

func TestUpdateRule_UnknownKindNotApplied(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPut, "/api/v1/coordination/rules", map[string]string{
		"kind": "no_such_table", "key": "urgent", "strategy": "anything",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["applied"] {
		t.Error("Expected applied=false for unknown rule kind")
	}
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/search", map[string]string{"query": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSearch_RanksIndexedMessages(t *testing.T) {
	router := newTestRouter(t)

	for _, content := range []string{"deploy failed on node 4", "retrying the deploy", "lunch menu posted"} {
		w := doJSON(t, router, http.MethodPost, "/api/v1/index/messages", models.Message{
			Content: content, Sender: "agent-1",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("index status = %d, want %d", w.Code, http.StatusOK)
		}
	}

	w := doJSON(t, router, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"query": "deploy failed on node 4", "limit": 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d (body: %s)", w.Code, w.Body.String())
	}

	var results []models.SearchResult
	if err := json.Unmarshal(w.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Doc.Content != "deploy failed on node 4" {
		t.Errorf("top result = %q, want the exact match first", results[0].Doc.Content)
	}
}

func TestRelatedMessages_UnknownID(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/search/related/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestIndexDrivers_EmptyWithoutRegistries(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/index/drivers", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string][]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp["embeddings"]) != 0 || len(resp["vector_stores"]) != 0 {
		t.Errorf("drivers = %+v, want empty lists when no registries are wired", resp)
	}
}

func TestHealthAndVersion(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("/health status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doJSON(t, router, http.MethodGet, "/version", nil)
	if w.Code != http.StatusOK {
		t.Errorf("/version status = %d, want %d", w.Code, http.StatusOK)
	}
}
