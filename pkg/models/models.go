// Package models defines the shared data model for the SwarmGate
// coordination plane: agent messages, routing decisions, and the
// vector documents the messaging index stores.
package models

import "time"

// ── Messages ────────────────────────────────────────────────

// MessageType classifies who is talking to whom.
type MessageType string

const (
	MessageAgentToAgent       MessageType = "agent_to_agent"
	MessageAgentToCoordinator MessageType = "agent_to_coordinator"
	MessageSystemBroadcast    MessageType = "system_broadcast"
	MessageCoordinatorToAgent MessageType = "coordinator_to_agent"
	MessageHumanToAgent       MessageType = "human_to_agent"
)

// Priority is the urgency attached to a message by its sender.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// SenderType identifies the kind of principal that produced a message.
type SenderType string

const (
	SenderAgent       SenderType = "agent"
	SenderCoordinator SenderType = "coordinator"
	SenderSystem      SenderType = "system"
	SenderHuman       SenderType = "human"
)

// Message is an inbound message on the coordination plane.
// Content, Sender, and Recipient are required for validation to pass;
// validation is advisory and never blocks processing.
type Message struct {
	ID         string      `json:"id"`
	Content    string      `json:"content"`
	Sender     string      `json:"sender"`
	Recipient  string      `json:"recipient"`
	Type       MessageType `json:"type"`
	Priority   Priority    `json:"priority"`
	SenderType SenderType  `json:"sender_type"`
	Timestamp  time.Time   `json:"timestamp"`
}

// ValidationResult reports missing required fields on a Message.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ── Routing ─────────────────────────────────────────────────

// RoutingConfig carries the delivery parameters associated with a
// strategy. TimeoutSeconds is advisory metadata for the downstream
// delivery mechanism; the coordinator itself does not enforce it.
type RoutingConfig struct {
	TimeoutSeconds float64 `json:"timeout_seconds"`
	Retries        int     `json:"retries"`
}

// RuleKind names one of the three independent routing rule tables.
type RuleKind string

const (
	RulePriority RuleKind = "priority"
	RuleType     RuleKind = "message_type"
	RuleSender   RuleKind = "sender_type"
)

// RoutingRules holds the three rule tables consulted in precedence
// order: priority first, then message type, then sender type.
type RoutingRules struct {
	Priority map[Priority]string    `json:"priority"`
	Type     map[MessageType]string `json:"message_type"`
	Sender   map[SenderType]string  `json:"sender_type"`
}

// Clone returns a deep copy so callers can hand rules to a coordinator
// without sharing mutable map state.
func (r RoutingRules) Clone() RoutingRules {
	cp := RoutingRules{
		Priority: make(map[Priority]string, len(r.Priority)),
		Type:     make(map[MessageType]string, len(r.Type)),
		Sender:   make(map[SenderType]string, len(r.Sender)),
	}
	for k, v := range r.Priority {
		cp.Priority[k] = v
	}
	for k, v := range r.Type {
		cp.Type[k] = v
	}
	for k, v := range r.Sender {
		cp.Sender[k] = v
	}
	return cp
}

// ── Processing results ──────────────────────────────────────

// ProcessStatus classifies the outcome of processing a message.
// Status is orthogonal to strategy: strategy governs how a message is
// routed, status reports what kind of outcome occurred.
type ProcessStatus string

const (
	StatusProcessed   ProcessStatus = "processed"
	StatusCoordinated ProcessStatus = "coordinated"
	StatusBroadcasted ProcessStatus = "broadcasted"
	StatusPrioritized ProcessStatus = "prioritized"
	StatusFailed      ProcessStatus = "failed"
)

// ProcessingResult is the immutable record produced for every message
// handed to the coordinator, success or failure.
type ProcessingResult struct {
	Status      ProcessStatus  `json:"status"`
	Strategy    string         `json:"strategy,omitempty"`
	Priority    Priority       `json:"priority"`
	MessageType MessageType    `json:"message_type"`
	Timestamp   time.Time      `json:"timestamp"`
	Routing     *RoutingConfig `json:"routing,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// HistoryEntry is the lightweight audit record appended to the
// coordinator's command history for every processed message.
type HistoryEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	MessageID string        `json:"message_id"`
	Strategy  string        `json:"strategy,omitempty"`
	Status    ProcessStatus `json:"status"`
}

// CommandStats is derived on demand from the coordinator's counters.
type CommandStats struct {
	TotalCommands      int64   `json:"total_commands"`
	SuccessfulCommands int64   `json:"successful_commands"`
	FailedCommands     int64   `json:"failed_commands"`
	SuccessRate        float64 `json:"success_rate"`
}

// ── Vector index ────────────────────────────────────────────

// VectorDoc is a document stored in the vector index. Collections are
// logical partitions ("messages", "devlogs", "system_metrics").
// Docs are immutable after storage; re-indexing the same ID overwrites.
type VectorDoc struct {
	ID         string            `json:"id"`
	Collection string            `json:"collection"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Vector     []float64         `json:"vector"`
	CreatedAt  time.Time         `json:"created_at"`
}

// SearchResult is a single vector search result. Higher score is more
// relevant. Results are transient; they are never persisted.
type SearchResult struct {
	Doc   VectorDoc `json:"doc"`
	Score float64   `json:"score"`
}

// DevlogEntry is a development-log record supplied by a devlog source
// for indexing alongside messages.
type DevlogEntry struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AgentID   string    `json:"agent_id"`
	Category  string    `json:"category,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CollectionStats describes one collection in the vector store.
// Dimensions is the embedding dimensionality the collection was
// created with; mixing dimensionalities within a collection is a
// configuration error the store rejects.
type CollectionStats struct {
	Name       string `json:"name"`
	Documents  int    `json:"documents"`
	Dimensions int    `json:"dimensions"`
}

// PerformanceMetrics are coarse operation counters maintained by the
// vector store.
type PerformanceMetrics struct {
	Upserts  int64 `json:"upserts"`
	Searches int64 `json:"searches"`
	Deletes  int64 `json:"deletes"`
}

// IndexStats aggregates vector store state for observability.
type IndexStats struct {
	TotalDocuments   int                `json:"total_documents"`
	TotalCollections int                `json:"total_collections"`
	Collections      []CollectionStats  `json:"collections"`
	Performance      PerformanceMetrics `json:"performance_metrics"`
}
