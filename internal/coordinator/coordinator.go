// Package coordinator implements the SwarmGate message coordinator.
//
// The coordinator selects a coordination strategy for each inbound
// message (priority rules first, then message type, then sender type,
// then the default), resolves the strategy's routing config, and
// classifies the outcome. Every message — including failures — leaves
// one entry in the command history, so the history is a complete
// audit log of routing decisions.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/swarmgate/swarmgate/pkg/models"
	"github.com/rs/zerolog/log"
)

// StrategyResolver resolves a strategy name for a message. The default
// resolver consults the rule tables; tests and extensions can inject
// their own via WithStrategyResolver.
type StrategyResolver func(msg *models.Message) (string, error)

// Coordinator routes messages to coordination strategies.
// Safe for concurrent use; history entries appear in call order.
type Coordinator struct {
	mu      sync.Mutex
	rules   models.RoutingRules
	configs map[string]models.RoutingConfig
	history []models.HistoryEntry

	total      int64
	successful int64
	failed     int64

	resolve StrategyResolver
	now     func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRules replaces the default rule tables.
func WithRules(rules models.RoutingRules) Option {
	return func(c *Coordinator) { c.rules = rules.Clone() }
}

// WithRoutingConfigs replaces the default strategy → config table.
func WithRoutingConfigs(configs map[string]models.RoutingConfig) Option {
	return func(c *Coordinator) {
		cp := make(map[string]models.RoutingConfig, len(configs))
		for k, v := range configs {
			cp[k] = v
		}
		c.configs = cp
	}
}

// WithStrategyResolver overrides the strategy resolution step.
func WithStrategyResolver(resolve StrategyResolver) Option {
	return func(c *Coordinator) { c.resolve = resolve }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a coordinator with the default rule tables and routing
// configs unless overridden by options.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		rules:   DefaultRules(),
		configs: DefaultRoutingConfigs(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.resolve == nil {
		c.resolve = c.ruleStrategy
	}
	return c
}

// ProcessMessage resolves strategy and routing config for the message
// and records the outcome. It never returns an error: any failure
// during resolution is converted to a result with status "failed" and
// the failure is still appended to history.
func (c *Coordinator) ProcessMessage(_ context.Context, msg *models.Message) *models.ProcessingResult {
	result := &models.ProcessingResult{
		Priority:    msg.Priority,
		MessageType: msg.Type,
		Timestamp:   c.now().UTC(),
	}

	strategy, err := c.resolveStrategy(msg)
	if err != nil {
		result.Status = models.StatusFailed
		result.Error = err.Error()
		log.Warn().Str("message_id", msg.ID).Err(err).Msg("Message processing failed")
	} else {
		result.Strategy = strategy
		if cfg, ok := c.RoutingConfig(strategy); ok {
			result.Routing = &cfg
		}
		result.Status = classifyStatus(msg)
	}

	c.record(msg.ID, result)
	return result
}

// resolveStrategy runs the resolver, converting panics into errors so
// a misbehaving resolver cannot take down the processing path.
func (c *Coordinator) resolveStrategy(msg *models.Message) (strategy string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy resolution panic: %v", r)
		}
	}()
	return c.resolve(msg)
}

// DetermineStrategy resolves the strategy for a message without
// processing it. Falls back to the default strategy if the resolver
// fails.
func (c *Coordinator) DetermineStrategy(msg *models.Message) string {
	strategy, err := c.resolveStrategy(msg)
	if err != nil {
		return DefaultStrategy
	}
	return strategy
}

// ruleStrategy is the default resolver: first match wins across the
// three rule tables. Priority outranks type outranks sender, so
// urgency can always override routing regardless of message origin.
func (c *Coordinator) ruleStrategy(msg *models.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.rules.Priority[msg.Priority]; ok {
		return s, nil
	}
	if s, ok := c.rules.Type[msg.Type]; ok {
		return s, nil
	}
	if s, ok := c.rules.Sender[msg.SenderType]; ok {
		return s, nil
	}
	return DefaultStrategy, nil
}

// classifyStatus is the second, orthogonal classification axis:
// strategy governs how to route, status reports what kind of outcome
// occurred.
func classifyStatus(msg *models.Message) models.ProcessStatus {
	switch {
	case msg.SenderType == models.SenderCoordinator:
		return models.StatusCoordinated
	case msg.Type == models.MessageSystemBroadcast:
		return models.StatusBroadcasted
	case msg.Type == models.MessageCoordinatorToAgent:
		return models.StatusPrioritized
	default:
		return models.StatusProcessed
	}
}

// RoutingConfig looks up the config for a strategy. A missing entry
// returns ok=false and means "use caller-default routing behavior".
func (c *Coordinator) RoutingConfig(strategy string) (models.RoutingConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, ok := c.configs[strategy]
	return cfg, ok
}

// ValidateMessage reports missing required fields. It never fails the
// message: processing an invalid message is the caller's call.
func (c *Coordinator) ValidateMessage(msg *models.Message) models.ValidationResult {
	var errs []string
	if msg.Content == "" {
		errs = append(errs, "content is required")
	}
	if msg.Sender == "" {
		errs = append(errs, "sender is required")
	}
	if msg.Recipient == "" {
		errs = append(errs, "recipient is required")
	}
	return models.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// record appends one history entry and bumps the counters. Serialized
// under the mutex so history order matches call order under
// concurrent invocation.
func (c *Coordinator) record(messageID string, result *models.ProcessingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, models.HistoryEntry{
		Timestamp: result.Timestamp,
		MessageID: messageID,
		Strategy:  result.Strategy,
		Status:    result.Status,
	})
	c.total++
	if result.Status == models.StatusFailed {
		c.failed++
	} else {
		c.successful++
	}
}

// Stats derives command counters on demand. SuccessRate is a
// percentage and is 0 when nothing has been processed.
func (c *Coordinator) Stats() models.CommandStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := models.CommandStats{
		TotalCommands:      c.total,
		SuccessfulCommands: c.successful,
		FailedCommands:     c.failed,
	}
	if c.total > 0 {
		stats.SuccessRate = float64(c.successful) / float64(c.total) * 100
	}
	return stats
}

// History returns the most recent entries, oldest first. A
// non-positive limit returns everything.
func (c *Coordinator) History(limit int) []models.HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.history
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]models.HistoryEntry, len(entries))
	copy(out, entries)
	return out
}

// UpdateRule rewrites one entry of one rule table at runtime. Unknown
// rule kinds or keys are a no-op, reported as false.
func (c *Coordinator) UpdateRule(kind models.RuleKind, key, strategy string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	applied := false
	switch kind {
	case models.RulePriority:
		if _, ok := c.rules.Priority[models.Priority(key)]; ok {
			c.rules.Priority[models.Priority(key)] = strategy
			applied = true
		}
	case models.RuleType:
		if _, ok := c.rules.Type[models.MessageType(key)]; ok {
			c.rules.Type[models.MessageType(key)] = strategy
			applied = true
		}
	case models.RuleSender:
		if _, ok := c.rules.Sender[models.SenderType(key)]; ok {
			c.rules.Sender[models.SenderType(key)] = strategy
			applied = true
		}
	}

	if applied {
		log.Info().Str("kind", string(kind)).Str("key", key).Str("strategy", strategy).Msg("Coordination rule updated")
	}
	return applied
}

// Reset clears history and counters. Rule tables and routing configs
// survive a reset.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
	c.total = 0
	c.successful = 0
	c.failed = 0
	log.Info().Msg("Coordinator history and counters reset")
}
