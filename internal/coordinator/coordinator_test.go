package coordinator_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/swarmgate/swarmgate/internal/coordinator"
	"github.com/swarmgate/swarmgate/pkg/models"
)

func newTestCoordinator(t *testing.T, opts ...coordinator.Option) *coordinator.Coordinator {
	t.Helper()
	return coordinator.New(opts...)
}

func msg(priority models.Priority, mt models.MessageType, st models.SenderType) *models.Message {
	return &models.Message{
		ID:         "m-1",
		Content:    "status update",
		Sender:     "agent-1",
		Recipient:  "agent-2",
		Priority:   priority,
		Type:       mt,
		SenderType: st,
	}
}

func TestDetermineStrategy_PriorityWins(t *testing.T) {
	c := newTestCoordinator(t)

	// Urgent must win no matter what the type or sender maps say.
	for _, mt := range []models.MessageType{
		models.MessageAgentToAgent,
		models.MessageSystemBroadcast,
		models.MessageCoordinatorToAgent,
	} {
		for _, st := range []models.SenderType{models.SenderAgent, models.SenderCoordinator, models.SenderSystem} {
			got := c.DetermineStrategy(msg(models.PriorityUrgent, mt, st))
			if got != "highest_priority" {
				t.Errorf("DetermineStrategy(urgent, %s, %s) = %q, want %q", mt, st, got, "highest_priority")
			}
		}
	}
}

func TestDetermineStrategy_TypeFallback(t *testing.T) {
	c := newTestCoordinator(t)

	// Normal priority has no rule entry, so the type table decides.
	got := c.DetermineStrategy(msg(models.PriorityNormal, models.MessageSystemBroadcast, models.SenderSystem))
	if got != "system_priority" {
		t.Errorf("DetermineStrategy() = %q, want %q", got, "system_priority")
	}
}

func TestDetermineStrategy_SenderFallback(t *testing.T) {
	c := newTestCoordinator(t)

	// Neither priority nor type mapped; sender table decides.
	got := c.DetermineStrategy(msg(models.PriorityLow, models.MessageAgentToAgent, models.SenderHuman))
	if got != "human_escalation" {
		t.Errorf("DetermineStrategy() = %q, want %q", got, "human_escalation")
	}
}

func TestDetermineStrategy_Default(t *testing.T) {
	c := newTestCoordinator(t)

	got := c.DetermineStrategy(msg(models.PriorityNormal, models.MessageAgentToAgent, models.SenderAgent))
	if got != coordinator.DefaultStrategy {
		t.Errorf("DetermineStrategy() = %q, want %q", got, coordinator.DefaultStrategy)
	}
}

func TestProcessMessage_Scenarios(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		msg          *models.Message
		wantStrategy string
		wantStatus   models.ProcessStatus
	}{
		{
			name:         "urgent coordinator message",
			msg:          msg(models.PriorityUrgent, models.MessageAgentToCoordinator, models.SenderCoordinator),
			wantStrategy: "highest_priority",
			wantStatus:   models.StatusCoordinated,
		},
		{
			name:         "plain agent chatter",
			msg:          msg(models.PriorityNormal, models.MessageAgentToAgent, models.SenderAgent),
			wantStrategy: "standard",
			wantStatus:   models.StatusProcessed,
		},
		{
			name:         "system broadcast",
			msg:          msg(models.PriorityNormal, models.MessageSystemBroadcast, models.SenderSystem),
			wantStrategy: "system_priority",
			wantStatus:   models.StatusBroadcasted,
		},
		{
			name:         "coordinator to agent from system sender",
			msg:          msg(models.PriorityNormal, models.MessageCoordinatorToAgent, models.SenderSystem),
			wantStrategy: "coordinator_direct",
			wantStatus:   models.StatusPrioritized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.ProcessMessage(ctx, tt.msg)
			if result.Strategy != tt.wantStrategy {
				t.Errorf("Strategy = %q, want %q", result.Strategy, tt.wantStrategy)
			}
			if result.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", result.Status, tt.wantStatus)
			}
			if result.Priority != tt.msg.Priority || result.MessageType != tt.msg.Type {
				t.Errorf("result did not echo priority/type: got (%s, %s)", result.Priority, result.MessageType)
			}
			if result.Routing == nil {
				t.Error("Routing = nil, want resolved config for mapped strategy")
			}
		})
	}
}

func TestProcessMessage_FailureStillRecorded(t *testing.T) {
	calls := 0
	c := newTestCoordinator(t, coordinator.WithStrategyResolver(func(m *models.Message) (string, error) {
		calls++
		if calls%2 == 0 {
			return "", fmt.Errorf("rule table corrupted")
		}
		return "standard", nil
	}))
	ctx := context.Background()

	const n = 6
	for i := 0; i < n; i++ {
		result := c.ProcessMessage(ctx, msg(models.PriorityNormal, models.MessageAgentToAgent, models.SenderAgent))
		if i%2 == 1 {
			if result.Status != models.StatusFailed {
				t.Fatalf("call %d: Status = %q, want failed", i, result.Status)
			}
			if result.Error == "" {
				t.Error("failed result missing error text")
			}
		}
	}

	if got := len(c.History(0)); got != n {
		t.Errorf("len(History) = %d, want %d (failures must be recorded too)", got, n)
	}

	stats := c.Stats()
	if stats.TotalCommands != n || stats.SuccessfulCommands != 3 || stats.FailedCommands != 3 {
		t.Errorf("Stats = %+v, want total=%d successful=3 failed=3", stats, n)
	}
	if stats.SuccessRate != 50 {
		t.Errorf("SuccessRate = %v, want 50", stats.SuccessRate)
	}
}

func TestProcessMessage_ResolverPanicIsCaught(t *testing.T) {
	c := newTestCoordinator(t, coordinator.WithStrategyResolver(func(m *models.Message) (string, error) {
		panic("boom")
	}))

	result := c.ProcessMessage(context.Background(), msg(models.PriorityNormal, models.MessageAgentToAgent, models.SenderAgent))
	if result.Status != models.StatusFailed {
		t.Fatalf("Status = %q, want failed", result.Status)
	}
	if result.Error == "" {
		t.Error("panic result missing error text")
	}
	if got := len(c.History(0)); got != 1 {
		t.Errorf("len(History) = %d, want 1", got)
	}
}

func TestStats_ZeroTotal(t *testing.T) {
	c := newTestCoordinator(t)

	stats := c.Stats()
	if stats.SuccessRate != 0 {
		t.Errorf("SuccessRate with no commands = %v, want 0", stats.SuccessRate)
	}
}

func TestHistory_OrderAndLimit(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m := msg(models.PriorityNormal, models.MessageAgentToAgent, models.SenderAgent)
		m.ID = fmt.Sprintf("m-%d", i)
		c.ProcessMessage(ctx, m)
	}

	all := c.History(0)
	if len(all) != 5 {
		t.Fatalf("len(History(0)) = %d, want 5", len(all))
	}
	for i, e := range all {
		if e.MessageID != fmt.Sprintf("m-%d", i) {
			t.Errorf("History[%d].MessageID = %q, want m-%d", i, e.MessageID, i)
		}
	}

	tail := c.History(2)
	if len(tail) != 2 || tail[0].MessageID != "m-3" || tail[1].MessageID != "m-4" {
		t.Errorf("History(2) = %+v, want last two entries in order", tail)
	}
}

func TestHistory_ConcurrentLengthMatchesCalls(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c.ProcessMessage(ctx, msg(models.PriorityNormal, models.MessageAgentToAgent, models.SenderAgent))
			}
		}(w)
	}
	wg.Wait()

	if got := len(c.History(0)); got != workers*perWorker {
		t.Errorf("len(History) = %d, want %d", got, workers*perWorker)
	}
	if stats := c.Stats(); stats.TotalCommands != workers*perWorker {
		t.Errorf("TotalCommands = %d, want %d", stats.TotalCommands, workers*perWorker)
	}
}

func TestRoutingConfig_MissingStrategyIsSoft(t *testing.T) {
	c := newTestCoordinator(t)

	if _, ok := c.RoutingConfig("no_such_strategy"); ok {
		t.Error("RoutingConfig() for unknown strategy: ok = true, want false")
	}

	cfg, ok := c.RoutingConfig("highest_priority")
	if !ok {
		t.Fatal("RoutingConfig(highest_priority): ok = false, want true")
	}
	if cfg.TimeoutSeconds <= 0 || cfg.Retries < 0 {
		t.Errorf("RoutingConfig(highest_priority) = %+v, want non-negative timeout/retries", cfg)
	}
}

func TestValidateMessage(t *testing.T) {
	c := newTestCoordinator(t)

	valid := c.ValidateMessage(msg(models.PriorityNormal, models.MessageAgentToAgent, models.SenderAgent))
	if !valid.Valid || len(valid.Errors) != 0 {
		t.Errorf("ValidateMessage(valid) = %+v, want valid with no errors", valid)
	}

	invalid := c.ValidateMessage(&models.Message{})
	if invalid.Valid {
		t.Error("ValidateMessage(empty) reported valid")
	}
	if len(invalid.Errors) != 3 {
		t.Errorf("len(Errors) = %d, want 3 (content, sender, recipient)", len(invalid.Errors))
	}
}

func TestProcessMessage_InvalidStillProcessed(t *testing.T) {
	// Validation is advisory: ProcessMessage must not call it.
	c := newTestCoordinator(t)

	result := c.ProcessMessage(context.Background(), &models.Message{ID: "bad"})
	if result.Status == models.StatusFailed {
		t.Errorf("invalid message Status = failed, want normal processing")
	}
	if got := len(c.History(0)); got != 1 {
		t.Errorf("len(History) = %d, want 1", got)
	}
}

func TestUpdateRule(t *testing.T) {
	c := newTestCoordinator(t)

	// Unknown kind and unknown key are no-ops.
	if c.UpdateRule("nonsense", "urgent", "x") {
		t.Error("UpdateRule(unknown kind) = true, want false")
	}
	if c.UpdateRule(models.RulePriority, "normal", "x") {
		t.Error("UpdateRule(unmapped key) = true, want false")
	}

	// Existing key gets rewritten and takes effect.
	if !c.UpdateRule(models.RulePriority, "urgent", "red_alert") {
		t.Fatal("UpdateRule(existing key) = false, want true")
	}
	got := c.DetermineStrategy(msg(models.PriorityUrgent, models.MessageAgentToAgent, models.SenderAgent))
	if got != "red_alert" {
		t.Errorf("after UpdateRule, DetermineStrategy = %q, want %q", got, "red_alert")
	}
}

func TestReset(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	c.UpdateRule(models.RulePriority, "urgent", "red_alert")
	c.ProcessMessage(ctx, msg(models.PriorityUrgent, models.MessageAgentToAgent, models.SenderAgent))
	c.Reset()

	if got := len(c.History(0)); got != 0 {
		t.Errorf("len(History) after Reset = %d, want 0", got)
	}
	if stats := c.Stats(); stats.TotalCommands != 0 || stats.SuccessRate != 0 {
		t.Errorf("Stats after Reset = %+v, want zeros", stats)
	}

	// Rule tables survive a reset.
	got := c.DetermineStrategy(msg(models.PriorityUrgent, models.MessageAgentToAgent, models.SenderAgent))
	if got != "red_alert" {
		t.Errorf("after Reset, DetermineStrategy = %q, want %q (rules untouched)", got, "red_alert")
	}
}
