package coordinator

import "github.com/swarmgate/swarmgate/pkg/models"

// DefaultStrategy is returned when no rule table matches a message.
const DefaultStrategy = "standard"

// DefaultRules returns the built-in routing rule tables.
//
// Deliberately sparse: normal/low priority, agent_to_agent type, and
// agent senders have no entries, so ordinary agent chatter falls
// through to the default strategy.
func DefaultRules() models.RoutingRules {
	return models.RoutingRules{
		Priority: map[models.Priority]string{
			models.PriorityUrgent: "highest_priority",
			models.PriorityHigh:   "high_priority",
		},
		Type: map[models.MessageType]string{
			models.MessageSystemBroadcast:    "system_priority",
			models.MessageCoordinatorToAgent: "coordinator_direct",
			models.MessageHumanToAgent:       "human_direct",
		},
		Sender: map[models.SenderType]string{
			models.SenderCoordinator: "coordinator_priority",
			models.SenderHuman:       "human_escalation",
		},
	}
}

// DefaultRoutingConfigs returns the built-in strategy → config table.
// Every strategy referenced by DefaultRules has an entry here; a
// strategy without an entry is a soft "no extra config" case.
func DefaultRoutingConfigs() map[string]models.RoutingConfig {
	return map[string]models.RoutingConfig{
		"highest_priority":     {TimeoutSeconds: 5, Retries: 3},
		"high_priority":        {TimeoutSeconds: 10, Retries: 2},
		"system_priority":      {TimeoutSeconds: 15, Retries: 2},
		"coordinator_direct":   {TimeoutSeconds: 10, Retries: 1},
		"human_direct":         {TimeoutSeconds: 30, Retries: 1},
		"coordinator_priority": {TimeoutSeconds: 10, Retries: 2},
		"human_escalation":     {TimeoutSeconds: 60, Retries: 1},
		DefaultStrategy:        {TimeoutSeconds: 30, Retries: 1},
	}
}
