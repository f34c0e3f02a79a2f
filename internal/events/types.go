package events

import "time"

// EventType classifies a system event
type EventType string

const (
	EventSeedImported   EventType = "seed.imported"
	EventSeasonCloned   EventType = "season.cloned"
	EventSpondSynced    EventType = "spond.synced"
	EventPlayerLinked   EventType = "spond.player.linked"
	EventPlayerUnlinked EventType = "spond.player.unlinked"
	EventIncidentFiled  EventType = "incident.filed"
	EventDigestSent     EventType = "tasks.digest.sent"
	EventJobExecuted    EventType = "scheduler.job.executed"
	EventInfo           EventType = "info"
	EventError          EventType = "error"
)

// Event represents a system event published on the bus and streamed to
// staff dashboards.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler represents a function that handles events
type EventHandler func(event Event)

// EventBusConfig represents configuration for the event bus
type EventBusConfig struct {
	BufferSize      int `json:"buffer_size"`
	MaxStoredEvents int `json:"max_stored_events"`
}

// DefaultEventBusConfig returns default configuration
func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{
		BufferSize:      1000,
		MaxStoredEvents: 100,
	}
}
