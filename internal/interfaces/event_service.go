package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventBackupProgress  EventType = "backup_progress"
	EventRestoreProgress EventType = "restore_progress"
	EventOperationDone   EventType = "operation_done"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// ProgressPayload is the payload carried by progress events. Current/Total
// are batch or index counters depending on the stage.
type ProgressPayload struct {
	OperationID string `json:"operation_id"`
	Index       string `json:"index,omitempty"`
	Message     string `json:"message"`
	Current     int    `json:"current,omitempty"`
	Total       int    `json:"total,omitempty"`
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
