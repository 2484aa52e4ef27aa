package delivery

import "time"

type EventType string

const (
	EventAttempt  EventType = "attempt"
	EventFinished EventType = "finished"
)

// Event reports progress of one tracked delivery.
type Event struct {
	Type      EventType `json:"type"`
	MessageID string    `json:"message_id"`
	Agent     string    `json:"agent"`
	Pane      string    `json:"pane"`
	Status    Status    `json:"status"`
	Attempt   int       `json:"attempt"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
