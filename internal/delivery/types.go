// Package delivery sends commands to panes and confirms they ran, retrying
// within a fixed budget and keeping a per-message tracking record.
package delivery

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sprite/internal/pane"
)

var (
	ErrDuplicateMessageID = errors.New("message id already in flight")
	ErrInvalidRequest     = errors.New("invalid delivery request")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
)

// Terminal reports whether no delivery is currently working on the record.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed || s == StatusTimeout
}

type Outcome string

const (
	OutcomeAwaitingAck    Outcome = "awaiting_ack"
	OutcomeAcked          Outcome = "acked"
	OutcomeTimedOut       Outcome = "timed_out"
	OutcomeTransportError Outcome = "transport_error"
)

// Priority is advisory metadata; it never reorders attempts.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func ParsePriority(raw string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "normal", "medium":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	case "high", "urgent":
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("unknown priority %q", raw)
	}
}

type Request struct {
	MessageID   string
	TargetAgent string
	TargetPane  pane.Address
	Command     string
	Priority    Priority
	CreatedAt   time.Time
}

func (r Request) validate() error {
	switch {
	case strings.TrimSpace(r.MessageID) == "":
		return fmt.Errorf("%w: message id is required", ErrInvalidRequest)
	case r.TargetPane.Session == "" || r.TargetPane.Pane == "":
		return fmt.Errorf("%w: target pane is required", ErrInvalidRequest)
	case strings.TrimSpace(r.Command) == "":
		return fmt.Errorf("%w: command is empty", ErrInvalidRequest)
	case strings.ContainsAny(r.Command, "\r\n"):
		return fmt.Errorf("%w: command must be a single line", ErrInvalidRequest)
	}
	return nil
}

// Attempt is one transport send. RespondedAt is zero unless acked.
type Attempt struct {
	Number      int
	SentAt      time.Time
	Outcome     Outcome
	RespondedAt time.Time
	Error       string
}

// ResponseTime is the ack latency, or zero when the attempt was not acked.
func (a Attempt) ResponseTime() time.Duration {
	if a.Outcome != OutcomeAcked || a.RespondedAt.IsZero() {
		return 0
	}
	return a.RespondedAt.Sub(a.SentAt)
}

type Receipt struct {
	DeliveredAt    time.Time
	Acknowledgment string
}

// Tracking is the life of one message. Values returned by the engine are
// copies; mutating them has no effect on the engine.
type Tracking struct {
	MessageID   string
	TargetAgent string
	TargetPane  pane.Address
	Command     string
	Priority    Priority
	Status      Status
	CreatedAt   time.Time
	Attempts    []Attempt
	Receipt     *Receipt
}

// LastAttempt returns the most recent attempt, if any.
func (t Tracking) LastAttempt() (Attempt, bool) {
	if len(t.Attempts) == 0 {
		return Attempt{}, false
	}
	return t.Attempts[len(t.Attempts)-1], true
}

func (t Tracking) clone() Tracking {
	out := t
	if t.Attempts != nil {
		out.Attempts = append([]Attempt(nil), t.Attempts...)
	}
	if t.Receipt != nil {
		receipt := *t.Receipt
		out.Receipt = &receipt
	}
	return out
}
