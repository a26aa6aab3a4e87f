package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSessionStarted   Type = "session.started"
	TypeSessionRestored  Type = "session.restored"
	TypeSessionRefreshed Type = "session.refreshed"
	TypeSessionWarning   Type = "session.warning"
	TypeSessionExpired   Type = "session.expired"
	TypeSessionEnded     Type = "session.ended"
	TypeRoleSwitched     Type = "role.switched"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"` // user the event is about
}

// WarningPayload accompanies session.warning.
type WarningPayload struct {
	Window    time.Duration `json:"window"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// ExpiredPayload accompanies session.expired.
type ExpiredPayload struct {
	Reason string `json:"reason"`
}

// RolePayload accompanies role.switched.
type RolePayload struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
}

// New stamps an event with an id and the current UTC time.
func New(t Type, actorID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ActorID:   actorID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}

func (Nop) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event)
	close(ch)
	return ch, func() {}
}
