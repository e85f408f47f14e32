// Package notify dispatches post-commit events to notification sinks.
// Dispatch is best-effort: sink failures are logged and never propagate back
// into the mutation path.
package notify

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"facilitycore/internal/core"
)

// Type classifies an in-app notification.
type Type string

// Notification types.
const (
	TypeMention      Type = "mention"
	TypeAssignment   Type = "assignment"
	TypeStatusChange Type = "status_change"
)

// Notification is one in-app message for an actor.
type Notification struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	RequestID *int64    `json:"request_id"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink receives notifications produced by the dispatcher.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// Logger matches the service logging seam.
type Logger interface {
	Warnf(format string, args ...any)
}

// Dispatcher fans service events out to sinks. It implements core.Notifier.
type Dispatcher struct {
	sinks  []Sink
	logger Logger
}

var _ core.Notifier = (*Dispatcher)(nil)

// NewDispatcher constructs a dispatcher over the given sinks.
func NewDispatcher(logger Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, logger: logger}
}

// Notify converts the event into notifications and delivers them to every
// sink. Failures are logged and swallowed.
func (d *Dispatcher) Notify(ctx context.Context, event core.Event) {
	for _, n := range notificationsFor(event) {
		for _, sink := range d.sinks {
			if err := sink.Deliver(ctx, n); err != nil && d.logger != nil {
				d.logger.Warnf("notification delivery failed: %v", err)
			}
		}
	}
}

func notificationsFor(event core.Event) []Notification {
	now := time.Now().UTC()
	requestID := event.RequestID
	base := Notification{
		ID:        uuid.NewString(),
		Message:   event.Summary,
		RequestID: &requestID,
		CreatedAt: now,
	}
	switch event.Kind {
	case core.EventCreated:
		n := base
		n.Type = TypeStatusChange
		n.Title = "New repair request"
		return []Notification{n}
	case core.EventTransitioned:
		n := base
		n.Type = TypeStatusChange
		n.Title = "Request status changed"
		return []Notification{n}
	case core.EventAssigned:
		var out []Notification
		for _, actorID := range event.Mentions {
			n := base
			n.ID = uuid.NewString()
			n.ActorID = actorID
			n.Type = TypeAssignment
			n.Title = "Request assigned to you"
			out = append(out, n)
		}
		return out
	case core.EventMention:
		var out []Notification
		for _, actorID := range event.Mentions {
			n := base
			n.ID = uuid.NewString()
			n.ActorID = actorID
			n.Type = TypeMention
			n.Title = fmt.Sprintf("You were mentioned on request #%d", event.RequestID)
			out = append(out, n)
		}
		return out
	default:
		return nil
	}
}

// MemorySink retains notifications in memory, serving the in-app inbox and
// tests.
type MemorySink struct {
	mu    sync.RWMutex
	items []Notification
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Deliver implements Sink.
func (s *MemorySink) Deliver(_ context.Context, n Notification) error {
	s.mu.Lock()
	s.items = append(s.items, n)
	s.mu.Unlock()
	return nil
}

// All returns a copy of every delivered notification in arrival order.
func (s *MemorySink) All() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return out
}

// For returns the notifications addressed to one actor.
func (s *MemorySink) For(actorID string) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Notification
	for _, n := range s.items {
		if n.ActorID == actorID {
			out = append(out, n)
		}
	}
	return out
}

// MarkRead flags a notification as read. Returns false when unknown.
func (s *MemorySink) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Read = true
			return true
		}
	}
	return false
}

// OpenFromEnv builds the dispatcher configured by environment variables. The
// in-memory sink is always attached; SMTP is added when configured.
//
//	FACILITYCORE_SMTP_ADDR: host:port of the mail relay (enables email)
//	FACILITYCORE_SMTP_FROM: sender address (default facilities@localhost)
//	FACILITYCORE_SMTP_TO: comma-separated facilities team recipients
func OpenFromEnv(logger Logger) (*Dispatcher, *MemorySink) {
	inbox := NewMemorySink()
	sinks := []Sink{inbox}
	if addr := os.Getenv("FACILITYCORE_SMTP_ADDR"); addr != "" {
		sinks = append(sinks, NewSMTPSink(SMTPConfig{
			Addr: addr,
			From: os.Getenv("FACILITYCORE_SMTP_FROM"),
			To:   splitList(os.Getenv("FACILITYCORE_SMTP_TO")),
		}))
	}
	return NewDispatcher(logger, sinks...), inbox
}
