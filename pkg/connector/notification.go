package connector

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/resbridge/pkg/cell"
	"github.com/ajitpratap0/resbridge/pkg/metrics"
)

// Notification is one event delivered to listeners.
type Notification struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Source    string    `json:"source,omitempty"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`

	// UserData is the value SubscribeCore returned for the receiving listener.
	UserData any `json:"-"`
}

// Listener receives notifications.
type Listener interface {
	HandleNotification(n Notification)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Notification)

// HandleNotification calls f(n).
func (f ListenerFunc) HandleNotification(n Notification) { f(n) }

type subscription struct {
	listener Listener
	userData any
}

// NotificationMetadata describes one enabled notification list and owns its
// listener table. The table has its own lock, independent of the registry
// that holds the metadata.
type NotificationMetadata struct {
	category    string
	description string
	options     Options

	ids       Sequence
	listeners *cell.Cell[map[ListenerID]subscription]
	emitted   atomic.Uint64
}

// NotificationOption customizes NotificationMetadata at construction.
type NotificationOption func(*NotificationMetadata)

// WithDescription sets a human-readable description.
func WithDescription(d string) NotificationOption {
	return func(m *NotificationMetadata) { m.description = d }
}

// WithSequence selects the listener id generator. The default is GlobalSequence.
func WithSequence(seq Sequence) NotificationOption {
	return func(m *NotificationMetadata) {
		if seq != nil {
			m.ids = seq
		}
	}
}

// NewNotificationMetadata creates metadata with an empty listener table.
func NewNotificationMetadata(category string, options Options, opts ...NotificationOption) *NotificationMetadata {
	m := &NotificationMetadata{
		category:  category,
		options:   options,
		ids:       GlobalSequence(),
		listeners: cell.New(make(map[ListenerID]subscription)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Category returns the notification category.
func (m *NotificationMetadata) Category() string { return m.category }

// Description returns the human-readable description.
func (m *NotificationMetadata) Description() string { return m.description }

// Options returns the read-only options view.
func (m *NotificationMetadata) Options() Options { return m.options }

// ListenerCount returns the number of subscribed listeners.
func (m *NotificationMetadata) ListenerCount() int {
	n, _ := cell.Read(m.listeners, func(t map[ListenerID]subscription) (int, error) {
		return len(t), nil
	})
	return n
}

// ListenerIDs returns the subscribed ids in ascending order.
func (m *NotificationMetadata) ListenerIDs() []ListenerID {
	ids, _ := cell.Read(m.listeners, func(t map[ListenerID]subscription) ([]ListenerID, error) {
		ids := make([]ListenerID, 0, len(t))
		for id := range t {
			ids = append(ids, id)
		}
		return ids, nil
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Emit stamps n with the category, a sequence number, an id and a timestamp
// when missing, then delivers it to every listener. Listeners run outside the
// table lock and may subscribe or unsubscribe. Returns the number of listeners
// reached.
func (m *NotificationMetadata) Emit(n Notification) int {
	subs, _ := cell.Read(m.listeners, func(t map[ListenerID]subscription) ([]subscription, error) {
		out := make([]subscription, 0, len(t))
		for _, s := range t {
			out = append(out, s)
		}
		return out, nil
	})

	n.Category = m.category
	n.Sequence = m.emitted.Add(1)
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	for _, s := range subs {
		delivered := n
		delivered.UserData = s.userData
		s.listener.HandleNotification(delivered)
	}
	metrics.NotificationsEmitted.WithLabelValues(m.category).Add(float64(len(subs)))
	return len(subs)
}

// add draws a fresh id from the metadata's sequence and records the listener.
func (m *NotificationMetadata) add(listener Listener, userData any) ListenerID {
	id, _ := cell.Write(m.listeners, func(t map[ListenerID]subscription) (ListenerID, error) {
		id := m.ids.Next()
		t[id] = subscription{listener: listener, userData: userData}
		return id, nil
	})
	return id
}

// removeWith looks id up and, on a hit, runs fn before dropping the entry.
// Both steps happen under the table's exclusive lock so a listener is removed
// at most once.
func (m *NotificationMetadata) removeWith(id ListenerID, fn func(subscription)) bool {
	ok, _ := cell.Write(m.listeners, func(t map[ListenerID]subscription) (bool, error) {
		s, found := t[id]
		if !found {
			return false, nil
		}
		fn(s)
		delete(t, id)
		return true, nil
	})
	return ok
}
