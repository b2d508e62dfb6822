// Package notification provides the notification manager for broadcasting player state.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/app/player/state"
)

// Type identifies what triggered a notification.
type Type int

const (
	TypeStateChanged   Type = iota // Phase, position or flags changed
	TypeEpisodeChanged             // A different episode became current
	TypeProgressSaved              // A progress record was written
	TypeHistoryCleared             // Recently played or progress history was cleared
)

// String returns the string representation of the notification type.
func (t Type) String() string {
	switch t {
	case TypeStateChanged:
		return "state_changed"
	case TypeEpisodeChanged:
		return "episode_changed"
	case TypeProgressSaved:
		return "progress_saved"
	case TypeHistoryCleared:
		return "history_cleared"
	default:
		return "unknown"
	}
}

// Notification carries a session snapshot to subscribers.
type Notification struct {
	SequenceNo uint64
	Type       Type
	Snapshot   state.Snapshot
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
	sendTimeout   time.Duration
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   500 * time.Millisecond,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	zlog.Debug().Msgf("notification: subscribed: id=%s", id)
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
	zlog.Debug().Msgf("notification: unsubscribed: id=%s", subscriptionID)
}

func (m *Manager) nextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Broadcast sends a notification to all subscribers.
// Each stream send is done in a goroutine with a timeout to prevent blocking.
func (m *Manager) Broadcast(notification *Notification) {
	notification.SequenceNo = m.nextSequenceNo()

	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(notification)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification: send failed: id=%s err=%v", s.id, err)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: send timed out: id=%s seq=%d", s.id, notification.SequenceNo)
			}
		}(sub)
	}

	wg.Wait()
}

// Send sends a notification to a specific subscriber.
func (m *Manager) Send(subscriptionID string, notification *Notification) error {
	m.mu.RLock()
	sub, ok := m.subscriptions[subscriptionID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	notification.SequenceNo = m.nextSequenceNo()
	return sub.stream.Send(notification)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
