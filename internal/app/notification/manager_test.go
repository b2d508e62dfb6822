package notification

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/podbox/internal/app/player/state"
)

type recordingStream struct {
	mu    sync.Mutex
	got   []*Notification
	block chan struct{}
}

func (s *recordingStream) Send(n *Notification) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return nil
}

func (s *recordingStream) received() []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Notification(nil), s.got...)
}

func TestManager_BroadcastAssignsSequence(t *testing.T) {
	m := NewManager()
	a, b := &recordingStream{}, &recordingStream{}
	m.Subscribe(a)
	idB := m.Subscribe(b)
	assert.Equal(t, 2, m.SubscriberCount())

	m.Broadcast(&Notification{Type: TypeStateChanged, Snapshot: state.Snapshot{Volume: 70}})
	m.Unsubscribe(idB)
	m.Broadcast(&Notification{Type: TypeProgressSaved})

	gotA := a.received()
	require.Len(t, gotA, 2)
	assert.Equal(t, uint64(1), gotA[0].SequenceNo)
	assert.Equal(t, 70, gotA[0].Snapshot.Volume)
	assert.Equal(t, uint64(2), gotA[1].SequenceNo)
	assert.Len(t, b.received(), 1)
}

func TestManager_SlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewManager()
	m.sendTimeout = 20 * time.Millisecond

	slow := &recordingStream{block: make(chan struct{})}
	defer close(slow.block)
	fast := &recordingStream{}
	m.Subscribe(slow)
	m.Subscribe(fast)

	start := time.Now()
	m.Broadcast(&Notification{Type: TypeStateChanged})
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, fast.received(), 1)
}

func TestManager_SendToUnknownIsNoop(t *testing.T) {
	m := NewManager()
	assert.NoError(t, m.Send("missing", &Notification{}))

	s := &recordingStream{}
	id := m.Subscribe(s)
	require.NoError(t, m.Send(id, &Notification{Type: TypeEpisodeChanged}))
	assert.Equal(t, TypeEpisodeChanged, s.received()[0].Type)

	m.Close()
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "state_changed", TypeStateChanged.String())
	assert.Equal(t, "history_cleared", TypeHistoryCleared.String())
	assert.Equal(t, "unknown", Type(9).String())
}
