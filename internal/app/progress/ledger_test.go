package progress

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/osa030/podbox/internal/domain/progress"
	"github.com/osa030/podbox/internal/infra/store"
)

// failingStore accepts reads but rejects every write.
type failingStore struct {
	*store.MemoryStore
}

func (f failingStore) Set(string, []byte) error { return errors.New("quota exceeded") }
func (f failingStore) Remove(string) error      { return errors.New("quota exceeded") }

func TestLedger_SaveGet(t *testing.T) {
	tests := []struct {
		name          string
		time          float64
		duration      float64
		override      bool
		wantTime      float64
		wantCompleted bool
	}{
		{name: "partial", time: 150, duration: 300, wantTime: 150},
		{name: "above threshold", time: 115, duration: 120, wantTime: 115, wantCompleted: true},
		{name: "below threshold", time: 100, duration: 120, wantTime: 100},
		{name: "clamped above", time: 500, duration: 300, wantTime: 300, wantCompleted: true},
		{name: "clamped below", time: -3, duration: 300, wantTime: 0},
		{name: "ended override", time: 10, duration: 300, override: true, wantTime: 10, wantCompleted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(store.NewMemoryStore(), 0.9)
			l.Save("p1-s1-e1", tt.time, tt.duration, tt.override)

			r, ok := l.Get("p1-s1-e1")
			require.True(t, ok)
			assert.Equal(t, tt.wantTime, r.CurrentTime)
			assert.Equal(t, tt.duration, r.Duration)
			assert.Equal(t, tt.wantCompleted, r.Completed)
			assert.NotEmpty(t, r.LastListened)
		})
	}
}

func TestLedger_GetMissing(t *testing.T) {
	l := NewLedger(store.NewMemoryStore(), 0.9)
	_, ok := l.Get("nope")
	assert.False(t, ok)
}

func TestLedger_SaveIsIdempotent(t *testing.T) {
	l := NewLedger(store.NewMemoryStore(), 0.9)

	first := l.Save("p1-s1-e1", 42, 120, false)
	second := l.Save("p1-s1-e1", 42, 120, false)

	assert.True(t, first.SameProgress(second))
	assert.Equal(t, 1, l.Len())
}

func TestLedger_PersistsAndReloads(t *testing.T) {
	s := store.NewMemoryStore()
	l := NewLedger(s, 0.9)
	l.Save("p1-s1-e1", 42, 120, false)

	reloaded := NewLedger(s, 0.9)
	r, ok := reloaded.Get("p1-s1-e1")
	require.True(t, ok)
	assert.Equal(t, 42.0, r.CurrentTime)
	assert.False(t, r.Completed)
}

func TestLedger_MalformedStoreIsEmpty(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(store.KeyProgress, []byte("[1,2")))

	l := NewLedger(s, 0.9)
	assert.Equal(t, 0, l.Len())
}

func TestLedger_WriteFailureKeepsMemory(t *testing.T) {
	l := NewLedger(failingStore{store.NewMemoryStore()}, 0.9)
	l.Save("p1-s1-e1", 30, 120, false)

	r, ok := l.Get("p1-s1-e1")
	require.True(t, ok)
	assert.Equal(t, 30.0, r.CurrentTime)

	l.Reset()
	assert.Equal(t, 0, l.Len())
}

func TestLedger_Reset(t *testing.T) {
	s := store.NewMemoryStore()
	l := NewLedger(s, 0.9)
	l.Save("a-s1-e1", 1, 10, false)
	l.Save("b-s1-e1", 2, 10, false)

	l.Reset()

	assert.Equal(t, 0, l.Len())
	_, ok, err := s.Get(store.KeyProgress)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_LastListenedUsesClock(t *testing.T) {
	l := NewLedger(store.NewMemoryStore(), 0.9)
	fixed := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	r := l.Save("p1-s1-e1", 1, 10, false)
	assert.Equal(t, fixed, r.LastListenedAt())
}

func TestNewLedger_InvalidThresholdFallsBack(t *testing.T) {
	l := NewLedger(store.NewMemoryStore(), 0)
	assert.Equal(t, domain.DefaultCompletionThreshold, l.Threshold())
}

func TestThrottle(t *testing.T) {
	th := NewThrottle(1)

	assert.True(t, th.Due("a", 0.2), "first update is always due")
	th.Mark("a", 0.2)

	assert.False(t, th.Due("a", 0.5))
	assert.False(t, th.Due("a", 1.1))
	assert.True(t, th.Due("a", 1.3))
	assert.True(t, th.Due("b", 0.3), "new episode is due")

	th.Mark("a", 10)
	assert.True(t, th.Due("a", 8.5), "backwards jumps count too")

	th.Reset()
	assert.True(t, th.Due("a", 10))
}
