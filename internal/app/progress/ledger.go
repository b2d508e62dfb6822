// Package progress provides the in-memory progress ledger mirrored to the store.
package progress

import (
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/domain/progress"
	"github.com/osa030/podbox/internal/infra/store"
)

// Ledger maps episode IDs to progress records.
// The in-memory map is authoritative; the store is a best-effort mirror.
type Ledger struct {
	mu        sync.RWMutex
	store     store.Store
	records   map[string]progress.Record
	threshold float64
	now       func() time.Time
}

// NewLedger creates a ledger and loads any records persisted in s.
// A malformed stored blob yields an empty ledger.
func NewLedger(s store.Store, threshold float64) *Ledger {
	if threshold <= 0 || threshold > 1 {
		threshold = progress.DefaultCompletionThreshold
	}

	l := &Ledger{
		store:     s,
		records:   make(map[string]progress.Record),
		threshold: threshold,
		now:       time.Now,
	}

	var loaded map[string]progress.Record
	if store.LoadJSON(s, store.KeyProgress, &loaded) {
		for id, r := range loaded {
			l.records[id] = r
		}
		zlog.Info().Msgf("progress: loaded history: episodes=%d", len(l.records))
	}
	return l
}

// Save upserts the record for id and mirrors the ledger to the store.
// Saving the same time twice yields the same record apart from LastListened.
func (l *Ledger) Save(id string, currentTime, duration float64, completed bool) progress.Record {
	l.mu.Lock()
	r := progress.NewRecord(currentTime, duration, completed, l.threshold, l.now())
	l.records[id] = r
	snapshot := l.copyLocked()
	l.mu.Unlock()

	l.persist(snapshot)
	return r
}

// Get returns the record for id.
func (l *Ledger) Get(id string) (progress.Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.records[id]
	return r, ok
}

// All returns a copy of every record.
func (l *Ledger) All() map[string]progress.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.copyLocked()
}

// Len returns the number of tracked episodes.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Threshold returns the completion threshold in use.
func (l *Ledger) Threshold() float64 {
	return l.threshold
}

// Reset clears every record and removes the durable mirror.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.records = make(map[string]progress.Record)
	l.mu.Unlock()

	if err := l.store.Remove(store.KeyProgress); err != nil {
		zlog.Error().Msgf("progress: failed to remove history: %v", err)
	}
}

func (l *Ledger) copyLocked() map[string]progress.Record {
	out := make(map[string]progress.Record, len(l.records))
	for id, r := range l.records {
		out[id] = r
	}
	return out
}

func (l *Ledger) persist(records map[string]progress.Record) {
	if err := store.SaveJSON(l.store, store.KeyProgress, records); err != nil {
		zlog.Error().Msgf("progress: failed to save history: %v", err)
	}
}
