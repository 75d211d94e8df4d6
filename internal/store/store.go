// Package store keeps a bounded in-memory record of recently received
// events together with their forwarding outcome. It is a diagnostic replay
// aid, not durable storage: nothing survives a restart, and the oldest
// record is evicted once capacity is reached.
package store

import (
	"sync"

	"github.com/oshokin/sia-bridge/internal/domain/event"
)

// DefaultCapacity bounds the replay buffer when the configuration does not.
const DefaultCapacity = 1000

// Filter narrows Snapshot results. Zero values match everything.
type Filter struct {
	// AccountID restricts records to one account.
	AccountID string
	// Code restricts records to one signal code.
	Code string
	// Limit caps the number of records returned, newest last; 0 means all.
	Limit int
}

// Store is a fixed-capacity ring buffer of replay records. Appends come
// from every live connection and reads from the query surface, so all
// access is guarded; readers get copies, never interior pointers.
type Store struct {
	mu       sync.RWMutex
	records  []event.ReplayRecord
	capacity int
	nextID   uint64
}

// New creates a store holding at most capacity records.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Store{
		records:  make([]event.ReplayRecord, 0, capacity),
		capacity: capacity,
		nextID:   1,
	}
}

// Append records an event and returns the record's identifier, used later
// to attach the forwarding outcome. The oldest record is evicted when the
// buffer is full.
func (s *Store) Append(evt *event.AlarmEvent) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	if len(s.records) == s.capacity {
		copy(s.records, s.records[1:])
		s.records = s.records[:len(s.records)-1]
	}

	s.records = append(s.records, event.ReplayRecord{
		ID:    id,
		Event: evt,
	})

	return id
}

// MarkForwarded attaches the terminal forwarding outcome to a record.
// A record already evicted is silently ignored; eviction outpacing delivery
// is an overload signal, not an error.
func (s *Store) MarkForwarded(id uint64, forwardErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID != id {
			continue
		}

		if forwardErr != nil {
			s.records[i].ForwardError = forwardErr.Error()
		} else {
			s.records[i].Forwarded = true
			s.records[i].ForwardError = ""
		}

		return
	}
}

// Snapshot returns a consistent copy of the records matching the filter,
// oldest first.
func (s *Store) Snapshot(filter Filter) []event.ReplayRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]event.ReplayRecord, 0, len(s.records))

	for _, record := range s.records {
		if filter.AccountID != "" && record.Event.AccountID != filter.AccountID {
			continue
		}

		if filter.Code != "" && record.Event.Code != filter.Code {
			continue
		}

		matched = append(matched, record)
	}

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[len(matched)-filter.Limit:]
	}

	return matched
}

// Len returns the number of records currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}
