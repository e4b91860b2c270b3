package idempotency

import (
	"context"
	"sync"
	"time"
)

// sweepEvery bounds how many reservations pass between expired-record sweeps.
const sweepEvery = 256

// MemoryStore keeps records in process for tests and single-replica local runs. Expired records
// are dropped lazily during reservations.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	reserve int
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Reserve implements Store.
func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	id := documentID(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserve++
	if s.reserve%sweepEvery == 0 {
		s.sweepLocked(now)
	}

	if existing, ok := s.records[id]; ok && !existing.expired(now) {
		return classify(existing, fingerprint)
	}
	fresh := pendingRecord(key, fingerprint, now, ttl)
	s.records[id] = fresh
	return Reservation{State: ReservationStateNew, Record: fresh}, nil
}

// Complete implements Store. Completing an unknown key stores the response anyway so a lost
// reservation still replays.
func (s *MemoryStore) Complete(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	id := documentID(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[id]
	switch {
	case !ok:
		current = Record{Key: key, Fingerprint: fingerprint}
	case current.Fingerprint != fingerprint:
		return ErrFingerprintMismatch
	}
	s.records[id] = completeRecord(current, resp, now.UTC(), ttl)
	return nil
}

// Release implements Store.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.records, documentID(key))
	s.mu.Unlock()
	return nil
}

// Sweep drops expired records and reports how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(now.UTC())
}

// Len reports the number of stored records, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *MemoryStore) sweepLocked(now time.Time) int {
	removed := 0
	for id, record := range s.records {
		if record.expired(now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}
