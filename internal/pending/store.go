// Package pending holds validated registration payloads keyed by leader
// email until the OTP is verified. TTL-bounded, in process memory.
package pending

import (
	"context"
	"sync"
	"time"

	"github.com/yakoovad/hackathon-registration/internal/model"
)

// TTL outlives the OTP expiry with slack so a late re-issue can still find
// the payload.
const TTL = 15 * time.Minute

type entry struct {
	payload   *model.Registration
	expiresAt time.Time
}

type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func NewStore(now func() time.Time) *Store {
	return &Store{
		entries: map[string]*entry{},
		now:     now,
	}
}

// Put stores the payload, replacing any pending one for the same email.
func (s *Store) Put(email string, payload *model.Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[email] = &entry{
		payload:   payload,
		expiresAt: s.now().Add(TTL),
	}
}

// Take reads and removes the payload atomically. Exactly one of two
// concurrent callers gets it; the other sees a miss.
func (s *Store) Take(email string) (*model.Registration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[email]
	if !ok {
		return nil, false
	}
	delete(s.entries, email)

	if !s.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.payload, true
}

// Delete drops the entry without reading it.
func (s *Store) Delete(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, email)
}

// Sweep removes expired payloads.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for email, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, email)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until ctx is cancelled.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}
