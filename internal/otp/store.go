// Package otp holds single-use verification codes in process memory and
// enforces the two per-email rate windows: issuance (mailer spam) and
// verification (code brute force).
package otp

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrExpired     = errors.New("otp expired or not issued")
	ErrInvalid     = errors.New("otp does not match")
	ErrRateLimited = errors.New("otp rate limit exceeded")
)

const (
	TTL = 5 * time.Minute

	maxIssuesPerWindow = 3
	issueWindow        = time.Minute

	maxVerifyAttempts = 3
	verifyWindow      = 15 * time.Minute
)

type entry struct {
	code      string
	expiresAt time.Time
}

// attemptWindow tracks failed verifications per email independently of the
// live entry, so a rate-limited caller learns nothing about code state.
type attemptWindow struct {
	count    int
	resetsAt time.Time
}

type Store struct {
	mu       sync.Mutex
	entries  map[string]*entry
	issues   map[string][]time.Time
	attempts map[string]*attemptWindow

	now     func() time.Time
	genCode func() (string, error)
}

// NewStore builds the store around an injected clock and code generator so
// tests can pin both.
func NewStore(now func() time.Time, genCode func() (string, error)) *Store {
	return &Store{
		entries:  map[string]*entry{},
		issues:   map[string][]time.Time{},
		attempts: map[string]*attemptWindow{},
		now:      now,
		genCode:  genCode,
	}
}

// Issue mints and stores a fresh code for the email, replacing any live one.
// Returns ErrRateLimited with a retry-after duration when the email already
// issued three codes inside the trailing minute.
func (s *Store) Issue(email string) (code string, retryAfter time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	recent := pruneBefore(s.issues[email], now.Add(-issueWindow))
	if len(recent) >= maxIssuesPerWindow {
		retryAfter = recent[0].Add(issueWindow).Sub(now)
		s.issues[email] = recent
		return "", retryAfter, ErrRateLimited
	}

	code, err = s.genCode()
	if err != nil {
		return "", 0, err
	}

	s.entries[email] = &entry{code: code, expiresAt: now.Add(TTL)}
	s.issues[email] = append(recent, now)
	delete(s.attempts, email)

	return code, 0, nil
}

// Verify checks the submitted code. The rate window is checked before any
// code state so a limited caller cannot probe whether the code matches or
// has expired. A match consumes the entry.
func (s *Store) Verify(email, submitted string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if w, ok := s.attempts[email]; ok {
		if now.After(w.resetsAt) {
			delete(s.attempts, email)
		} else if w.count >= maxVerifyAttempts {
			return ErrRateLimited
		}
	}

	e, ok := s.entries[email]
	if !ok || !now.Before(e.expiresAt) {
		delete(s.entries, email)
		return ErrExpired
	}

	if subtle.ConstantTimeCompare([]byte(e.code), []byte(submitted)) != 1 {
		w := s.attempts[email]
		if w == nil {
			w = &attemptWindow{resetsAt: now.Add(verifyWindow)}
			s.attempts[email] = w
		}
		w.count++
		return ErrInvalid
	}

	delete(s.entries, email)
	delete(s.attempts, email)
	return nil
}

// RetryAfter reports how long the email's verify window has left to run.
func (s *Store) RetryAfter(email string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.attempts[email]
	if !ok {
		return 0
	}
	d := w.resetsAt.Sub(s.now())
	if d < 0 {
		return 0
	}
	return d
}

// Clear drops all state for the email. Called after a committed
// registration, belt and braces.
func (s *Store) Clear(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, email)
	delete(s.attempts, email)
	delete(s.issues, email)
}

// Sweep removes expired entries and stale windows.
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
	for email, w := range s.attempts {
		if now.After(w.resetsAt) {
			delete(s.attempts, email)
		}
	}
	for email, times := range s.issues {
		if pruned := pruneBefore(times, now.Add(-issueWindow)); len(pruned) == 0 {
			delete(s.issues, email)
		} else {
			s.issues[email] = pruned
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

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	out := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
