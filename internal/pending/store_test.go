package pending

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yakoovad/hackathon-registration/internal/model"
)

func payload(name string) *model.Registration {
	return &model.Registration{TeamName: name, LeaderEmail: "a@x.io"}
}

func TestStore_PutTake(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s := NewStore(func() time.Time { return now })

	s.Put("a@x.io", payload("Solo"))

	got, ok := s.Take("a@x.io")
	assert.True(t, ok)
	assert.Equal(t, "Solo", got.TeamName)

	// Taken means gone.
	_, ok = s.Take("a@x.io")
	assert.False(t, ok)
}

func TestStore_PutReplaces(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s := NewStore(func() time.Time { return now })

	s.Put("a@x.io", payload("First"))
	s.Put("a@x.io", payload("Second"))

	got, ok := s.Take("a@x.io")
	assert.True(t, ok)
	assert.Equal(t, "Second", got.TeamName)
}

func TestStore_TakeExpired(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s := NewStore(func() time.Time { return now })

	s.Put("a@x.io", payload("Solo"))
	now = now.Add(TTL + time.Second)

	_, ok := s.Take("a@x.io")
	assert.False(t, ok)
}

func TestStore_TakeConcurrent(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s := NewStore(func() time.Time { return now })
	s.Put("a@x.io", payload("Solo"))

	const n = 16
	wins := make(chan bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := s.Take("a@x.io")
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for ok := range wins {
		if ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestStore_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s := NewStore(func() time.Time { return now })

	s.Put("a@x.io", payload("Solo"))
	s.Put("b@x.io", payload("Duo"))
	now = now.Add(TTL + time.Second)
	s.Put("c@x.io", payload("Trio"))

	assert.Equal(t, 2, s.Sweep())

	_, ok := s.Take("c@x.io")
	assert.True(t, ok)
}
