package otp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(codes ...string) (*Store, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	i := 0
	gen := func() (string, error) {
		code := "123456"
		if i < len(codes) {
			code = codes[i]
		}
		i++
		return code, nil
	}
	return NewStore(clock.Now, gen), clock
}

func TestStore_IssueAndVerify(t *testing.T) {
	s, _ := newTestStore("424242")

	code, _, err := s.Issue("a@x.io")
	require.NoError(t, err)
	assert.Equal(t, "424242", code)

	require.NoError(t, s.Verify("a@x.io", "424242"))

	// Consumed: a second verify with any code is expired.
	assert.ErrorIs(t, s.Verify("a@x.io", "424242"), ErrExpired)
}

func TestStore_VerifyWrongCode(t *testing.T) {
	s, _ := newTestStore("424242")

	_, _, err := s.Issue("a@x.io")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Verify("a@x.io", "000000"), ErrInvalid)

	// The entry survives a mismatch; the right code still works.
	require.NoError(t, s.Verify("a@x.io", "424242"))
}

func TestStore_VerifyExpired(t *testing.T) {
	s, clock := newTestStore("424242")

	_, _, err := s.Issue("a@x.io")
	require.NoError(t, err)

	clock.Advance(TTL + time.Second)

	assert.ErrorIs(t, s.Verify("a@x.io", "424242"), ErrExpired)
}

func TestStore_VerifyUnknownEmail(t *testing.T) {
	s, _ := newTestStore()

	assert.ErrorIs(t, s.Verify("nobody@x.io", "123456"), ErrExpired)
}

func TestStore_IssueRateLimit(t *testing.T) {
	s, clock := newTestStore()

	for i := 0; i < 3; i++ {
		_, _, err := s.Issue("a@x.io")
		require.NoError(t, err)
	}

	_, retryAfter, err := s.Issue("a@x.io")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Greater(t, retryAfter, time.Duration(0))

	// Window slides: a minute later issuance works again.
	clock.Advance(time.Minute + time.Second)
	_, _, err = s.Issue("a@x.io")
	assert.NoError(t, err)
}

func TestStore_IssueRateLimitPerEmail(t *testing.T) {
	s, _ := newTestStore()

	for i := 0; i < 3; i++ {
		_, _, err := s.Issue("a@x.io")
		require.NoError(t, err)
	}

	// A different email is unaffected.
	_, _, err := s.Issue("b@x.io")
	assert.NoError(t, err)
}

func TestStore_VerifyRateLimit(t *testing.T) {
	s, clock := newTestStore("424242")

	_, _, err := s.Issue("a@x.io")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, s.Verify("a@x.io", "999999"), ErrInvalid)
	}

	// Fourth attempt is limited even with the correct code.
	assert.ErrorIs(t, s.Verify("a@x.io", "424242"), ErrRateLimited)
	assert.Greater(t, s.RetryAfter("a@x.io"), time.Duration(0))

	// After the window passes the correct code goes through (entry itself
	// has expired by then, so re-issue first).
	clock.Advance(16 * time.Minute)
	_, _, err = s.Issue("a@x.io")
	require.NoError(t, err)
	assert.NoError(t, s.Verify("a@x.io", "424242"))
}

func TestStore_ReissueResetsAttempts(t *testing.T) {
	s, _ := newTestStore("111111", "222222")

	_, _, err := s.Issue("a@x.io")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Verify("a@x.io", "000000"), ErrInvalid)
	assert.ErrorIs(t, s.Verify("a@x.io", "000000"), ErrInvalid)

	_, _, err = s.Issue("a@x.io")
	require.NoError(t, err)

	// Fresh entry, fresh attempt budget.
	assert.ErrorIs(t, s.Verify("a@x.io", "000000"), ErrInvalid)
	assert.ErrorIs(t, s.Verify("a@x.io", "000000"), ErrInvalid)
	assert.NoError(t, s.Verify("a@x.io", "222222"))
}

func TestStore_Sweep(t *testing.T) {
	s, clock := newTestStore()

	_, _, err := s.Issue("a@x.io")
	require.NoError(t, err)
	_, _, err = s.Issue("b@x.io")
	require.NoError(t, err)

	clock.Advance(TTL + time.Second)

	assert.Equal(t, 2, s.Sweep())
	assert.Equal(t, 0, s.Sweep())
}

func TestStore_Clear(t *testing.T) {
	s, _ := newTestStore("424242")

	_, _, err := s.Issue("a@x.io")
	require.NoError(t, err)

	s.Clear("a@x.io")
	assert.ErrorIs(t, s.Verify("a@x.io", "424242"), ErrExpired)
}
