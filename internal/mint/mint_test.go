package mint

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMint_TeamID(t *testing.T) {
	m := New("HACK2026")

	assert.Equal(t, "HACK2026-001", m.TeamID(1))
	assert.Equal(t, "HACK2026-042", m.TeamID(42))
	assert.Equal(t, "HACK2026-1000", m.TeamID(1000))
}

func TestMint_TeamCode(t *testing.T) {
	m := New("HACK2026")
	pattern := regexp.MustCompile(`^TEAM-[A-Z0-9]{6}$`)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := m.TeamCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}

	// 36^6 space: 200 draws colliding would mean a broken generator.
	assert.Greater(t, len(seen), 190)
}

func TestMint_ParticipantID(t *testing.T) {
	m := New("HACK2026")

	assert.Equal(t, "TEAM-K9X2V5-000", m.ParticipantID("TEAM-K9X2V5", 0))
	assert.Equal(t, "TEAM-K9X2V5-012", m.ParticipantID("TEAM-K9X2V5", 12))
}

func TestMint_AccessKey(t *testing.T) {
	m := New("HACK2026")

	key, err := m.AccessKey()
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Za-z0-9]{10}$`, key)
}

func TestMint_OTP(t *testing.T) {
	m := New("HACK2026")

	for i := 0; i < 100; i++ {
		code, err := m.OTP()
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
	}
}
