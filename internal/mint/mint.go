// Package mint issues the identifier hierarchy: sequential team ids, random
// team codes, deterministic participant ids, and access keys.
package mint

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	teamCodePrefix   = "TEAM-"
	teamCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	teamCodeLength   = 6

	accessKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	accessKeyLength   = 10

	otpLength = 6
)

// CodeRetryBudget bounds regeneration attempts when a freshly minted team
// code collides with a committed one.
const CodeRetryBudget = 8

type Mint struct {
	prefix string
	width  int
}

func New(prefix string) *Mint {
	return &Mint{prefix: prefix, width: 3}
}

// TeamID formats the sequential team id, e.g. HACK2026-001. The sequence
// number is owned by the caller's insert transaction; the unique index on
// team_id rejects the losing side of a race.
func (m *Mint) TeamID(seq int) string {
	return fmt.Sprintf("%s-%0*d", m.prefix, m.width, seq)
}

// TeamCode returns TEAM- followed by 6 uniform characters from [A-Z0-9].
func (m *Mint) TeamCode() (string, error) {
	code, err := randomString(teamCodeAlphabet, teamCodeLength)
	if err != nil {
		return "", err
	}
	return teamCodePrefix + code, nil
}

// ParticipantID derives the per-member id from the team code and the 0-based
// member index. No randomness: uniqueness follows from team code uniqueness.
func (m *Mint) ParticipantID(teamCode string, index int) string {
	return fmt.Sprintf("%s-%03d", teamCode, index)
}

// AccessKey returns a 10-character mixed-case alphanumeric secret. Uniqueness
// is not required; it is only ever checked alongside a team id.
func (m *Mint) AccessKey() (string, error) {
	return randomString(accessKeyAlphabet, accessKeyLength)
}

// OTP returns a uniform 6-digit decimal string, leading zeros included.
func (m *Mint) OTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpLength, n), nil
}

func randomString(alphabet string, length int) (string, error) {
	out := make([]byte, length)
	size := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
