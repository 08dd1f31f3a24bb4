// Package auth issues and verifies the admin bearer tokens guarding the
// dashboard endpoints.
package auth

import (
	"crypto/subtle"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidToken         = errors.New("invalid token")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
	ErrDisabled             = errors.New("admin login disabled")
)

const tokenTTL = time.Hour

type TokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret       []byte
	username     string
	passwordHash string
}

// NewManager builds the admin authenticator. An empty password hash
// disables login entirely.
func NewManager(secret, username, passwordHash string) *Manager {
	return &Manager{
		secret:       []byte(secret),
		username:     username,
		passwordHash: passwordHash,
	}
}

// Login checks the credentials and returns a signed HS256 token.
func (m *Manager) Login(username, password string) (string, error) {
	if m.passwordHash == "" {
		return "", ErrDisabled
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) != 1 {
		return "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(m.passwordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	claims := TokenClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// VerifyToken parses and validates a bearer token.
func (m *Manager) VerifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Wrapf(ErrInvalidSigningMethod, "%v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
