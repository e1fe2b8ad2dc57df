package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims identifies the calling service. The reporting bot is the only
// expected client; ServiceID names it and Role gates the moderation
// endpoints.
type Claims struct {
	ServiceID string `json:"serviceId"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

type Manager struct {
	secretKey string
	duration  time.Duration
}

// NewManager creates a token manager.
func NewManager(secretKey string, duration time.Duration) *Manager {
	return &Manager{
		secretKey: secretKey,
		duration:  duration,
	}
}

// Generate issues a signed token for a service.
func (m *Manager) Generate(serviceID, role string) (string, error) {
	claims := Claims{
		ServiceID: serviceID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secretKey))
}

// Verify validates a token and extracts its claims.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return []byte(m.secretKey), nil
		},
	)

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiredToken
	}

	return claims, nil
}
