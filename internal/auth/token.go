package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenManager issues and validates event keys: HS256 JWTs that let a publisher
// post events to the trigger endpoint.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a manager. A zero ttl issues keys without expiry.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Claims describes an event key payload. An empty Events list allows every event.
type Claims struct {
	Publisher string   `json:"pub"`
	Events    []string `json:"events,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs an event key for publisher, limited to eventNames if any are given.
func (tm *TokenManager) GenerateToken(publisher string, eventNames ...string) (string, time.Time, error) {
	now := time.Now()
	claims := &Claims{
		Publisher: publisher,
		Events:    eventNames,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  publisher,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	var expiresAt time.Time
	if tm.ttl != 0 {
		expiresAt = now.Add(tm.ttl)
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Publisher == "" {
		return nil, errors.New("token has no publisher")
	}
	return claims, nil
}
