package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Token is a signed session token.
type Token struct {
	Value     string    `json:"token"`
	SessionID string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims represents JWT payload.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 session tokens.
type Signer struct {
	Key    []byte
	Issuer string
	TTL    time.Duration
}

// NewSigner builds a Signer. A non-positive ttl defaults to one hour.
func NewSigner(key, issuer string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Signer{Key: []byte(key), Issuer: issuer, TTL: ttl}
}

// Issue starts a new session and returns its token.
func (s *Signer) Issue() (Token, error) {
	now := time.Now()
	exp := now.Add(s.TTL)
	sid := uuid.NewString()
	claims := Claims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.Issuer,
			Subject:   sid,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Key)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, SessionID: sid, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func (s *Signer) Parse(tokenStr string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.Key, nil
	})
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.SessionID == "" {
		return Claims{}, ErrInvalidToken
	}
	if s.Issuer != "" && claims.Issuer != s.Issuer {
		return Claims{}, errors.Join(ErrInvalidToken, errors.New("issuer mismatch"))
	}
	return *claims, nil
}
