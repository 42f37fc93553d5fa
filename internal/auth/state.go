package auth

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// StateSigner produces and verifies the OAuth state parameter as a
// short-lived HS256 token carrying the chat identity. A forged or
// expired state never reaches the token store.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewStateSigner creates a signer with the given shared secret and
// state lifetime.
func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateSigner{secret: []byte(secret), ttl: ttl}
}

// Sign issues a state token for the given identity.
func (s *StateSigner) Sign(identity string) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"sub": identity,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
		"jti": uuid.New().String(),
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing state token: %w", err)
	}
	return signed, nil
}

// Verify checks a state token and returns the identity it was issued
// for. Any signature, expiry or claim failure maps to ErrInvalidState.
func (s *StateSigner) Verify(state string) (string, error) {
	token, err := jwtlib.Parse(state, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return s.secret, nil
	}, jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }))
	if err != nil || !token.Valid {
		return "", ErrInvalidState
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", ErrInvalidState
	}
	identity, _ := claims["sub"].(string)
	if identity == "" {
		return "", ErrInvalidState
	}
	return identity, nil
}
