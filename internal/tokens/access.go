package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const MinSecretLen = 32

// ErrInvalidToken is the only error Verify returns; the cause is not exposed.
var ErrInvalidToken = errors.New("invalid token")

type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Identity struct {
	UserID uint
	Role   string
}

// Signer issues and verifies HS256 access tokens. It is safe for concurrent use.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret []byte, issuer string, ttl time.Duration) (*Signer, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLen)
	}
	if ttl <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Signer{secret: key, issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy of s that reads time from now.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	cp := *s
	cp.now = now
	return &cp
}

func (s *Signer) Issue(userID uint, role string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (s *Signer) Verify(tokenStr string) (Identity, error) {
	claims, err := s.Claims(tokenStr)
	if err != nil {
		return Identity{}, err
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 || claims.Role == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: uint(id), Role: claims.Role}, nil
}

func (s *Signer) Claims(tokenStr string) (*AccessClaims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
