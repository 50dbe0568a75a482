package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the fixed lifetime of every issued token.
const TokenTTL = time.Hour

var (
	ErrMalformedToken = errors.New("auth: malformed token")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrExpiredToken   = errors.New("auth: token expired")
)

// Claims represents JWT payload.
type Claims struct {
	Role   Role   `json:"role"`
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Identity is the decoded principal attached to a request.
type Identity struct {
	SubjectID string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec signs and verifies HS256 bearer tokens with a server-held secret.
type Codec struct {
	key []byte
	now func() time.Time
}

// NewCodec creates a codec. A nil clock defaults to time.Now.
func NewCodec(secret string, now func() time.Time) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret required")
	}
	if now == nil {
		now = time.Now
	}
	return &Codec{key: []byte(secret), now: now}, nil
}

// Issue mints a token for the given role and subject id.
func (c *Codec) Issue(role Role, subjectID string) (string, Identity, error) {
	if !role.Valid() {
		return "", Identity{}, fmt.Errorf("auth: cannot issue token for role %q", role)
	}
	if subjectID == "" {
		return "", Identity{}, errors.New("auth: subject id required")
	}
	issued := c.now().UTC()
	claims := Claims{
		Role:   role,
		UserID: subjectID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(TokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", Identity{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return token, claims.identity(), nil
}

// Verify validates a token and returns the identity it carries.
// Failures wrap exactly one of ErrMalformedToken, ErrInvalidToken or ErrExpiredToken.
func (c *Codec) Verify(tokenStr string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return c.key, nil
	},
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return Identity{}, classify(err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if !claims.Role.Valid() || claims.UserID == "" {
		return Identity{}, fmt.Errorf("%w: incomplete claims", ErrInvalidToken)
	}
	return claims.identity(), nil
}

func (c Claims) identity() Identity {
	id := Identity{SubjectID: c.UserID, Role: c.Role}
	if c.IssuedAt != nil {
		id.IssuedAt = c.IssuedAt.Time.UTC()
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return id
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}
