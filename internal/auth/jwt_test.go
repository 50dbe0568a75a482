package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func newTestCodec(t *testing.T) (*Codec, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := NewCodec("test-secret", clock.Now)
	require.NoError(t, err)
	return codec, clock
}

func TestCodecRoundTripAllRoles(t *testing.T) {
	codec, clock := newTestCodec(t)

	for _, role := range Roles {
		token, issued, err := codec.Issue(role, "subject-"+string(role))
		require.NoError(t, err)

		got, err := codec.Verify(token)
		require.NoError(t, err, "role %s", role)
		assert.Equal(t, issued.Role, got.Role)
		assert.Equal(t, issued.SubjectID, got.SubjectID)
		assert.Equal(t, role, got.Role)
		assert.Equal(t, "subject-"+string(role), got.SubjectID)
		assert.True(t, clock.t.Equal(got.IssuedAt), "issued at %s", got.IssuedAt)
		assert.True(t, clock.t.Add(TokenTTL).Equal(got.ExpiresAt), "expires at %s", got.ExpiresAt)
	}
}

func TestCodecExpiry(t *testing.T) {
	codec, clock := newTestCodec(t)
	token, _, err := codec.Issue(RoleTeacher, "t-1")
	require.NoError(t, err)

	clock.t = clock.t.Add(TokenTTL - time.Second)
	_, err = codec.Verify(token)
	require.NoError(t, err, "token must verify until the expiry instant")

	clock.t = clock.t.Add(2 * time.Second)
	_, err = codec.Verify(token)
	require.ErrorIs(t, err, ErrExpiredToken)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestCodecRejectsForeignSecret(t *testing.T) {
	codec, clock := newTestCodec(t)
	other, err := NewCodec("another-secret", clock.Now)
	require.NoError(t, err)

	token, _, err := other.Issue(RoleAdmin, "a-1")
	require.NoError(t, err)

	_, err = codec.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodecTamperedBytes(t *testing.T) {
	codec, _ := newTestCodec(t)
	token, _, err := codec.Issue(RoleParent, "p-1")
	require.NoError(t, err)

	for i := range token {
		if token[i] == '.' {
			continue
		}
		replacement := byte('A')
		if token[i] == 'A' {
			replacement = 'B'
		}
		tampered := token[:i] + string(replacement) + token[i+1:]

		_, err := codec.Verify(tampered)
		require.Error(t, err, "byte %d", i)
		assert.True(t,
			errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrMalformedToken),
			"byte %d: unexpected reason %v", i, err)
	}
}

func TestCodecMalformed(t *testing.T) {
	codec, _ := newTestCodec(t)

	for _, raw := range []string{"", "abc", "a.b", "not.a.jwt", strings.Repeat("x", 40)} {
		_, err := codec.Verify(raw)
		require.ErrorIs(t, err, ErrMalformedToken, "input %q", raw)
	}
}

func TestCodecRejectsOtherAlgorithms(t *testing.T) {
	codec, clock := newTestCodec(t)
	claims := Claims{
		Role:   RoleAdmin,
		UserID: "a-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = codec.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodecRequiresRoleAndSubject(t *testing.T) {
	codec, clock := newTestCodec(t)
	claims := Claims{
		Role:   Role("janitor"),
		UserID: "x",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = codec.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = codec.Issue(Role("janitor"), "x")
	require.Error(t, err)
	_, _, err = codec.Issue(RoleAdmin, "")
	require.Error(t, err)
}

func TestNewCodecRequiresSecret(t *testing.T) {
	_, err := NewCodec("", nil)
	require.Error(t, err)
}
