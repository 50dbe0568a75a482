package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"emis/internal/metrics"
)

var (
	ErrNoToken         = errors.New("auth: no token provided")
	ErrMalformedHeader = errors.New("auth: malformed authorization header")
)

const identityKey = "identity"

type identityCtxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext returns the identity attached by the gate, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}

// CurrentIdentity returns the identity the gate stored on c.
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// BearerToken extracts the token from an Authorization header value.
// The value must be exactly "Bearer <token>".
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrNoToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrMalformedHeader
	}
	return parts[1], nil
}

// RejectionMessage renders a gate failure as the client-facing message.
func RejectionMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return "No token provided"
	case errors.Is(err, ErrMalformedHeader):
		return "Token format invalid"
	case errors.Is(err, ErrExpiredToken):
		return "Token expired"
	default:
		return "Invalid token"
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return "no_token"
	case errors.Is(err, ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, ErrExpiredToken):
		return "expired"
	default:
		return "invalid"
	}
}

// Gate enforces bearer tokens verified by codec and attaches the identity
// to both the gin context and the request context.
func Gate(codec *Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := BearerToken(c.GetHeader("Authorization"))
		if err == nil {
			var id Identity
			if id, err = codec.Verify(tokenStr); err == nil {
				c.Set(identityKey, id)
				c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
				c.Next()
				return
			}
		}
		metrics.TokenRejections.WithLabelValues(rejectionReason(err)).Inc()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"status":  "error",
			"message": RejectionMessage(err),
			"data":    nil,
		})
	}
}

// RequireRole admits only requests whose verified identity has exactly role.
// It must run after Gate.
func RequireRole(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok || id.Role != role {
			metrics.TokenRejections.WithLabelValues("forbidden").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"status":  "error",
				"message": "Access denied. " + role.Title() + " role required.",
				"data":    nil,
			})
			return
		}
		c.Next()
	}
}

func IsAdmin() gin.HandlerFunc        { return RequireRole(RoleAdmin) }
func IsDistrictHead() gin.HandlerFunc { return RequireRole(RoleDistrictHead) }
func IsSchool() gin.HandlerFunc       { return RequireRole(RolePrincipal) }
func IsTeacher() gin.HandlerFunc      { return RequireRole(RoleTeacher) }
func IsParent() gin.HandlerFunc       { return RequireRole(RoleParent) }
