package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/pkg/auth"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

const contextIdentity = "identity"

// Identity is the authenticated staff member behind a request.
type Identity struct {
	StaffID uuid.UUID
	UserID  uuid.UUID
	Role    auth.Role
}

type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	tokens TokenValidator
}

func NewAuthMiddleware(tokens TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the bearer token and stores the caller's Identity.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, apperrors.Unauthorized(nil))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abort(c, apperrors.BadRequest("invalid authorization format", nil))
			return
		}

		claims, err := m.tokens.Validate(parts[1])
		if err != nil {
			abort(c, apperrors.Unauthorized(err))
			return
		}

		c.Set(contextIdentity, Identity{StaffID: claims.StaffID, UserID: claims.UserID, Role: claims.Role})
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			abort(c, apperrors.Unauthorized(nil))
			return
		}
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		abort(c, apperrors.Forbidden("permission denied"))
	}
}

func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(contextIdentity)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// SetIdentity is used by tests and alternative authenticators.
func SetIdentity(c *gin.Context, id Identity) {
	c.Set(contextIdentity, id)
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
