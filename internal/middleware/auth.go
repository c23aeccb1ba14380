package middleware

import (
	"context"
	stdErrors "errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/awards/internal/auditctx"
	"github.com/charlesng35/awards/internal/auth"
	"github.com/charlesng35/awards/internal/models"
	"github.com/charlesng35/awards/pkg/errors"
	"github.com/charlesng35/awards/pkg/response"
)

const (
	CtxUserKey      = "authUser"
	CtxUserIDKey    = "userID"
	CtxUserRoleKey  = "userRole"
	CtxSessionIDKey = "sessionID"
	CtxTokenKey     = "sessionToken"
)

// SessionResolver maps an opaque token to its user and session.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.User, *models.Session, error)
}

// Auth requires a valid session token, read from the Authorization bearer
// header or, failing that, from cookieName.
func Auth(sessions SessionResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c, cookieName)
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			return
		}

		user, session, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil && !stdErrors.Is(err, auth.ErrUnauthenticated) {
			response.Error(c, err)
			return
		}
		if err != nil || user == nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			return
		}

		c.Set(CtxUserKey, user)
		c.Set(CtxUserIDKey, user.ID)
		c.Set(CtxUserRoleKey, user.Role)
		c.Set(CtxTokenKey, token)
		if session != nil {
			c.Set(CtxSessionIDKey, session.ID)
		}

		ctx := auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			UserID:    user.ID,
			Role:      user.Role,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// SessionToken extracts the raw token from the request, if any.
func SessionToken(c *gin.Context, cookieName string) string {
	authz := c.GetHeader("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if cookieName == "" {
		return ""
	}
	if value, err := c.Cookie(cookieName); err == nil {
		return strings.TrimSpace(value)
	}
	return ""
}

// RequireRole rejects authenticated users whose role is not one of roles.
// It must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(CtxUserRoleKey)
		if role == "" {
			response.Error(c, errors.ErrUnauthorized)
			return
		}
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		response.Error(c, errors.ErrForbidden)
	}
}

// RequireSuperAdmin is RequireRole(models.RoleSuperAdmin).
func RequireSuperAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleSuperAdmin)
}
