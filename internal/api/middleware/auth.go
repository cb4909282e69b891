package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-booking/internal/auth"
	"github.com/gocomet/ride-booking/internal/domain/driver"
	"github.com/gocomet/ride-booking/internal/domain/user"
	"github.com/gocomet/ride-booking/pkg/errors"
	"github.com/gocomet/ride-booking/pkg/response"
)

const (
	contextUserKey   = "current_user"
	contextDriverKey = "current_driver"
)

// Auth guards routes with JWT verification and role checks.
type Auth struct {
	tokens  *auth.TokenManager
	users   user.Repository
	drivers driver.Repository
}

// NewAuth creates the auth middleware set.
func NewAuth(tokens *auth.TokenManager, users user.Repository, drivers driver.Repository) *Auth {
	return &Auth{tokens: tokens, users: users, drivers: drivers}
}

// Authenticate verifies the bearer token, loads the account and stores it in
// the request context. Blocked and deactivated accounts are rejected even
// with a valid token.
func (a *Auth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, errors.Unauthorized("Authorization header required", nil))
			return
		}

		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			abort(c, errors.Unauthorized("Bearer token required", nil))
			return
		}

		claims, err := a.tokens.Verify(token)
		if err != nil {
			abort(c, errors.Unauthorized("Invalid or expired token", err))
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			abort(c, errors.Unauthorized("Invalid token subject", err))
			return
		}

		u, err := a.users.GetByID(c.Request.Context(), userID)
		if err != nil {
			abort(c, errors.Unauthorized("Account not found", err))
			return
		}
		if !u.CanAuthenticate() {
			abort(c, errors.ErrAccountBlocked)
			return
		}

		c.Set(contextUserKey, u)
		c.Next()
	}
}

// RequireRole restricts a route to the given roles. Must run after
// Authenticate.
func (a *Auth) RequireRole(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			abort(c, errors.Unauthorized("Authentication required", nil))
			return
		}
		for _, role := range roles {
			if u.Role == role {
				c.Next()
				return
			}
		}
		abort(c, errors.Forbidden("Insufficient permissions", nil))
	}
}

// RequireApprovedDriver loads the driver profile and rejects unapproved
// drivers. Must run after Authenticate with a driver-role user.
func (a *Auth) RequireApprovedDriver() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			abort(c, errors.Unauthorized("Authentication required", nil))
			return
		}

		d, err := a.drivers.GetByUserID(c.Request.Context(), u.ID)
		if err != nil {
			abort(c, err)
			return
		}
		if d.ApprovalStatus != driver.ApprovalApproved {
			abort(c, errors.ErrDriverNotApproved)
			return
		}

		c.Set(contextDriverKey, d)
		c.Next()
	}
}

// CurrentUser returns the authenticated user from the gin context.
func CurrentUser(c *gin.Context) *user.User {
	if v, ok := c.Get(contextUserKey); ok {
		if u, ok := v.(*user.User); ok {
			return u
		}
	}
	return nil
}

// CurrentDriver returns the loaded driver profile from the gin context.
func CurrentDriver(c *gin.Context) *driver.Driver {
	if v, ok := c.Get(contextDriverKey); ok {
		if d, ok := v.(*driver.Driver); ok {
			return d
		}
	}
	return nil
}

func abort(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}
