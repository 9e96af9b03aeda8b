package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"ethioshop.com/app/internal/auth"
	"ethioshop.com/app/internal/shared/apperr"
)

const ctxKeyPrincipal = "principal"

// Authenticate reads an optional bearer token. A present but invalid token is
// rejected; an absent one leaves the request anonymous.
func Authenticate(signer *auth.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			c.Next()
			return
		}
		raw, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			Fail(c, apperr.UnauthorizedErr("Invalid authorization header."))
			return
		}
		p, err := signer.Parse(raw)
		if err != nil {
			Fail(c, apperr.UnauthorizedErr("Invalid or expired token.").WithCause(err))
			return
		}
		c.Set(ctxKeyPrincipal, p)
		c.Next()
	}
}

func CurrentPrincipal(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(ctxKeyPrincipal)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

// RequireAuth: 401 without an authenticated caller.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentPrincipal(c); !ok {
			Fail(c, apperr.UnauthorizedErr("Authentication required."))
			return
		}
		c.Next()
	}
}

// RequireRole: 401 without a caller, 403 when the caller holds none of roles.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			Fail(c, apperr.UnauthorizedErr("Authentication required."))
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		Fail(c, apperr.ForbiddenErr("Insufficient permissions."))
	}
}
