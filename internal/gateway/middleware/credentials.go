package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bookletku/internal/gateway"
	"bookletku/internal/platform"
	"bookletku/internal/session"
	"bookletku/internal/utils"
)

const (
	HeaderRefreshToken   = "X-Refresh-Token"
	HeaderAccessToken    = "X-Access-Token"
	HeaderSessionExpired = "X-Session-Expired"

	callKey   = "call"
	userIDKey = "userId"
	roleKey   = "role"
)

// Credentials reads the caller's tokens and makes every gateway call of the
// request run with them.
func Credentials(auth platform.Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		access := BearerToken(c.GetHeader("Authorization"))
		refresh := strings.TrimSpace(c.GetHeader(HeaderRefreshToken))

		call := session.NewCall(auth, access, refresh)
		c.Set(callKey, call)
		c.Request = c.Request.WithContext(gateway.WithCaller(c.Request.Context(), call))

		if access != "" {
			if claims, err := utils.UnverifiedClaims(access); err == nil {
				c.Set(userIDKey, claims.UserID)
				c.Set(roleKey, claims.Role)
			}
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a readable access token. The token
// is not verified here; the platform does that on every call.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "missing or malformed access token",
			})
			return
		}
		c.Next()
	}
}

func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// Call returns the request's credentials, or nil outside Credentials.
func Call(c *gin.Context) *session.Call {
	v, ok := c.Get(callKey)
	if !ok {
		return nil
	}
	call, _ := v.(*session.Call)
	return call
}

func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// Role is the role claimed by the access token. It is only a hint for the
// UI; the platform enforces roles itself.
func Role(c *gin.Context) string {
	return c.GetString(roleKey)
}
