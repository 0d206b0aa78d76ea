package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func CORS(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", HeaderRefreshToken},
		ExposeHeaders: []string{"Content-Length", HeaderAccessToken, HeaderRefreshToken, HeaderSessionExpired},
		MaxAge:        12 * time.Hour,
	}
	if allowsAll(allowedOrigins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

func allowsAll(allowedOrigins []string) bool {
	return len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*")
}

// OriginAllowed reports whether a browser origin may use the API under the
// same rules CORS applies. Requests without an Origin header are not from a
// browser and pass.
func OriginAllowed(allowedOrigins []string, origin string) bool {
	if origin == "" || allowsAll(allowedOrigins) {
		return true
	}
	for _, o := range allowedOrigins {
		if strings.EqualFold(strings.TrimSuffix(o, "/"), origin) {
			return true
		}
	}
	return false
}
