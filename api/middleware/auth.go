package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/scrapedeck/models"
)

// identityKey is the context key under which Auth stores the caller's API key.
const identityKey = "api_key"

// Auth returns API-key authentication middleware.
//
// Accepted headers:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// With no keys configured every request passes.
func Auth(apiKeys []string) gin.HandlerFunc {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys[k] = struct{}{}
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := requestKey(c)
		switch _, known := keys[key]; {
		case key == "":
			abort(c, http.StatusUnauthorized, models.ErrCodeUnauthorized,
				"missing API key: send X-API-Key or Authorization: Bearer <key>")
		case !known:
			abort(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid API key")
		default:
			c.Set(identityKey, key)
			c.Next()
		}
	}
}

func requestKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	auth := c.GetHeader("Authorization")
	if key, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(key)
	}
	return ""
}
