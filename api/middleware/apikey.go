package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
)

type APIKeyConfig struct {
	HeaderName  string
	ValidAPIKey string
}

// APIKeyMiddleware rejects requests whose header does not carry the configured key.
// An empty configured key rejects everything.
func APIKeyMiddleware(config APIKeyConfig) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(config.ValidAPIKey))

	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader(config.HeaderName))
		if apiKey == "" {
			abortUnauthorized(c, "Missing API key")
			return
		}

		if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(apiKey), expected) != 1 {
			abortUnauthorized(c, "Invalid API key")
			return
		}

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, reason string) {
	if span := opentracing.SpanFromContext(c.Request.Context()); span != nil {
		span.LogKV("auth.rejected", reason)
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": reason})
}
