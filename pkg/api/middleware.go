package api

import (
	"github.com/gin-gonic/gin"

	"github.com/conductorhq/conductor/pkg/models"
)

const ctxAPIKeyKey = "api_key"

// securityHeaders sets standard security response headers on every
// response, grounded on the teacher's echo securityHeaders middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Next()
	}
}

// apiKeyAuth validates the X-API-Key header via the credential store and
// stashes the resolved ApiKey in the gin context for downstream handlers.
// A missing or invalid key aborts the request with the apierr-mapped
// status before any handler runs.
func (s *Server) apiKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-API-Key")
		key, err := s.credStore.Validate(c.Request.Context(), raw)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(ctxAPIKeyKey, key)
		c.Next()
	}
}

func apiKeyFromContext(c *gin.Context) *models.ApiKey {
	v, ok := c.Get(ctxAPIKeyKey)
	if !ok {
		return nil
	}
	key, _ := v.(*models.ApiKey)
	return key
}
