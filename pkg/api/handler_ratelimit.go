package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/conductorhq/conductor/pkg/ratelimit"
)

// rateLimitStatusHandler implements GET /api-trigger/rate-limit (spec.md
// §6's canonical path) and its additive alias GET
// /api/v1/rate-limit/status: the read-only remaining-budget check, backed
// by RateLimiter.Remaining so that polling never itself consumes budget.
func (s *Server) rateLimitStatusHandler(c *gin.Context) {
	key := apiKeyFromContext(c)

	remaining, err := s.limiter.Remaining(c.Request.Context(), ratelimit.KeyForAPIKey(key.ID), key.RateLimit, s.cfg.RateLimit.DefaultWindow)
	if err != nil {
		abortWithError(c, fmt.Errorf("checking rate limit: %w", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"limit":     key.RateLimit,
		"remaining": remaining,
	})
}
