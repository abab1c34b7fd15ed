package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/conductorhq/conductor/pkg/apierr"
	"github.com/conductorhq/conductor/pkg/credentials"
	"github.com/conductorhq/conductor/pkg/ratelimit"
)

const scopeWorkflowsExecute = "workflows:execute"

// executeWorkflowHandler implements POST /execute/{workflow_id} (C11):
// validate scope, load the workflow scoped to the key's owner (cross-
// tenant lookups return not-found, never forbidden), reject inactive
// workflows, consult the rate limiter, enqueue, and report the remaining
// budget back to the caller.
func (s *Server) executeWorkflowHandler(c *gin.Context) {
	key := apiKeyFromContext(c)

	if err := credentials.RequireScope(key, scopeWorkflowsExecute); err != nil {
		abortWithError(c, err)
		return
	}

	workflowID := c.Param("workflow_id")
	wf, err := s.db.Workflows.GetByID(c.Request.Context(), key.UserID, workflowID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !wf.IsActive {
		abortWithError(c, apierr.New(apierr.InvalidInput, "workflow is not active"))
		return
	}

	limit := key.RateLimit
	allowed, remaining, err := s.limiter.Check(c.Request.Context(), ratelimit.KeyForAPIKey(key.ID), limit, s.cfg.RateLimit.DefaultWindow)
	if err != nil {
		abortWithError(c, fmt.Errorf("checking rate limit: %w", err))
		return
	}
	if !allowed {
		abortWithError(c, apierr.New(apierr.RateLimited, "rate limit exceeded"))
		return
	}

	var callerPayload map[string]any
	if c.Request.ContentLength != 0 {
		if err := json.NewDecoder(c.Request.Body).Decode(&callerPayload); err != nil {
			callerPayload = map[string]any{}
		}
	}
	if callerPayload == nil {
		callerPayload = map[string]any{}
	}

	triggerData := map[string]any{"trigger_type": "api", "api_key_id": key.ID}
	for k, v := range callerPayload {
		triggerData[k] = v
	}

	taskID := uuid.NewString()
	if err := s.db.Executions.Create(c.Request.Context(), wf.ID, taskID, triggerData); err != nil {
		abortWithError(c, fmt.Errorf("enqueueing execution: %w", err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":              "accepted",
		"task_id":             taskID,
		"workflow_id":         wf.ID,
		"rate_limit_remaining": remaining,
	})
}
