package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/conductorhq/conductor/pkg/apierr"
)

const webhookSignatureHeader = "X-Webhook-Signature"

// webhookHandler implements POST /webhooks/{path} (C10): look up the
// active WebhookTrigger by path, verify its HMAC signature when a secret
// is configured, parse the body as JSON (substituting an empty map on
// parse failure rather than rejecting the request), enqueue the job, and
// record the trigger's last-fired time.
func (s *Server) webhookHandler(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")

	trigger, err := s.db.WebhookTrigs.GetByPath(c.Request.Context(), path)
	if err != nil {
		abortWithError(c, err)
		return
	}

	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortWithError(c, apierr.Wrap(apierr.InvalidInput, "reading request body", err))
		return
	}

	if trigger.Secret != "" {
		if !verifyWebhookSignature(trigger.Secret, rawBody, c.GetHeader(webhookSignatureHeader)) {
			abortWithError(c, apierr.New(apierr.Unauthenticated, "invalid webhook signature"))
			return
		}
	}

	var body map[string]any
	if err := json.Unmarshal(rawBody, &body); err != nil {
		body = map[string]any{}
	}

	headers := make(map[string]string, len(c.Request.Header))
	for k, v := range c.Request.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	triggerData := map[string]any{
		"trigger_type": "webhook",
		"webhook_path": path,
		"headers":      headers,
		"body":         body,
	}

	taskID := uuid.NewString()
	if err := s.db.Executions.Create(c.Request.Context(), trigger.WorkflowID, taskID, triggerData); err != nil {
		abortWithError(c, fmt.Errorf("enqueueing execution: %w", err))
		return
	}

	if err := s.db.WebhookTrigs.RecordTrigger(c.Request.Context(), trigger.ID, time.Now().UTC()); err != nil {
		s.log.Warn("recording webhook trigger fire failed", "trigger_id", trigger.ID, "error", err)
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"task_id": taskID,
	})
}

// verifyWebhookSignature reports whether header matches
// "sha256=" + HEX(HMAC_SHA256(secret, body)), comparing in constant time.
func verifyWebhookSignature(secret string, body []byte, header string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	presented, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	return hmac.Equal(presented, expected)
}
