package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// wsUpgrader upgrades HTTP connections to WebSocket. Origin checking is
// left permissive here (conductor is typically deployed behind an
// API-gateway that already restricts origins); CheckOrigin is still
// explicit so the gorilla default (same-origin only) doesn't silently
// reject legitimate cross-origin dashboards.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocketHandler upgrades GET /api/v1/ws to a WebSocket connection and
// hands it to the ConnectionManager for the lifetime of the socket.
// Authentication mirrors apiKeyAuth but reads the key from a query
// parameter since browser WebSocket clients cannot set custom headers.
func (s *Server) websocketHandler(c *gin.Context) {
	if s.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event streaming is not enabled"})
		return
	}

	raw := c.Query("api_key")
	if raw == "" {
		raw = c.GetHeader("X-API-Key")
	}
	if _, err := s.credStore.Validate(c.Request.Context(), raw); err != nil {
		abortWithError(c, err)
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.events.HandleConnection(c.Request.Context(), conn)
}
