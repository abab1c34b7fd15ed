package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/conductorhq/conductor/pkg/apierr"
)

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// abortWithError maps err to its apierr.Kind's canonical status code and
// writes the JSON error body, aborting the gin handler chain. Unclassified
// errors are logged at Error level before being flattened to a generic
// "internal server error" message, so internal details never leak to a
// caller.
func abortWithError(c *gin.Context, err error) {
	kind := apierr.KindOf(err)
	status := apierr.StatusCode(kind)

	msg := err.Error()
	if kind == apierr.Internal {
		slog.Error("unhandled api error", "error", err)
		msg = "internal server error"
	}

	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
