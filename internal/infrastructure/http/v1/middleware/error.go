package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"invencare/internal/core/apperror"
	appctx "invencare/internal/core/context"
	"invencare/internal/infrastructure/idempotency"
	"invencare/pkg/logger"
)

// Context keys shared by the idempotency middleware and the handlers.
const (
	ContextIdempotencyKey   = "idempotency_key"
	ContextIdempotencyStore = "idempotency_store"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		writeError(c, c.Errors.Last().Err)
	}
}

// writeError renders err as the API error body and releases the request's
// idempotency key, if any, with the same response.
func writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	status := http.StatusInternalServerError
	var body gin.H

	if appErr, ok := apperror.AsAppError(err); ok {
		if appErr.Err != nil {
			logger.Error(ctx, "request error",
				"code", appErr.Code,
				"cause", appErr.Err,
			)
		}
		status = appErr.HTTPStatus
		body = gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		}
	} else {
		logger.Error(ctx, "unhandled error", "error", err)
		body = gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{
				"request_id": appctx.GetRequestID(ctx),
			},
		}
	}

	failIdempotencyKey(c, status, body)
	c.AbortWithStatusJSON(status, body)
}

// failIdempotencyKey stores the error response so a retry with the same key
// replays it. Best-effort.
func failIdempotencyKey(c *gin.Context, status int, body gin.H) {
	key := c.GetString(ContextIdempotencyKey)
	if key == "" {
		return
	}
	v, ok := c.Get(ContextIdempotencyStore)
	if !ok {
		return
	}
	store, ok := v.(idempotency.Store)
	if !ok || store == nil {
		return
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return
	}
	if err := store.FailKey(c.Request.Context(), key, status, "application/json", payload); err != nil {
		logger.Warn(c.Request.Context(), "failed to store idempotency failure", "key", key, "error", err)
	}
}
