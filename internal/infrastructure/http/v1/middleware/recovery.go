// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"invencare/internal/core/apperror"
	appctx "invencare/internal/core/context"
	"invencare/pkg/logger"
)

// Recovery turns a panic in any later handler into a 500 INTERNAL_ERROR
// response. The stack goes to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := c.Request.Context()
			logger.Error(ctx, "handler panicked",
				"route", c.Request.Method+" "+c.FullPath(),
				"user_id", appctx.GetUserID(ctx),
				"panic", rec,
				"stack", string(debug.Stack()),
			)

			err := apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
				WithDetail("request_id", appctx.GetRequestID(ctx))
			if c.Writer.Written() {
				c.Abort()
				return
			}
			writeError(c, err)
		}()
		c.Next()
	}
}
