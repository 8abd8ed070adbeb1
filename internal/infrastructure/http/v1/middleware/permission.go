package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"

	"invencare/internal/core/apperror"
	appctx "invencare/internal/core/context"
)

// Permissions checked by the routes.
const (
	PermTransactionsRead  = "transactions:read"
	PermTransactionsWrite = "transactions:write"
	PermTransactionsVoid  = "transactions:void"
	PermProductsRead      = "products:read"
)

// RequirePermission middleware checks if user has required permission.
// Admins automatically have all permissions. Without an authenticated user
// (auth disabled) the check is skipped.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil || user.IsAdmin {
			c.Next()
			return
		}

		if !slices.Contains(getUserPermissions(c), permission) {
			_ = c.Error(
				apperror.NewForbidden("insufficient permissions").
					WithDetail("required_permission", permission),
			)
			c.Abort()
			return
		}

		c.Next()
	}
}

// getUserPermissions extracts permissions stored by the Auth middleware.
func getUserPermissions(c *gin.Context) []string {
	if perms, exists := c.Get("permissions"); exists {
		if p, ok := perms.([]string); ok {
			return p
		}
	}
	return nil
}
