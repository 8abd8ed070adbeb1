package context

import (
	"context"
	"slices"
)

// UserContext is the identity resolved by the external identity provider.
// The ledger trusts it as given.
type UserContext struct {
	UserID      string
	Name        string
	Roles       []string
	Permissions []string
	StoreIDs    []string // stores the user may record against; empty with IsAdmin means all
	IsAdmin     bool
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	return u != nil && slices.Contains(u.Roles, role)
}

// HasStoreAccess reports whether the user may act on storeID.
// Anonymous contexts (auth disabled) are not restricted.
func HasStoreAccess(ctx context.Context, storeID string) bool {
	u := GetUser(ctx)
	if u == nil || u.IsAdmin {
		return true
	}
	return slices.Contains(u.StoreIDs, storeID)
}
