// Package access decides whether a caller may act on a provider's records.
package access

import (
	"context"

	"github.com/md-rashed-zaman/apptdesk/libs/apperr"
)

// VerifyOwnership reports whether caller is the provider that owns the resource.
// An empty identity on either side never matches.
func VerifyOwnership(resourceProviderID, callerProviderID string) bool {
	return resourceProviderID != "" && resourceProviderID == callerProviderID
}

// Require returns Forbidden unless the caller owns the resource.
func Require(resourceProviderID, callerProviderID string) error {
	if !VerifyOwnership(resourceProviderID, callerProviderID) {
		return apperr.Forbidden("access denied")
	}
	return nil
}

type ctxKey struct{}

// Caller is the authenticated identity making a request.
type Caller struct {
	ProviderID string
	Subject    string
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxKey{}).(Caller)
	return c, ok && c.ProviderID != ""
}
