package context

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

const identityKey contextKey = "identity"

// WithIdentity stores the identity a rememberer resolved for the request.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the request identity, or nil when anonymous.
func GetIdentity(ctx context.Context) domain.Identity {
	if ctx == nil {
		return nil
	}
	id, _ := ctx.Value(identityKey).(domain.Identity)
	return id
}
