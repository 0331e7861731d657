package middleware

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
	appCtx "github.com/baechuer/real-time-ressys/services/oauth-service/internal/pkg/context"
)

func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id := appCtx.GetIdentity(ctx)
	return id, id.Authenticated()
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	uid := appCtx.GetIdentity(ctx).UserID()
	return uid, uid != ""
}
