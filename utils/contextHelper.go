package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/spm_backend/appctx"
)

// The correlation id is the only value the request context carries; caller
// identity travels as an explicit models.Actor argument.

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyCorrelationId, correlationId)
}
