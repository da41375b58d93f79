// Package tenantctx carries the resolved tenant account through the
// request context. The resolver stores only the account id; handlers
// re-read the record when they need fresh fields.
package tenantctx

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type accountKey struct{}

// WithAccountID stores the resolved account id in the context.
func WithAccountID(ctx context.Context, id snowflake.ID) context.Context {
	return context.WithValue(ctx, accountKey{}, id)
}

// AccountIDFromContext returns the resolved account id, if any.
func AccountIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(accountKey{}).(snowflake.ID)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}
