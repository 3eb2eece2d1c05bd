package models

import "context"

type actorKey struct{}

// WithActor 把当前操作者写入 context，钩子里据此记录编辑人
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFromContext 取出当前操作者，没有时返回 nil
func ActorFromContext(ctx context.Context) *string {
	if ctx == nil {
		return nil
	}
	if id, ok := ctx.Value(actorKey{}).(string); ok && id != "" {
		return &id
	}
	return nil
}
