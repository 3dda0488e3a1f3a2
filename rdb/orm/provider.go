package orm

import "context"

// ActorProvider 当前操作者的身份，只有数值类型的 id 会写入 inserted_by/updated_by
type ActorProvider interface {
	CurrentActorID(ctx context.Context) (any, bool)
}

type ActorProviderFunc func(ctx context.Context) (any, bool)

func (f ActorProviderFunc) CurrentActorID(ctx context.Context) (any, bool) {
	return f(ctx)
}

// RequestProvider 当前请求的客户端地址
type RequestProvider interface {
	CurrentClientAddress(ctx context.Context) string
}

type RequestProviderFunc func(ctx context.Context) string

func (f RequestProviderFunc) CurrentClientAddress(ctx context.Context) string {
	return f(ctx)
}

type actorKey struct{}
type clientAddressKey struct{}

// WithActor 在 context 中携带操作者 id
func WithActor(ctx context.Context, id any) context.Context {
	return context.WithValue(ctx, actorKey{}, id)
}

// WithClientAddress 在 context 中携带客户端地址
func WithClientAddress(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, clientAddressKey{}, addr)
}

// ContextActorProvider 从 context 中读取 WithActor 设置的操作者
type ContextActorProvider struct{}

func (ContextActorProvider) CurrentActorID(ctx context.Context) (any, bool) {
	v := ctx.Value(actorKey{})
	return v, v != nil
}

// ContextRequestProvider 从 context 中读取 WithClientAddress 设置的地址
type ContextRequestProvider struct{}

func (ContextRequestProvider) CurrentClientAddress(ctx context.Context) string {
	addr, _ := ctx.Value(clientAddressKey{}).(string)
	return addr
}
