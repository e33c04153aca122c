package access

import "context"

// PermissionProvider answers permission-node queries against an external
// authorization system. Implementations must be safe for concurrent use.
type PermissionProvider interface {
	HasPermission(ctx context.Context, identity, node string) (bool, error)
}

// ProviderFunc adapts a function to the PermissionProvider interface.
type ProviderFunc func(ctx context.Context, identity, node string) (bool, error)

func (f ProviderFunc) HasPermission(ctx context.Context, identity, node string) (bool, error) {
	return f(ctx, identity, node)
}
