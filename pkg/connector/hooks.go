package connector

import (
	"context"
	"time"
)

// Hooks is implemented by every concrete connector. The facade decides when a
// hook runs and which registry lock is held around it; the hook only talks to
// the managed resource.
//
// Hooks are invoked while the owning registry's lock is held and must not call
// back into the same Connector.
type Hooks interface {
	// ConnectAttributeCore builds metadata for a back-end attribute. A nil
	// metadata with a nil error means the back end has no such attribute.
	ConnectAttributeCore(ctx context.Context, name string, options Options) (*AttributeMetadata, error)

	// GetAttributeValue reads the attribute within timeout. When the value is
	// unavailable it returns defaultValue unchanged.
	GetAttributeValue(ctx context.Context, md *AttributeMetadata, timeout time.Duration, defaultValue any) (any, error)

	// SetAttributeValue writes the attribute within timeout and reports success.
	SetAttributeValue(ctx context.Context, md *AttributeMetadata, timeout time.Duration, value any) (bool, error)

	// DisconnectAttributeCore releases back-end resources held for id.
	DisconnectAttributeCore(ctx context.Context, id string, md *AttributeMetadata) bool

	// EnableNotificationsCore builds metadata for a notification category. A
	// nil metadata with a nil error means the category is not supported.
	EnableNotificationsCore(ctx context.Context, category string, options Options) (*NotificationMetadata, error)

	// DisableNotificationsCore stops the back-end source of md.
	DisableNotificationsCore(ctx context.Context, md *NotificationMetadata)

	// SubscribeCore attaches listener to the back-end source and returns
	// opaque user data handed back to UnsubscribeCore.
	SubscribeCore(ctx context.Context, md *NotificationMetadata, listener Listener) (any, error)

	// UnsubscribeCore detaches listener from the back-end source.
	UnsubscribeCore(ctx context.Context, md *NotificationMetadata, listener Listener, userData any)
}

// ActionInvoker is implemented by connectors that expose operations.
type ActionInvoker interface {
	InvokeActionCore(ctx context.Context, name string, args map[string]any, timeout time.Duration) (any, error)
}

// ResourceCloser is implemented by connectors holding back-end resources that
// must be released when the facade closes.
type ResourceCloser interface {
	CloseResource(ctx context.Context) error
}

// BaseHooks provides no-op notification hooks for attribute-only connectors.
// Embed it and implement the attribute hooks.
type BaseHooks struct{}

// EnableNotificationsCore reports every category as unsupported.
func (BaseHooks) EnableNotificationsCore(context.Context, string, Options) (*NotificationMetadata, error) {
	return nil, nil
}

// DisableNotificationsCore does nothing.
func (BaseHooks) DisableNotificationsCore(context.Context, *NotificationMetadata) {}

// SubscribeCore accepts every listener without back-end bookkeeping.
func (BaseHooks) SubscribeCore(context.Context, *NotificationMetadata, Listener) (any, error) {
	return nil, nil
}

// UnsubscribeCore does nothing.
func (BaseHooks) UnsubscribeCore(context.Context, *NotificationMetadata, Listener, any) {}
