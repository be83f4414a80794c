package connector

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/resbridge/pkg/errors"
	"github.com/ajitpratap0/resbridge/pkg/logger"
	"github.com/ajitpratap0/resbridge/pkg/metrics"
	"github.com/ajitpratap0/resbridge/pkg/observability"
)

// state is shared by the facade and both registries.
type state struct {
	name    string
	closed  atomic.Bool
	logger  *zap.Logger
	metrics *metrics.Collector
	now     Clock
}

func (s *state) checkOpen() error {
	if s.closed.Load() {
		return errors.Closed(s.name)
	}
	return nil
}

// hookError keeps typed errors raised by a hook and wraps anything else as a
// connection failure.
func hookError(err error, msg string) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, msg)
}

// Option configures a Connector.
type Option func(*state)

// WithLogger overrides the logger. The default is the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *state) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the clock used to apportion batch timeouts.
func WithClock(now Clock) Option {
	return func(s *state) {
		if now != nil {
			s.now = now
		}
	}
}

// Connector is the facade front ends talk to.
type Connector struct {
	st            *state
	id            string
	hooks         Hooks
	attributes    *AttributeRegistry
	notifications *NotificationRegistry
}

// New creates an open connector named name around hooks.
func New(name string, hooks Hooks, opts ...Option) (*Connector, error) {
	if name == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "connector name is required")
	}
	if hooks == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "connector hooks are required")
	}

	st := &state{
		name:    name,
		metrics: metrics.NewCollector(name),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(st)
	}
	id := uuid.NewString()
	if st.logger == nil {
		st.logger = logger.Get()
	}
	st.logger = st.logger.With(zap.String("connector", name), zap.String("instance", id))

	return &Connector{
		st:            st,
		id:            id,
		hooks:         hooks,
		attributes:    newAttributeRegistry(st, hooks),
		notifications: newNotificationRegistry(st, hooks),
	}, nil
}

// Name returns the connector name.
func (c *Connector) Name() string { return c.st.name }

// InstanceID returns a unique id for this instance.
func (c *Connector) InstanceID() string { return c.id }

// IsClosed reports whether Close has been called.
func (c *Connector) IsClosed() bool { return c.st.closed.Load() }

// Attributes returns the attribute registry.
func (c *Connector) Attributes() *AttributeRegistry { return c.attributes }

// Notifications returns the notification registry.
func (c *Connector) Notifications() *NotificationRegistry { return c.notifications }

func (c *Connector) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx = context.WithValue(ctx, logger.ConnectorKey, c.st.name)
	ctx, span := observability.StartSpan(ctx, c.st.name, op, attrs...)
	return ctx, func(err error) {
		observability.EndSpan(span, err)
		c.st.metrics.RecordOperation(op, err)
	}
}

// ConnectAttribute registers id for the back-end attribute name.
func (c *Connector) ConnectAttribute(ctx context.Context, id, name string, options Options) (md *AttributeMetadata, err error) {
	ctx, end := c.begin(ctx, "connect_attribute", attribute.String("attribute.id", id))
	defer func() { end(err) }()
	return c.attributes.Connect(ctx, id, name, options)
}

// GetAttribute reads id. See AttributeRegistry.Get for the meaning of defaultValue.
func (c *Connector) GetAttribute(ctx context.Context, id string, timeout time.Duration, defaultValue any) (v any, err error) {
	ctx, end := c.begin(ctx, "get_attribute", attribute.String("attribute.id", id))
	defer func() { end(err) }()
	return c.attributes.Get(ctx, id, timeout, defaultValue)
}

// GetAttributes reads ids into output and returns the ids actually read.
func (c *Connector) GetAttributes(ctx context.Context, ids []string, output map[string]any, timeout time.Duration) (read []string, err error) {
	ctx, end := c.begin(ctx, "get_attributes", attribute.Int("attribute.count", len(ids)))
	defer func() { end(err) }()
	return c.attributes.GetMany(ctx, ids, output, timeout)
}

// SetAttribute writes id.
func (c *Connector) SetAttribute(ctx context.Context, id string, timeout time.Duration, value any) (ok bool, err error) {
	ctx, end := c.begin(ctx, "set_attribute", attribute.String("attribute.id", id))
	defer func() { end(err) }()
	return c.attributes.Set(ctx, id, timeout, value)
}

// SetAttributes writes every entry of values; see AttributeRegistry.SetMany.
func (c *Connector) SetAttributes(ctx context.Context, values map[string]any, timeout time.Duration) (ok bool, err error) {
	ctx, end := c.begin(ctx, "set_attributes", attribute.Int("attribute.count", len(values)))
	defer func() {
		if err == nil && !ok {
			c.st.metrics.RecordOutcome("set_attributes_partial", false)
		}
		end(err)
	}()
	return c.attributes.SetMany(ctx, values, timeout)
}

// DisconnectAttribute unregisters id.
func (c *Connector) DisconnectAttribute(ctx context.Context, id string) (ok bool, err error) {
	ctx, end := c.begin(ctx, "disconnect_attribute", attribute.String("attribute.id", id))
	defer func() { end(err) }()
	return c.attributes.Disconnect(ctx, id)
}

// GetAttributeInfo returns the metadata registered under id.
func (c *Connector) GetAttributeInfo(id string) (*AttributeMetadata, error) {
	return c.attributes.Info(id)
}

// ListRegisteredAttributes returns a snapshot of the registered attributes.
func (c *Connector) ListRegisteredAttributes() (map[string]*AttributeMetadata, error) {
	return c.attributes.List()
}

// Snapshot reads every readable registered attribute through the batch path.
func (c *Connector) Snapshot(ctx context.Context, timeout time.Duration) (map[string]any, error) {
	attrs, err := c.attributes.List()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(attrs))
	for id, md := range attrs {
		if md.CanRead() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make(map[string]any, len(ids))
	if _, err := c.GetAttributes(ctx, ids, out, timeout); err != nil {
		return nil, err
	}
	return out, nil
}

// EnableNotifications enables category under listID.
func (c *Connector) EnableNotifications(ctx context.Context, listID, category string, options Options) (md *NotificationMetadata, err error) {
	ctx, end := c.begin(ctx, "enable_notifications",
		attribute.String("notification.list_id", listID),
		attribute.String("notification.category", category))
	defer func() { end(err) }()
	return c.notifications.Enable(ctx, listID, category, options)
}

// DisableNotifications disables listID.
func (c *Connector) DisableNotifications(ctx context.Context, listID string) (ok bool, err error) {
	ctx, end := c.begin(ctx, "disable_notifications", attribute.String("notification.list_id", listID))
	defer func() { end(err) }()
	return c.notifications.Disable(ctx, listID)
}

// Subscribe attaches listener to listID.
func (c *Connector) Subscribe(ctx context.Context, listID string, listener Listener) (id ListenerID, err error) {
	ctx, end := c.begin(ctx, "subscribe", attribute.String("notification.list_id", listID))
	defer func() { end(err) }()
	return c.notifications.Subscribe(ctx, listID, listener)
}

// Unsubscribe detaches the listener with id.
func (c *Connector) Unsubscribe(ctx context.Context, id ListenerID) (ok bool, err error) {
	ctx, end := c.begin(ctx, "unsubscribe", attribute.Int64("notification.listener_id", int64(id)))
	defer func() { end(err) }()
	return c.notifications.Unsubscribe(ctx, id)
}

// GetNotificationInfo returns the metadata enabled under listID.
func (c *Connector) GetNotificationInfo(listID string) (*NotificationMetadata, error) {
	return c.notifications.Info(listID)
}

// ListNotifications returns the enabled list ids.
func (c *Connector) ListNotifications() ([]string, error) {
	return c.notifications.List()
}

// InvokeAction runs a connector operation. Connectors without actions report
// an unsupported-operation error.
func (c *Connector) InvokeAction(ctx context.Context, name string, args map[string]any, timeout time.Duration) (result any, err error) {
	if err := c.st.checkOpen(); err != nil {
		return nil, err
	}
	ctx, end := c.begin(ctx, "invoke_action", attribute.String("action.name", name))
	defer func() { end(err) }()

	invoker, ok := c.hooks.(ActionInvoker)
	if !ok {
		return nil, errors.Unsupported("action " + name)
	}
	timer := metrics.NewTimer()
	result, err = invoker.InvokeActionCore(ctx, name, args, timeout)
	c.st.metrics.ObserveHook("invoke_action", timer.Stop())
	if err != nil {
		return nil, hookError(err, "invoke action "+name)
	}
	return result, nil
}

// Close clears both registries and marks the connector closed. It succeeds
// once; later calls fail like every other operation.
func (c *Connector) Close(ctx context.Context) error {
	if !c.st.closed.CompareAndSwap(false, true) {
		return errors.Closed(c.st.name)
	}
	c.attributes.clear()
	c.notifications.clear()
	c.st.metrics.Reset()
	c.st.logger.Info("connector closed")

	if rc, ok := c.hooks.(ResourceCloser); ok {
		if err := rc.CloseResource(ctx); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "release resources of "+c.st.name)
		}
	}
	return nil
}
