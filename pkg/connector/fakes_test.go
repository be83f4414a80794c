package connector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeHooks keeps attribute values by name and records every hook call.
type fakeHooks struct {
	mu sync.Mutex

	values    map[string]any
	connects  map[string]int
	timeouts  []time.Duration
	failWrite map[string]bool
	writes    []string
	onGet     func(md *AttributeMetadata, timeout time.Duration)

	refuseDisconnect bool

	seq          Sequence
	enables      int
	disabled     []string
	subscribes   int
	unsubscribed []any

	released bool
}

func newFakeHooks() *fakeHooks {
	return &fakeHooks{
		values:    make(map[string]any),
		connects:  make(map[string]int),
		failWrite: make(map[string]bool),
	}
}

func (h *fakeHooks) set(name string, v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values[name] = v
}

func (h *fakeHooks) value(name string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.values[name]
	return v, ok
}

func (h *fakeHooks) connectCount(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connects[name]
}

func (h *fakeHooks) ConnectAttributeCore(_ context.Context, name string, options Options) (*AttributeMetadata, error) {
	h.mu.Lock()
	h.connects[name]++
	h.mu.Unlock()

	switch {
	case name == "missing":
		return nil, nil
	case name == "broken":
		return nil, fmt.Errorf("device unreachable")
	case strings.HasPrefix(name, "ro."):
		return NewAttributeMetadata(name, options, nil, ReadOnly()), nil
	case strings.HasPrefix(name, "wo."):
		return NewAttributeMetadata(name, options, nil, WriteOnly()), nil
	}
	return NewAttributeMetadata(name, options, nil), nil
}

func (h *fakeHooks) GetAttributeValue(_ context.Context, md *AttributeMetadata, timeout time.Duration, defaultValue any) (any, error) {
	h.mu.Lock()
	h.timeouts = append(h.timeouts, timeout)
	onGet := h.onGet
	v, ok := h.values[md.Name()]
	h.mu.Unlock()

	if onGet != nil {
		onGet(md, timeout)
	}
	if !ok {
		return defaultValue, nil
	}
	if err, isErr := v.(error); isErr {
		return nil, err
	}
	return v, nil
}

func (h *fakeHooks) SetAttributeValue(_ context.Context, md *AttributeMetadata, _ time.Duration, value any) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writes = append(h.writes, md.Name())
	if h.failWrite[md.Name()] {
		return false, nil
	}
	h.values[md.Name()] = value
	return true, nil
}

func (h *fakeHooks) DisconnectAttributeCore(context.Context, string, *AttributeMetadata) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.refuseDisconnect
}

func (h *fakeHooks) EnableNotificationsCore(_ context.Context, category string, options Options) (*NotificationMetadata, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enables++
	if category == "unknown" {
		return nil, nil
	}
	return NewNotificationMetadata(category, options, WithSequence(h.seq)), nil
}

func (h *fakeHooks) DisableNotificationsCore(_ context.Context, md *NotificationMetadata) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disabled = append(h.disabled, md.Category())
}

func (h *fakeHooks) SubscribeCore(context.Context, *NotificationMetadata, Listener) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribes++
	return fmt.Sprintf("ud-%d", h.subscribes), nil
}

func (h *fakeHooks) UnsubscribeCore(_ context.Context, _ *NotificationMetadata, _ Listener, userData any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribed = append(h.unsubscribed, userData)
}

func (h *fakeHooks) CloseResource(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released = true
	return nil
}

// actionHooks adds an action to fakeHooks.
type actionHooks struct {
	*fakeHooks
}

func (actionHooks) InvokeActionCore(_ context.Context, name string, args map[string]any, _ time.Duration) (any, error) {
	if name != "echo" {
		return nil, fmt.Errorf("no action %s", name)
	}
	return args["msg"], nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestConnector(t *testing.T, hooks Hooks, opts ...Option) *Connector {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := New("test", hooks, opts...)
	require.NoError(t, err)
	return c
}

func connectAll(t *testing.T, c *Connector, ids ...string) {
	t.Helper()
	for _, id := range ids {
		md, err := c.ConnectAttribute(context.Background(), id, id, NewOptions(nil))
		require.NoError(t, err)
		require.NotNil(t, md, id)
	}
}
