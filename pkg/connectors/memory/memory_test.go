package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/resbridge/pkg/config"
	"github.com/ajitpratap0/resbridge/pkg/connector"
	"github.com/ajitpratap0/resbridge/pkg/connector/registry"
	"github.com/ajitpratap0/resbridge/pkg/entity"
	"github.com/ajitpratap0/resbridge/pkg/errors"
	"github.com/ajitpratap0/resbridge/pkg/testutil"
)

func newMemoryConnector(t *testing.T) *connector.Connector {
	t.Helper()
	cfg := config.NewBaseConfig("mem", "memory")
	cfg.Notifications.Sequence = config.SequenceInstance
	cfg.Attributes = []config.AttributeConfig{
		{ID: "counter", Options: map[string]string{"type": "int64", "initial": "5"}},
		{ID: "label"},
		{ID: "tags", Options: map[string]string{"type": "strings", "initial": "a,b"}},
		{ID: "serial", Options: map[string]string{"initial": "SN-1", "readonly": "true"}},
	}
	cfg.Lists = []config.NotificationConfig{{ListID: "changes", Category: ChangeCategory}}

	return testutil.NewConnector(t, cfg)
}

func TestMemoryRegistered(t *testing.T) {
	assert.True(t, registry.Has("memory"))
	info, err := registry.GetConnectorInfo("memory")
	require.NoError(t, err)
	assert.Contains(t, info.Capabilities, "notifications")
}

func TestMemoryReadWriteConverts(t *testing.T) {
	c := newMemoryConnector(t)
	ctx := context.Background()

	v, err := c.GetAttribute(ctx, "counter", time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	ok, err := c.SetAttribute(ctx, "counter", time.Second, "42")
	require.NoError(t, err)
	assert.True(t, ok)

	v, err = c.GetAttribute(ctx, "counter", time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = c.SetAttribute(ctx, "counter", time.Second, "forty-two")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConversion))

	_, err = c.SetAttribute(ctx, "serial", time.Second, "SN-2")
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupported))

	v, err = c.GetAttribute(ctx, "label", time.Second, "unset")
	require.NoError(t, err)
	assert.Equal(t, "unset", v)
}

func TestMemoryArrayAttributeAsTable(t *testing.T) {
	c := newMemoryConnector(t)
	ctx := context.Background()

	v, err := c.GetAttribute(ctx, "tags", time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)

	md, err := c.GetAttributeInfo("tags")
	require.NoError(t, err)
	et, err := md.Type()
	require.NoError(t, err)
	assert.Equal(t, entity.KindTable, et.Kind())

	out, err := et.ConvertTo(v, entity.TableType)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out.(entity.Table).Values(entity.ValueColumn))

	ok, err := c.SetAttribute(ctx, "tags", time.Second, entity.Table{Rows: []entity.Row{
		{entity.IndexColumn: 1, entity.ValueColumn: "y"},
		{entity.IndexColumn: 0, entity.ValueColumn: "x"},
	}})
	require.NoError(t, err)
	assert.True(t, ok)

	v, err = c.GetAttribute(ctx, "tags", time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, v)
}

func TestMemoryChangeNotifications(t *testing.T) {
	c := newMemoryConnector(t)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		changes []Change
	)
	id, err := c.Subscribe(ctx, "changes", connector.ListenerFunc(func(n connector.Notification) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, n.Data.(Change))
	}))
	require.NoError(t, err)
	assert.Equal(t, connector.ListenerID(0), id)

	ok, err := c.SetAttributes(ctx, map[string]any{"counter": int64(7), "label": "hello"}, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, changes, 2)
	assert.Equal(t, Change{Attribute: "counter", Old: int64(5), New: int64(7)}, changes[0])
	assert.Equal(t, Change{Attribute: "label", Old: nil, New: "hello"}, changes[1])

	ok, err = c.DisableNotifications(ctx, "changes")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.SetAttribute(ctx, "counter", time.Second, int64(8))
	require.NoError(t, err)
	assert.Len(t, changes, 2)
}

func TestMemoryActions(t *testing.T) {
	c := newMemoryConnector(t)
	ctx := context.Background()

	_, err := c.EnableNotifications(ctx, "ops", "operator", connector.NewOptions(nil))
	require.NoError(t, err)
	got := make(chan connector.Notification, 1)
	_, err = c.Subscribe(ctx, "ops", connector.ListenerFunc(func(n connector.Notification) { got <- n }))
	require.NoError(t, err)

	delivered, err := c.InvokeAction(ctx, "publish", map[string]any{"category": "operator", "message": "maintenance"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	n := <-got
	assert.Equal(t, "maintenance", n.Message)
	assert.Equal(t, "mem", n.Source)

	_, err = c.SetAttribute(ctx, "counter", time.Second, int64(99))
	require.NoError(t, err)
	_, err = c.InvokeAction(ctx, "reset", nil, time.Second)
	require.NoError(t, err)
	v, err := c.GetAttribute(ctx, "counter", time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	_, err = c.InvokeAction(ctx, "publish", nil, time.Second)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = c.InvokeAction(ctx, "explode", nil, time.Second)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupported))
}

func TestMemoryExhaustedBudgetSkipsItems(t *testing.T) {
	c := newMemoryConnector(t)
	out := map[string]any{}
	read, err := c.GetAttributes(context.Background(), []string{"counter", "serial"}, out, 0)
	require.NoError(t, err)
	assert.Empty(t, read)
	assert.Empty(t, out)

	snap, err := c.Snapshot(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(5), snap["counter"])
	assert.Equal(t, "SN-1", snap["serial"])
	assert.NotContains(t, snap, "label")
}

func TestMemoryUnknownType(t *testing.T) {
	h, err := New(config.NewBaseConfig("m", "memory"))
	require.NoError(t, err)
	_, err = h.ConnectAttributeCore(context.Background(), "x", connector.NewOptions(map[string]string{"type": "complex128"}))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
