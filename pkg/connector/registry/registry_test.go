package registry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/resbridge/pkg/config"
	"github.com/ajitpratap0/resbridge/pkg/connector"
	"github.com/ajitpratap0/resbridge/pkg/errors"
)

// stubHooks knows attributes whose name starts with "ok" and the "alarm" category.
type stubHooks struct {
	connector.BaseHooks
	seq      connector.Sequence
	released bool
}

func (h *stubHooks) ConnectAttributeCore(_ context.Context, name string, options connector.Options) (*connector.AttributeMetadata, error) {
	if name == "fail" {
		return nil, fmt.Errorf("boom")
	}
	if len(name) < 2 || name[:2] != "ok" {
		return nil, nil
	}
	return connector.NewAttributeMetadata(name, options, nil), nil
}

func (h *stubHooks) GetAttributeValue(_ context.Context, md *connector.AttributeMetadata, _ time.Duration, _ any) (any, error) {
	return md.Name(), nil
}

func (h *stubHooks) SetAttributeValue(context.Context, *connector.AttributeMetadata, time.Duration, any) (bool, error) {
	return false, nil
}

func (h *stubHooks) DisconnectAttributeCore(context.Context, string, *connector.AttributeMetadata) bool {
	return true
}

func (h *stubHooks) EnableNotificationsCore(_ context.Context, category string, options connector.Options) (*connector.NotificationMetadata, error) {
	if category != "alarm" {
		return nil, nil
	}
	return connector.NewNotificationMetadata(category, options, connector.WithSequence(h.seq)), nil
}

func (h *stubHooks) CloseResource(context.Context) error {
	h.released = true
	return nil
}

func TestRegisterAndCreate(t *testing.T) {
	r := NewRegistry()
	var built *stubHooks
	require.NoError(t, r.Register("stub", func(cfg *config.BaseConfig) (connector.Hooks, error) {
		built = &stubHooks{seq: Sequence(cfg)}
		return built, nil
	}))

	err := r.Register("stub", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.True(t, r.Has("stub"))
	assert.Equal(t, []string{"stub"}, r.List())

	cfg := config.NewBaseConfig("demo", "stub")
	cfg.Notifications.Sequence = config.SequenceInstance
	cfg.Attributes = []config.AttributeConfig{{ID: "a", Name: "ok-a"}, {ID: "b", Name: "unknown"}}
	cfg.Lists = []config.NotificationConfig{{ListID: "alarms", Category: "alarm"}, {ListID: "x", Category: "other"}}

	c, err := r.Create(context.Background(), cfg)
	require.NoError(t, err)

	attrs, err := c.ListRegisteredAttributes()
	require.NoError(t, err)
	assert.Len(t, attrs, 1)
	assert.Contains(t, attrs, "a")

	lists, err := c.ListNotifications()
	require.NoError(t, err)
	assert.Equal(t, []string{"alarms"}, lists)

	id, err := c.Subscribe(context.Background(), "alarms", connector.ListenerFunc(func(connector.Notification) {}))
	require.NoError(t, err)
	assert.Equal(t, connector.ListenerID(0), id, "instance sequences start at zero")

	require.NoError(t, c.Close(context.Background()))
	assert.True(t, built.released)
}

func TestCreateFailures(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(context.Background(), config.NewBaseConfig("x", "nope"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	require.NoError(t, r.Register("broken", func(*config.BaseConfig) (connector.Hooks, error) {
		return nil, fmt.Errorf("no driver")
	}))
	_, err = r.Create(context.Background(), config.NewBaseConfig("x", "broken"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	var built *stubHooks
	require.NoError(t, r.Register("stub", func(*config.BaseConfig) (connector.Hooks, error) {
		built = &stubHooks{}
		return built, nil
	}))
	cfg := config.NewBaseConfig("x", "stub")
	cfg.Attributes = []config.AttributeConfig{{ID: "f", Name: "fail"}}
	_, err = r.Create(context.Background(), cfg)
	assert.Error(t, err)
	assert.True(t, built.released, "a failed populate releases back-end resources")

	r.Clear()
	assert.Empty(t, r.List())
}

func TestSequenceSelection(t *testing.T) {
	cfg := config.NewBaseConfig("x", "stub")
	assert.Same(t, connector.GlobalSequence(), Sequence(cfg))

	cfg.Notifications.Sequence = config.SequenceInstance
	a, b := Sequence(cfg), Sequence(cfg)
	assert.NotSame(t, a, b)
	assert.Equal(t, connector.ListenerID(0), a.Next())
}

func TestCatalog(t *testing.T) {
	c := NewConnectorCatalog()
	require.NoError(t, c.Register(&ConnectorInfo{Name: "b"}))
	require.NoError(t, c.Register(&ConnectorInfo{Name: "a"}))
	assert.Error(t, c.Register(&ConnectorInfo{Name: "a"}))

	infos := c.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)

	_, err := c.Get("zzz")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}
