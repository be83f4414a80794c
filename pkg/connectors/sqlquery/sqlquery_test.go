package sqlquery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/resbridge/pkg/config"
	"github.com/ajitpratap0/resbridge/pkg/connector"
	"github.com/ajitpratap0/resbridge/pkg/entity"
	"github.com/ajitpratap0/resbridge/pkg/errors"
	"github.com/ajitpratap0/resbridge/pkg/testutil"
)

const schema = `
CREATE TABLE settings (k TEXT PRIMARY KEY, v TEXT);
INSERT INTO settings VALUES ('mode', 'auto'), ('limit', '10');
CREATE TABLE orders (id INTEGER PRIMARY KEY, status TEXT);
INSERT INTO orders VALUES (1, 'new'), (2, 'new'), (3, 'done');
`

func testConfig() *config.BaseConfig {
	cfg := config.NewBaseConfig("shop", "sqlquery")
	cfg.Options["driver"] = "sqlite3"
	cfg.Options["dsn"] = ":memory:"
	cfg.Options["init"] = schema
	cfg.Options["statement.add_order"] = "INSERT INTO orders (id, status) VALUES (?, 'new')"
	cfg.Attributes = []config.AttributeConfig{
		{ID: "mode", Options: map[string]string{
			"query":  "SELECT v FROM settings WHERE k = 'mode'",
			"update": "UPDATE settings SET v = ? WHERE k = 'mode'",
		}},
		{ID: "limit", Options: map[string]string{
			"type":   "int64",
			"query":  "SELECT v FROM settings WHERE k = 'limit'",
			"update": "UPDATE settings SET v = ? WHERE k = 'limit'",
		}},
		{ID: "pending", Options: map[string]string{
			"type":  "int64",
			"query": "SELECT COUNT(*) FROM orders WHERE status = 'new'",
		}},
		{ID: "orders", Options: map[string]string{
			"type":  "table",
			"query": "SELECT id, status FROM orders ORDER BY id",
		}},
		{ID: "ghost", Options: map[string]string{
			"query": "SELECT v FROM settings WHERE k = 'ghost'",
		}},
	}
	return cfg
}

func newSQLConnector(t *testing.T, cfg *config.BaseConfig) *connector.Connector {
	t.Helper()
	return testutil.NewConnector(t, cfg)
}

func TestSQLReadWrite(t *testing.T) {
	c := newSQLConnector(t, testConfig())
	ctx := context.Background()

	v, err := c.GetAttribute(ctx, "mode", time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, "auto", v)

	v, err = c.GetAttribute(ctx, "limit", time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)

	ok, err := c.SetAttributes(ctx, map[string]any{"limit": "20", "mode": "manual"}, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	v, err = c.GetAttribute(ctx, "limit", time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(20), v)

	_, err = c.SetAttribute(ctx, "pending", time.Second, 1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupported))

	_, err = c.SetAttribute(ctx, "limit", time.Second, "lots")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConversion))
}

func TestSQLEmptyResultUsesDefault(t *testing.T) {
	c := newSQLConnector(t, testConfig())
	ctx := context.Background()

	v, err := c.GetAttribute(ctx, "ghost", time.Second, "none")
	require.NoError(t, err)
	assert.Equal(t, "none", v)

	out := map[string]any{}
	read, err := c.GetAttributes(ctx, []string{"ghost", "pending"}, out, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"pending"}, read)
	assert.Equal(t, map[string]any{"pending": int64(2)}, out)
}

func TestSQLTableAttribute(t *testing.T) {
	c := newSQLConnector(t, testConfig())

	v, err := c.GetAttribute(context.Background(), "orders", time.Second, nil)
	require.NoError(t, err)
	table, ok := v.(entity.Table)
	require.True(t, ok)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, table.Values("id"))
	assert.Equal(t, []any{"new", "new", "done"}, table.Values("status"))

	md, err := c.GetAttributeInfo("orders")
	require.NoError(t, err)
	assert.False(t, md.CanWrite())
}

func TestSQLExecAndQueryChange(t *testing.T) {
	cfg := testConfig()
	cfg.Lists = []config.NotificationConfig{{
		ListID:   "pending-changes",
		Category: ChangeCategory,
		Options:  map[string]string{"query": "SELECT COUNT(*) FROM orders WHERE status = 'new'"},
	}}
	c := newSQLConnector(t, cfg)
	ctx := context.Background()

	rec := &testutil.Recorder{}
	_, err := c.Subscribe(ctx, "pending-changes", rec)
	require.NoError(t, err)

	notified, err := c.InvokeAction(ctx, "poll", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, notified, "first poll only records the baseline")

	affected, err := c.InvokeAction(ctx, "exec", map[string]any{"statement": "add_order", "params": []any{4}}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	notified, err = c.InvokeAction(ctx, "poll", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, notified)
	seen := rec.Notifications()
	require.Len(t, seen, 1)
	assert.Equal(t, Change{Query: "SELECT COUNT(*) FROM orders WHERE status = 'new'", Old: int64(2), New: int64(3)}, seen[0].Data)

	notified, err = c.InvokeAction(ctx, "poll", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, notified)

	_, err = c.InvokeAction(ctx, "exec", map[string]any{"statement": "drop_all"}, time.Second)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestSQLConfigErrors(t *testing.T) {
	cfg := config.NewBaseConfig("x", "sqlquery")
	_, err := New(cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cfg.Options["driver"] = "oracle"
	cfg.Options["dsn"] = "whatever"
	_, err = New(cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cfg.Options["driver"] = "sqlite3"
	cfg.Options["dsn"] = ":memory:"
	cfg.Options["init"] = "CREATE TABLE"
	_, err = New(cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSQLAttributeWithoutQuery(t *testing.T) {
	c := newSQLConnector(t, testConfig())
	md, err := c.ConnectAttribute(context.Background(), "bare", "bare", connector.NewOptions(nil))
	require.NoError(t, err)
	assert.Nil(t, md)

	_, err = c.ConnectAttribute(context.Background(), "list", "list",
		connector.NewOptions(map[string]string{"query": "SELECT 1", "type": "strings"}))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
