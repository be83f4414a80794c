package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("RB_HOST", "db.local")
	t.Setenv("RB_EMPTY", "")

	assert.Equal(t, "host=db.local port=5432", substituteEnvVars("host=${RB_HOST} port=${RB_PORT:-5432}"))
	assert.Equal(t, "x=fallback", substituteEnvVars("x=${RB_EMPTY:-fallback}"))
	assert.Equal(t, "y=", substituteEnvVars("y=${RB_UNSET_VAR}"))
	assert.Equal(t, "z=${open", substituteEnvVars("z=${open"))
	assert.Equal(t, "a-db.local-db.local", substituteEnvVars("a-${RB_HOST}-${RB_HOST}"))
}

func TestLoadBaseConfig(t *testing.T) {
	t.Setenv("RB_DSN", "file::memory:")
	path := filepath.Join(t.TempDir(), "connector.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: orders
type: sqlquery
options:
  driver: sqlite3
  dsn: ${RB_DSN}
notifications:
  sequence: instance
attributes:
  - id: pending
    name: pending_orders
lists:
  - list_id: alarms
    category: threshold
`), 0o600))

	cfg, err := LoadBaseConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "file::memory:", cfg.Option("dsn", ""))
	assert.Equal(t, "fallback", cfg.Option("missing", "fallback"))
	assert.Equal(t, SequenceInstance, cfg.Notifications.Sequence)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Read)
	assert.Equal(t, "pending_orders", cfg.Attributes[0].AttributeName())
	assert.Equal(t, "threshold", cfg.Lists[0].Category)
	assert.Equal(t, "resbridge", cfg.Tracing.ServiceName)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*BaseConfig)
	}{
		{"missing name", func(c *BaseConfig) { c.Name = "" }},
		{"missing type", func(c *BaseConfig) { c.Type = "" }},
		{"negative timeout", func(c *BaseConfig) { c.Timeouts.Read = -time.Second }},
		{"bad sequence", func(c *BaseConfig) { c.Notifications.Sequence = "cluster" }},
		{"attribute without id", func(c *BaseConfig) { c.Attributes = []AttributeConfig{{Name: "x"}} }},
		{"duplicate attribute", func(c *BaseConfig) { c.Attributes = []AttributeConfig{{ID: "a"}, {ID: "a"}} }},
		{"list without category", func(c *BaseConfig) { c.Lists = []NotificationConfig{{ListID: "l"}} }},
		{"duplicate list", func(c *BaseConfig) {
			c.Lists = []NotificationConfig{{ListID: "l", Category: "a"}, {ListID: "l", Category: "b"}}
		}},
	}

	require.NoError(t, NewBaseConfig("n", "memory").Validate())
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewBaseConfig("n", "memory")
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := NewBaseConfig("host", "process")
	cfg.Options["pid"] = "1"
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadBaseConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "1", loaded.Option("pid", ""))
	assert.Equal(t, cfg.Timeouts, loaded.Timeouts)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadBaseConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
