package config

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/resbridge/pkg/logger"
	"github.com/ajitpratap0/resbridge/pkg/observability"
)

// Listener id sequence scopes.
const (
	SequenceGlobal   = "global"
	SequenceInstance = "instance"
)

// BaseConfig is the configuration of one connector instance. Connector-specific
// settings live in Options.
type BaseConfig struct {
	// Name identifies the connector instance
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	// Type selects the connector family (e.g. "memory", "process", "sqlquery")
	Type string `yaml:"type" json:"type" mapstructure:"type"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version" mapstructure:"version"`

	// Timeouts bound hook calls made on behalf of front ends
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts" mapstructure:"timeouts"`

	// Notifications controls listener bookkeeping
	Notifications NotificationSettings `yaml:"notifications" json:"notifications" mapstructure:"notifications"`

	// Attributes are connected when the connector starts
	Attributes []AttributeConfig `yaml:"attributes" json:"attributes" mapstructure:"attributes"`

	// Lists are notification lists enabled when the connector starts
	Lists []NotificationConfig `yaml:"lists" json:"lists" mapstructure:"lists"`

	// Options carries connector-specific settings such as a DSN or a pid
	Options map[string]string `yaml:"options" json:"options" mapstructure:"options"`

	Logging logger.Config               `yaml:"logging" json:"logging" mapstructure:"logging"`
	Metrics MetricsConfig               `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
	Tracing observability.TracingConfig `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
}

// TimeoutConfig contains the default per-call budgets.
type TimeoutConfig struct {
	// Read is the budget of a single read or of a whole batch read
	Read time.Duration `yaml:"read" json:"read" mapstructure:"read"`
	// Write is the budget of a single write or of a whole batch write
	Write time.Duration `yaml:"write" json:"write" mapstructure:"write"`
	// Action is the budget of an action invocation
	Action time.Duration `yaml:"action" json:"action" mapstructure:"action"`
	// Connection bounds establishing back-end connections
	Connection time.Duration `yaml:"connection" json:"connection" mapstructure:"connection"`
}

// NotificationSettings selects how listener ids are generated.
type NotificationSettings struct {
	// Sequence is "global" (shared process-wide) or "instance" (per list, from zero)
	Sequence string `yaml:"sequence" json:"sequence" mapstructure:"sequence"`
}

// AttributeConfig connects one attribute at startup.
type AttributeConfig struct {
	ID      string            `yaml:"id" json:"id" mapstructure:"id"`
	Name    string            `yaml:"name" json:"name" mapstructure:"name"`
	Options map[string]string `yaml:"options" json:"options" mapstructure:"options"`
}

// NotificationConfig enables one notification list at startup.
type NotificationConfig struct {
	ListID   string            `yaml:"list_id" json:"list_id" mapstructure:"list_id"`
	Category string            `yaml:"category" json:"category" mapstructure:"category"`
	Options  map[string]string `yaml:"options" json:"options" mapstructure:"options"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Address string `yaml:"address" json:"address" mapstructure:"address"`
	Path    string `yaml:"path" json:"path" mapstructure:"path"`
}

// NewBaseConfig creates a BaseConfig with defaults.
//
//	cfg := config.NewBaseConfig("host", "process")
//	cfg.Timeouts.Read = 2 * time.Second
func NewBaseConfig(name, connectorType string) *BaseConfig {
	cfg := &BaseConfig{
		Name:    name,
		Type:    connectorType,
		Version: "1.0.0",
		Options: make(map[string]string),
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields. Loaded files only need to name what they change.
func (bc *BaseConfig) ApplyDefaults() {
	if bc.Version == "" {
		bc.Version = "1.0.0"
	}
	if bc.Timeouts.Read == 0 {
		bc.Timeouts.Read = 5 * time.Second
	}
	if bc.Timeouts.Write == 0 {
		bc.Timeouts.Write = 5 * time.Second
	}
	if bc.Timeouts.Action == 0 {
		bc.Timeouts.Action = 30 * time.Second
	}
	if bc.Timeouts.Connection == 0 {
		bc.Timeouts.Connection = 10 * time.Second
	}
	if bc.Notifications.Sequence == "" {
		bc.Notifications.Sequence = SequenceGlobal
	}
	if bc.Options == nil {
		bc.Options = make(map[string]string)
	}
	if bc.Logging.Level == "" {
		bc.Logging.Level = "info"
	}
	if bc.Logging.Encoding == "" {
		bc.Logging.Encoding = "json"
	}
	if bc.Metrics.Address == "" {
		bc.Metrics.Address = ":9464"
	}
	if bc.Metrics.Path == "" {
		bc.Metrics.Path = "/metrics"
	}
	if bc.Tracing.ServiceName == "" {
		enabled := bc.Tracing.Enabled
		bc.Tracing = observability.DefaultTracingConfig()
		bc.Tracing.Enabled = enabled
	}
}

// Validate checks required fields and value ranges.
func (bc *BaseConfig) Validate() error {
	if bc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if bc.Type == "" {
		return fmt.Errorf("type is required")
	}
	if bc.Timeouts.Read < 0 || bc.Timeouts.Write < 0 || bc.Timeouts.Action < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	switch bc.Notifications.Sequence {
	case "", SequenceGlobal, SequenceInstance:
	default:
		return fmt.Errorf("notifications.sequence must be %q or %q, got %q",
			SequenceGlobal, SequenceInstance, bc.Notifications.Sequence)
	}

	seen := make(map[string]bool, len(bc.Attributes))
	for i, a := range bc.Attributes {
		if a.ID == "" {
			return fmt.Errorf("attributes[%d]: id is required", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("attributes[%d]: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = true
	}
	lists := make(map[string]bool, len(bc.Lists))
	for i, l := range bc.Lists {
		if l.ListID == "" || l.Category == "" {
			return fmt.Errorf("lists[%d]: list_id and category are required", i)
		}
		if lists[l.ListID] {
			return fmt.Errorf("lists[%d]: duplicate list_id %q", i, l.ListID)
		}
		lists[l.ListID] = true
	}
	return nil
}

// AttributeName returns the back-end name of a, defaulting to its id.
func (a AttributeConfig) AttributeName() string {
	if a.Name == "" {
		return a.ID
	}
	return a.Name
}

// Option returns a connector-specific option or def.
func (bc *BaseConfig) Option(key, def string) string {
	if v, ok := bc.Options[key]; ok && v != "" {
		return v
	}
	return def
}
