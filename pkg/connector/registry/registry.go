package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/resbridge/pkg/config"
	"github.com/ajitpratap0/resbridge/pkg/connector"
	"github.com/ajitpratap0/resbridge/pkg/errors"
	"github.com/ajitpratap0/resbridge/pkg/logger"
)

// Factory builds the hooks of one connector family from its configuration.
type Factory func(cfg *config.BaseConfig) (connector.Hooks, error)

// Registry manages connector families and instantiation
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
	logger    *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new connector registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// Register registers a connector family
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector type %s already registered", name))
	}

	r.factories[name] = factory
	r.logger.Debug("connector type registered", zap.String("name", name))
	return nil
}

// Create builds a connector of cfg.Type, then connects the attributes and
// enables the notification lists cfg names. An attribute or list the back end
// does not know is logged and skipped; a hook error aborts creation.
func (r *Registry) Create(ctx context.Context, cfg *config.BaseConfig, opts ...connector.Option) (*connector.Connector, error) {
	r.mu.RLock()
	factory, exists := r.factories[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector type %s not found", cfg.Type))
	}

	hooks, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create connector %s", cfg.Name))
	}

	c, err := connector.New(cfg.Name, hooks, opts...)
	if err != nil {
		return nil, err
	}

	if err := Populate(ctx, c, cfg); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	return c, nil
}

// Populate connects cfg's attributes and enables cfg's notification lists on c.
func Populate(ctx context.Context, c *connector.Connector, cfg *config.BaseConfig) error {
	log := logger.Get().With(zap.String("connector", cfg.Name))
	for _, a := range cfg.Attributes {
		md, err := c.ConnectAttribute(ctx, a.ID, a.AttributeName(), connector.NewOptions(a.Options))
		if err != nil {
			return err
		}
		if md == nil {
			log.Warn("attribute not available", zap.String("id", a.ID), zap.String("name", a.AttributeName()))
		}
	}
	for _, l := range cfg.Lists {
		md, err := c.EnableNotifications(ctx, l.ListID, l.Category, connector.NewOptions(l.Options))
		if err != nil {
			return err
		}
		if md == nil {
			log.Warn("notification category not available", zap.String("list_id", l.ListID), zap.String("category", l.Category))
		}
	}
	return nil
}

// List returns the registered connector types in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has checks if a connector type is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[name]
	return exists
}

// Clear removes all registered connector types (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]Factory)
}

// Global registry functions

// Register registers a connector family in the global registry
func Register(name string, factory Factory) error {
	return globalRegistry.Register(name, factory)
}

// Create creates a connector from the global registry
func Create(ctx context.Context, cfg *config.BaseConfig, opts ...connector.Option) (*connector.Connector, error) {
	return globalRegistry.Create(ctx, cfg, opts...)
}

// List returns registered connector types from the global registry
func List() []string {
	return globalRegistry.List()
}

// Has checks if a type is registered in the global registry
func Has(name string) bool {
	return globalRegistry.Has(name)
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}

// Sequence returns the listener id generator cfg asks for: the shared global
// sequence, or a fresh per-list sequence starting at zero.
func Sequence(cfg *config.BaseConfig) connector.Sequence {
	if cfg.Notifications.Sequence == config.SequenceInstance {
		return connector.NewSequence()
	}
	return connector.GlobalSequence()
}

// ConnectorInfo provides information about a connector family
type ConnectorInfo struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Version      string            `json:"version"`
	Capabilities []string          `json:"capabilities"`
	Options      map[string]string `json:"options"`
}

// ConnectorCatalog manages connector metadata
type ConnectorCatalog struct {
	connectors map[string]*ConnectorInfo
	mu         sync.RWMutex
}

// NewConnectorCatalog creates a new connector catalog
func NewConnectorCatalog() *ConnectorCatalog {
	return &ConnectorCatalog{
		connectors: make(map[string]*ConnectorInfo),
	}
}

// Register adds a connector to the catalog
func (c *ConnectorCatalog) Register(info *ConnectorInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.connectors[info.Name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector %s already in catalog", info.Name))
	}

	c.connectors[info.Name] = info
	return nil
}

// Get retrieves connector information
func (c *ConnectorCatalog) Get(name string) (*ConnectorInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, exists := c.connectors[name]
	if !exists {
		return nil, errors.New(errors.ErrorTypeNotFound, fmt.Sprintf("connector %s not found in catalog", name))
	}

	return info, nil
}

// List returns all connectors in the catalog sorted by name
func (c *ConnectorCatalog) List() []*ConnectorInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]*ConnectorInfo, 0, len(c.connectors))
	for _, info := range c.connectors {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Global catalog instance
var globalCatalog = NewConnectorCatalog()

// RegisterConnectorInfo registers connector information in the global catalog
func RegisterConnectorInfo(info *ConnectorInfo) error {
	return globalCatalog.Register(info)
}

// GetConnectorInfo retrieves connector information from the global catalog
func GetConnectorInfo(name string) (*ConnectorInfo, error) {
	return globalCatalog.Get(name)
}

// ListConnectorInfo lists all connectors in the global catalog
func ListConnectorInfo() []*ConnectorInfo {
	return globalCatalog.List()
}
