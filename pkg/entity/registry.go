package entity

import (
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/resbridge/pkg/errors"
	"github.com/ajitpratap0/resbridge/pkg/logger"
)

// Factory assembles the registration table of one connector family.
type Factory func() []Converter

// Registry manages connector-family converter tables. Each family's provider
// is assembled on first use and pooled for every later lookup.
type Registry struct {
	factories map[string]Factory
	providers map[string]*Provider
	mu        sync.RWMutex
	logger    *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

func init() {
	_ = globalRegistry.Register(StandardFamily, Standard)
}

// NewRegistry creates an empty family registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		providers: make(map[string]*Provider),
		logger:    logger.Get().With(zap.String("component", "converter_registry")),
	}
}

// Register records the table factory of a family
func (r *Registry) Register(family string, factory Factory) error {
	if family == "" || factory == nil {
		return errors.New(errors.ErrorTypeValidation, "converter family needs a name and a factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[family]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "converter family %s already registered", family)
	}

	r.factories[family] = factory
	r.logger.Debug("converter family registered", zap.String("family", family))
	return nil
}

// Provider returns the pooled provider of a family, building it on first use
func (r *Registry) Provider(family string) (*Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[family]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under lock in case another goroutine built it meanwhile.
	if p, ok := r.providers[family]; ok {
		return p, nil
	}
	factory, ok := r.factories[family]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "converter family %s not found", family)
	}

	p = NewProvider(family, factory())
	r.providers[family] = p
	r.logger.Info("converter family assembled",
		zap.String("family", family),
		zap.Int("converters", p.Len()))
	return p, nil
}

// Build produces an entity type from the pooled provider of family
func (r *Registry) Build(family string, source, destination reflect.Type) (*EntityType, error) {
	p, err := r.Provider(family)
	if err != nil {
		return nil, err
	}
	return BuildEntityType(p, source, destination)
}

// Families returns the registered family names, sorted
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Global registry functions

// RegisterFamily registers a family in the global registry
func RegisterFamily(family string, factory Factory) error {
	return globalRegistry.Register(family, factory)
}

// ProviderFor returns a pooled provider from the global registry
func ProviderFor(family string) (*Provider, error) {
	return globalRegistry.Provider(family)
}

// Build produces an entity type from the global registry
func Build(family string, source, destination reflect.Type) (*EntityType, error) {
	return globalRegistry.Build(family, source, destination)
}

// GetRegistry returns the global registry instance
func GetRegistry() *Registry {
	return globalRegistry
}
