package connector

import (
	"reflect"
	"sync"

	"github.com/ajitpratap0/resbridge/pkg/entity"
	"github.com/ajitpratap0/resbridge/pkg/errors"
)

// TypeResolver produces the entity type of an attribute. It runs at most once
// per metadata instance.
type TypeResolver func() (*entity.EntityType, error)

// StaticType returns a resolver for an already built entity type.
func StaticType(et *entity.EntityType) TypeResolver {
	return func() (*entity.EntityType, error) { return et, nil }
}

// BuildType returns a resolver that builds the entity type on first use.
func BuildType(p *entity.Provider, source, destination reflect.Type) TypeResolver {
	return func() (*entity.EntityType, error) {
		return entity.BuildEntityType(p, source, destination)
	}
}

// AttributeMetadata describes one connected attribute. Its identity is stable
// for the life of the connector; its entity type is resolved lazily once and
// then kept.
type AttributeMetadata struct {
	name      string
	namespace string
	options   Options
	canRead   bool
	canWrite  bool
	cacheable bool

	resolve  TypeResolver
	typeOnce sync.Once
	typ      *entity.EntityType
	typeErr  error
}

// AttributeOption customizes AttributeMetadata at construction.
type AttributeOption func(*AttributeMetadata)

// WithNamespace sets the attribute namespace.
func WithNamespace(ns string) AttributeOption {
	return func(m *AttributeMetadata) { m.namespace = ns }
}

// ReadOnly marks the attribute as not writable.
func ReadOnly() AttributeOption {
	return func(m *AttributeMetadata) { m.canWrite = false }
}

// WriteOnly marks the attribute as not readable.
func WriteOnly() AttributeOption {
	return func(m *AttributeMetadata) { m.canRead = false }
}

// Cacheable marks the attribute value as safe to cache by front ends.
func Cacheable() AttributeOption {
	return func(m *AttributeMetadata) { m.cacheable = true }
}

// NewAttributeMetadata creates readable, writable metadata unless options say otherwise.
func NewAttributeMetadata(name string, options Options, resolve TypeResolver, opts ...AttributeOption) *AttributeMetadata {
	m := &AttributeMetadata{
		name:     name,
		options:  options,
		canRead:  true,
		canWrite: true,
		resolve:  resolve,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the back-end attribute name.
func (m *AttributeMetadata) Name() string { return m.name }

// Namespace returns the attribute namespace.
func (m *AttributeMetadata) Namespace() string { return m.namespace }

// Options returns the read-only options view.
func (m *AttributeMetadata) Options() Options { return m.options }

// CanRead reports whether the attribute is readable.
func (m *AttributeMetadata) CanRead() bool { return m.canRead }

// CanWrite reports whether the attribute is writable.
func (m *AttributeMetadata) CanWrite() bool { return m.canWrite }

// IsCacheable reports whether front ends may cache the value.
func (m *AttributeMetadata) IsCacheable() bool { return m.cacheable }

// Type resolves the entity type on first call and returns the same result afterwards.
func (m *AttributeMetadata) Type() (*entity.EntityType, error) {
	m.typeOnce.Do(func() {
		if m.resolve == nil {
			m.typeErr = errors.Newf(errors.ErrorTypeConfig, "attribute %s has no type", m.name)
			return
		}
		m.typ, m.typeErr = m.resolve()
	})
	return m.typ, m.typeErr
}
