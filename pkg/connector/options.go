package connector

import (
	"sort"
	"time"

	"github.com/spf13/cast"

	"github.com/ajitpratap0/resbridge/pkg/errors"
)

// Options is a read-only view over the configuration parameters attached to
// an attribute or notification list. Put and Delete always fail with an
// unsupported-operation error so front ends that try to mutate a metadata's
// options fail fast.
type Options struct {
	m map[string]string
}

// NewOptions copies m into a read-only view.
func NewOptions(m map[string]string) Options {
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return Options{m: c}
}

// Get returns the value for key.
func (o Options) Get(key string) (string, bool) {
	v, ok := o.m[key]
	return v, ok
}

// GetOr returns the value for key, or def when absent.
func (o Options) GetOr(key, def string) string {
	if v, ok := o.m[key]; ok {
		return v
	}
	return def
}

// Int parses the value for key, returning def when absent or malformed.
func (o Options) Int(key string, def int) int {
	v, ok := o.m[key]
	if !ok {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

// Bool parses the value for key, returning def when absent or malformed.
func (o Options) Bool(key string, def bool) bool {
	v, ok := o.m[key]
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// Duration parses the value for key ("250ms", "2s"), returning def when absent or malformed.
func (o Options) Duration(key string, def time.Duration) time.Duration {
	v, ok := o.m[key]
	if !ok {
		return def
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return def
	}
	return d
}

// Len returns the number of entries.
func (o Options) Len() int {
	return len(o.m)
}

// Keys returns the keys in sorted order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o.m))
	for k := range o.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a mutable copy.
func (o Options) Map() map[string]string {
	c := make(map[string]string, len(o.m))
	for k, v := range o.m {
		c[k] = v
	}
	return c
}

// Put always fails: options are read-only once attached to metadata.
func (o Options) Put(key, value string) error {
	return errors.Unsupported("options are read-only: put " + key)
}

// Delete always fails: options are read-only once attached to metadata.
func (o Options) Delete(key string) error {
	return errors.Unsupported("options are read-only: delete " + key)
}
