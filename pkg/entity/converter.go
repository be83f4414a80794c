package entity

import (
	"reflect"

	"github.com/ajitpratap0/resbridge/pkg/errors"
	"github.com/ajitpratap0/resbridge/pkg/metrics"
)

// Converter is a pure unary function bridging one concrete type to another.
// Converters are assembled into registration tables by connector families
// and never discovered by introspection.
type Converter struct {
	// From is the parameter type; any value assignable to it is accepted.
	From reflect.Type
	// To is the result type.
	To reflect.Type

	fn func(any) (any, error)
}

// Func wraps a typed conversion function into a Converter.
//
//	entity.Func(func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
func Func[S, D any](fn func(S) (D, error)) Converter {
	to := reflect.TypeOf((*D)(nil)).Elem()
	return Converter{
		From: reflect.TypeOf((*S)(nil)).Elem(),
		To:   to,
		fn: func(v any) (any, error) {
			s, ok := v.(S)
			if !ok {
				return nil, errors.Conversion(v, to.String())
			}
			d, err := fn(s)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeConversion, "convert "+reflect.TypeOf(v).String()+" to "+to.String()).
					WithDetail("value", v).
					WithDetail("target", to.String())
			}
			return d, nil
		},
	}
}

// Total wraps a conversion function that cannot fail.
func Total[S, D any](fn func(S) D) Converter {
	return Func(func(s S) (D, error) { return fn(s), nil })
}

// Accepts reports whether the converter's parameter accepts values of type t.
func (c Converter) Accepts(t reflect.Type) bool {
	return assignable(t, c.From)
}

// Produces reports whether the converter's result is assignable to t.
func (c Converter) Produces(t reflect.Type) bool {
	return assignable(c.To, t)
}

// Convert applies the converter to v.
func (c Converter) Convert(v any) (any, error) {
	out, err := c.fn(v)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.Conversions.WithLabelValues(c.From.String(), c.To.String(), status).Inc()
	return out, err
}

// Provider is an ordered, immutable pool of converters made available by one
// connector family. Lookups scan in registration order; the first match wins.
type Provider struct {
	name       string
	converters []Converter
}

// NewProvider builds a provider from one or more registration tables,
// preserving their order.
func NewProvider(name string, tables ...[]Converter) *Provider {
	p := &Provider{name: name}
	for _, table := range tables {
		for _, c := range table {
			if c.From == nil || c.To == nil || c.fn == nil {
				continue
			}
			p.converters = append(p.converters, c)
		}
	}
	return p
}

// With returns a new provider holding p's converters followed by convs.
func (p *Provider) With(convs ...Converter) *Provider {
	return NewProvider(p.name, p.converters, convs)
}

// Name returns the connector family name.
func (p *Provider) Name() string {
	if p == nil {
		return ""
	}
	return p.name
}

// Len returns the number of pooled converters.
func (p *Provider) Len() int {
	if p == nil {
		return 0
	}
	return len(p.converters)
}

// Converters returns a copy of the pool in registration order.
func (p *Provider) Converters() []Converter {
	if p == nil {
		return nil
	}
	out := make([]Converter, len(p.converters))
	copy(out, p.converters)
	return out
}

// Find returns the first converter accepting from and producing a value
// assignable to to.
func (p *Provider) Find(from, to reflect.Type) (Converter, bool) {
	if p == nil {
		return Converter{}, false
	}
	for _, c := range p.converters {
		if c.Accepts(from) && c.Produces(to) {
			return c, true
		}
	}
	return Converter{}, false
}
