package entity

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/spf13/cast"

	"github.com/ajitpratap0/resbridge/pkg/errors"
)

// Kind tags the EntityType variant.
type Kind uint8

const (
	// KindScalar is a single value.
	KindScalar Kind = iota
	// KindArray is a native slice or array of an element entity type.
	KindArray
	// KindTable is a sequence exposed as an Index/Value row table.
	KindTable
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindTable:
		return "table"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// EntityType describes a canonical type and its bridge to a source type, the
// back-end's native representation.
//
// An EntityType is immutable after construction. Converter resolution for a
// given destination (or origin) type is computed at most once and cached for
// the lifetime of the instance; the cache is internal and safe for concurrent
// use.
type EntityType struct {
	kind      Kind
	source    reflect.Type
	canonical reflect.Type
	same      bool
	provider  *Provider
	elem      *EntityType

	mu   sync.Mutex
	to   map[reflect.Type]resolution
	from map[reflect.Type]resolution
}

// resolution is one memoized lookup result.
type resolution struct {
	ok     bool
	direct bool
	conv   Converter
}

// BuildEntityType produces the entity type bridging source to destination
// using the provider's converters. Both types are normalized first.
//
// A sequence source with a Table destination yields a KindTable type; a
// sequence source with a sequence destination yields a KindArray type. All
// other pairs are scalars: same-family when destination is assignable from
// source, cross-family otherwise.
func BuildEntityType(p *Provider, source, destination reflect.Type) (*EntityType, error) {
	src, err := Normalize(source)
	if err != nil {
		return nil, err
	}
	dst, err := Normalize(destination)
	if err != nil {
		return nil, err
	}

	switch {
	case dst == TableType && isSequence(src):
		elem, err := BuildEntityType(p, src.Elem(), src.Elem())
		if err != nil {
			return nil, err
		}
		return newEntityType(KindTable, src, dst, p, elem), nil
	case isSequence(src) && isSequence(dst):
		elem, err := BuildEntityType(p, src.Elem(), dst.Elem())
		if err != nil {
			return nil, err
		}
		return newEntityType(KindArray, src, dst, p, elem), nil
	}
	return newEntityType(KindScalar, src, dst, p, nil), nil
}

// ArrayOf wraps elem into a slice entity type.
func ArrayOf(elem *EntityType) *EntityType {
	return newEntityType(KindArray, reflect.SliceOf(elem.source), reflect.SliceOf(elem.canonical), elem.provider, elem)
}

// TableOf wraps elem into a table entity type over a slice source.
func TableOf(elem *EntityType) *EntityType {
	return newEntityType(KindTable, reflect.SliceOf(elem.source), TableType, elem.provider, elem)
}

func newEntityType(kind Kind, src, dst reflect.Type, p *Provider, elem *EntityType) *EntityType {
	return &EntityType{
		kind:      kind,
		source:    src,
		canonical: dst,
		same:      assignable(src, dst),
		provider:  p,
		elem:      elem,
		to:        make(map[reflect.Type]resolution),
		from:      make(map[reflect.Type]resolution),
	}
}

// Kind returns the variant tag.
func (e *EntityType) Kind() Kind { return e.kind }

// SourceType returns the normalized native representation.
func (e *EntityType) SourceType() reflect.Type { return e.source }

// Type returns the normalized canonical type.
func (e *EntityType) Type() reflect.Type { return e.canonical }

// Elem returns the element entity type of an array or table, nil for scalars.
func (e *EntityType) Elem() *EntityType { return e.elem }

// SameFamily reports whether the canonical type is assignable from the source type.
func (e *EntityType) SameFamily() bool { return e.same }

// Provider returns the converter pool backing this type.
func (e *EntityType) Provider() *Provider { return e.provider }

// Columns returns the synthesized Index/Value columns of an array or table.
func (e *EntityType) Columns() []Column {
	if e.elem == nil {
		return nil
	}
	return arrayColumns(e.elem.canonical)
}

// String describes the type, e.g. "scalar(int64->string)".
func (e *EntityType) String() string {
	return fmt.Sprintf("%s(%s->%s)", e.kind, e.source, e.canonical)
}

// CanConvertTo reports whether a source value can be converted to target.
func (e *EntityType) CanConvertTo(target reflect.Type) bool {
	t, err := Normalize(target)
	if err != nil {
		return false
	}
	return e.resolveTo(t).ok
}

// ConvertTo converts a source value to target.
func (e *EntityType) ConvertTo(v any, target reflect.Type) (any, error) {
	t, err := Normalize(target)
	if err != nil {
		return nil, err
	}
	v = normalizeValue(v)
	if e.kind != KindScalar {
		return e.sequenceTo(v, t)
	}

	r := e.resolveTo(t)
	switch {
	case !r.ok:
		return nil, errors.Conversion(v, t.String())
	case r.direct:
		return checkedCast(v, t)
	default:
		return r.conv.Convert(v)
	}
}

// CanConvertFrom reports whether values of type t can be converted into the source type.
func (e *EntityType) CanConvertFrom(t reflect.Type) bool {
	n, err := Normalize(t)
	if err != nil {
		return false
	}
	return e.resolveFrom(n).ok
}

// ConvertFrom converts v into the source type. Values already of the source
// type pass through unchanged.
func (e *EntityType) ConvertFrom(v any) (any, error) {
	v = normalizeValue(v)
	if v == nil {
		return nil, errors.Conversion(v, e.source.String())
	}
	if e.kind != KindScalar {
		return e.sequenceFrom(v)
	}

	r := e.resolveFrom(reflect.TypeOf(v))
	switch {
	case !r.ok:
		return nil, errors.Conversion(v, e.source.String())
	case r.direct:
		return v, nil
	default:
		return r.conv.Convert(v)
	}
}

// resolveTo memoizes the lookup for a normalized target type.
func (e *EntityType) resolveTo(t reflect.Type) resolution {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.to[t]; ok {
		return r
	}
	r := e.computeTo(t)
	e.to[t] = r
	return r
}

func (e *EntityType) computeTo(t reflect.Type) resolution {
	if assignable(e.source, t) {
		return resolution{ok: true, direct: true}
	}
	switch e.kind {
	case KindArray, KindTable:
		if t == TableType {
			return resolution{ok: true}
		}
		if isSequence(t) && e.elem.CanConvertFrom(t.Elem()) && e.elem.CanConvertTo(t.Elem()) {
			return resolution{ok: true}
		}
		return resolution{}
	}
	if e.same {
		// Checked cast: succeeds for values whose runtime type fits t.
		return resolution{ok: assignable(t, e.canonical), direct: true}
	}
	if c, ok := e.provider.Find(e.source, t); ok {
		return resolution{ok: true, conv: c}
	}
	return resolution{}
}

// resolveFrom memoizes the lookup for a normalized origin type.
func (e *EntityType) resolveFrom(t reflect.Type) resolution {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.from[t]; ok {
		return r
	}
	r := e.computeFrom(t)
	e.from[t] = r
	return r
}

func (e *EntityType) computeFrom(t reflect.Type) resolution {
	if assignable(t, e.source) {
		return resolution{ok: true, direct: true}
	}
	switch e.kind {
	case KindArray, KindTable:
		if t == TableType {
			return resolution{ok: true}
		}
		if isSequence(t) && e.elem.CanConvertFrom(t.Elem()) {
			return resolution{ok: true}
		}
		return resolution{}
	}
	if c, ok := e.provider.Find(t, e.source); ok {
		return resolution{ok: true, conv: c}
	}
	return resolution{}
}

// checkedCast returns v when its runtime type fits t.
func checkedCast(v any, t reflect.Type) (any, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return nil, nil
		}
		return nil, errors.Conversion(v, t.String())
	}
	if !assignable(reflect.TypeOf(v), t) {
		return nil, errors.Conversion(v, t.String())
	}
	return v, nil
}

// sequenceTo converts a native sequence to a table or another sequence type.
func (e *EntityType) sequenceTo(v any, t reflect.Type) (any, error) {
	if v == nil || !isSequence(reflect.TypeOf(v)) {
		return nil, errors.Conversion(v, t.String())
	}
	rv := reflect.ValueOf(v)

	if t == TableType {
		table := Table{
			Columns: arrayColumns(rv.Type().Elem()),
			Rows:    make([]Row, 0, rv.Len()),
		}
		for i := 0; i < rv.Len(); i++ {
			table.Rows = append(table.Rows, Row{
				IndexColumn: i,
				ValueColumn: rv.Index(i).Interface(),
			})
		}
		return table, nil
	}

	r := e.resolveTo(t)
	if !r.ok {
		return nil, errors.Conversion(v, t.String())
	}
	if assignable(rv.Type(), t) {
		return v, nil
	}

	out, err := makeSequence(t, rv.Len())
	if err != nil {
		return nil, err
	}
	te := t.Elem()
	for i := 0; i < rv.Len(); i++ {
		ev, err := e.elem.ConvertTo(rv.Index(i).Interface(), te)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConversion, fmt.Sprintf("element %d", i))
		}
		if err := setElem(out.Index(i), ev); err != nil {
			return nil, err
		}
	}
	return out.Interface(), nil
}

// sequenceFrom converts a table or foreign sequence into the native sequence type.
func (e *EntityType) sequenceFrom(v any) (any, error) {
	if table, ok := v.(Table); ok {
		return e.fromTable(table)
	}
	rt := reflect.TypeOf(v)
	if !isSequence(rt) {
		return nil, errors.Conversion(v, e.source.String())
	}
	if assignable(rt, e.source) {
		return v, nil
	}

	rv := reflect.ValueOf(v)
	out, err := makeSequence(e.source, rv.Len())
	if err != nil {
		return nil, err
	}
	for i := 0; i < rv.Len(); i++ {
		ev, err := e.elem.ConvertFrom(rv.Index(i).Interface())
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConversion, fmt.Sprintf("element %d", i))
		}
		if err := setElem(out.Index(i), ev); err != nil {
			return nil, err
		}
	}
	return out.Interface(), nil
}

// fromTable rebuilds the native sequence from Index/Value rows.
func (e *EntityType) fromTable(table Table) (any, error) {
	type cellAt struct {
		index int
		value any
	}
	cells := make([]cellAt, 0, len(table.Rows))
	for _, row := range table.Rows {
		idx, err := cast.ToIntE(row[IndexColumn])
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConversion, "table row has no usable "+IndexColumn)
		}
		cells = append(cells, cellAt{index: idx, value: row[ValueColumn]})
	}
	sort.SliceStable(cells, func(i, j int) bool { return cells[i].index < cells[j].index })

	out, err := makeSequence(e.source, len(cells))
	if err != nil {
		return nil, err
	}
	for i, c := range cells {
		if c.index != i {
			return nil, errors.Newf(errors.ErrorTypeConversion, "table index %d out of sequence at row %d", c.index, i)
		}
		ev, err := e.elem.ConvertFrom(c.value)
		if err != nil {
			return nil, err
		}
		if err := setElem(out.Index(i), ev); err != nil {
			return nil, err
		}
	}
	return out.Interface(), nil
}

// makeSequence allocates a slice of length n, or an array whose length must be n.
func makeSequence(t reflect.Type, n int) (reflect.Value, error) {
	if t.Kind() == reflect.Slice {
		return reflect.MakeSlice(t, n, n), nil
	}
	if t.Len() != n {
		return reflect.Value{}, errors.Newf(errors.ErrorTypeConversion, "array %s cannot hold %d elements", t, n)
	}
	return reflect.New(t).Elem(), nil
}

// setElem stores v into slot, leaving the zero value for nil.
func setElem(slot reflect.Value, v any) error {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(slot.Type()) {
		return errors.Conversion(v, slot.Type().String())
	}
	slot.Set(rv)
	return nil
}
