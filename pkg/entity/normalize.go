package entity

import (
	"reflect"

	"github.com/ajitpratap0/resbridge/pkg/errors"
)

// maxUnwrap bounds pointer unwrapping; pointer chains deeper than this are rejected.
const maxUnwrap = 8

// Normalize maps a type to its canonical value form by unwrapping pointer
// indirection, so *int64 and **int64 both normalize to int64. It is
// idempotent: Normalize(Normalize(t)) == Normalize(t). Every type comparison
// in this package happens on normalized types.
func Normalize(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "entity: nil reflect.Type provided")
	}
	for i := 0; i < maxUnwrap; i++ {
		if t.Kind() != reflect.Ptr {
			return t, nil
		}
		t = t.Elem()
	}
	if t.Kind() == reflect.Ptr {
		return nil, errors.Newf(errors.ErrorTypeValidation, "entity: pointer chain too deep for %s", t)
	}
	return t, nil
}

// mustNormalize is Normalize for types that are known to be non-nil.
func mustNormalize(t reflect.Type) reflect.Type {
	n, err := Normalize(t)
	if err != nil {
		return t
	}
	return n
}

// normalizeValue dereferences pointer values so they match their normalized
// type. A nil pointer yields nil.
func normalizeValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for i := 0; i < maxUnwrap && rv.Kind() == reflect.Ptr; i++ {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

// assignable reports whether a value of type from can be assigned to to.
func assignable(from, to reflect.Type) bool {
	return from != nil && to != nil && from.AssignableTo(to)
}

// isSequence reports whether t is a native slice or array.
func isSequence(t reflect.Type) bool {
	return t != nil && (t.Kind() == reflect.Slice || t.Kind() == reflect.Array)
}
