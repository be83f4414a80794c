package entity

import (
	"reflect"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var namedTypes = map[string]reflect.Type{
	"string":   reflect.TypeOf((*string)(nil)).Elem(),
	"int64":    reflect.TypeOf((*int64)(nil)).Elem(),
	"float64":  reflect.TypeOf((*float64)(nil)).Elem(),
	"bool":     reflect.TypeOf((*bool)(nil)).Elem(),
	"duration": reflect.TypeOf((*time.Duration)(nil)).Elem(),
	"decimal":  reflect.TypeOf((*decimal.Decimal)(nil)).Elem(),
	"time":     reflect.TypeOf((*time.Time)(nil)).Elem(),
	"strings":  reflect.TypeOf((*[]string)(nil)).Elem(),
	"table":    TableType,
}

// TypeByName resolves the value type names accepted in connector options.
func TypeByName(name string) (reflect.Type, bool) {
	t, ok := namedTypes[name]
	return t, ok
}

// TypeNames lists the names TypeByName accepts, sorted.
func TypeNames() []string {
	names := make([]string, 0, len(namedTypes))
	for n := range namedTypes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
