package entity

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// StandardFamily is the family name under which Standard is registered.
const StandardFamily = "standard"

// Calendar is a broken-down, zone-qualified representation of an instant.
type Calendar struct {
	Year       int        `json:"year"`
	Month      time.Month `json:"month"`
	Day        int        `json:"day"`
	Hour       int        `json:"hour"`
	Minute     int        `json:"minute"`
	Second     int        `json:"second"`
	Nanosecond int        `json:"nanosecond"`
	Location   string     `json:"location"`
}

// CalendarOf breaks t down in its own location.
func CalendarOf(t time.Time) Calendar {
	return Calendar{
		Year:       t.Year(),
		Month:      t.Month(),
		Day:        t.Day(),
		Hour:       t.Hour(),
		Minute:     t.Minute(),
		Second:     t.Second(),
		Nanosecond: t.Nanosecond(),
		Location:   t.Location().String(),
	}
}

// Time reassembles the instant. An empty location means UTC.
func (c Calendar) Time() (time.Time, error) {
	loc := time.UTC
	if c.Location != "" && c.Location != "UTC" {
		l, err := time.LoadLocation(c.Location)
		if err != nil {
			return time.Time{}, err
		}
		loc = l
	}
	return time.Date(c.Year, c.Month, c.Day, c.Hour, c.Minute, c.Second, c.Nanosecond, loc), nil
}

// Standard returns the standard converter table: string to and from every
// integer width, floats, decimals and booleans; numbers to booleans (zero is
// false); booleans to every integer width; time to and from Calendar, RFC 3339
// strings and unix milliseconds; durations to and from strings.
//
// Callers receive a fresh slice and may append domain converters to it.
func Standard() []Converter {
	table := []Converter{
		Func(func(s string) (int, error) { v, err := strconv.ParseInt(s, 10, strconv.IntSize); return int(v), err }),
		Func(func(s string) (int8, error) { v, err := strconv.ParseInt(s, 10, 8); return int8(v), err }),
		Func(func(s string) (int16, error) { v, err := strconv.ParseInt(s, 10, 16); return int16(v), err }),
		Func(func(s string) (int32, error) { v, err := strconv.ParseInt(s, 10, 32); return int32(v), err }),
		Func(func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }),
		Func(func(s string) (uint, error) { v, err := strconv.ParseUint(s, 10, strconv.IntSize); return uint(v), err }),
		Func(func(s string) (uint8, error) { v, err := strconv.ParseUint(s, 10, 8); return uint8(v), err }),
		Func(func(s string) (uint16, error) { v, err := strconv.ParseUint(s, 10, 16); return uint16(v), err }),
		Func(func(s string) (uint32, error) { v, err := strconv.ParseUint(s, 10, 32); return uint32(v), err }),
		Func(func(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }),
		Func(func(s string) (float32, error) { v, err := strconv.ParseFloat(s, 32); return float32(v), err }),
		Func(func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }),
		Func(strconv.ParseBool),
		Func(decimal.NewFromString),

		Func(toString[int]),
		Func(toString[int8]),
		Func(toString[int16]),
		Func(toString[int32]),
		Func(toString[int64]),
		Func(toString[uint]),
		Func(toString[uint8]),
		Func(toString[uint16]),
		Func(toString[uint32]),
		Func(toString[uint64]),
		Func(toString[float32]),
		Func(toString[float64]),
		Func(toString[bool]),
		Total(func(d decimal.Decimal) string { return d.String() }),

		Total(decimal.NewFromFloat),
		Total(func(d decimal.Decimal) float64 { f, _ := d.Float64(); return f }),

		Total(func(t time.Time) Calendar { return CalendarOf(t) }),
		Func(func(c Calendar) (time.Time, error) { return c.Time() }),
		Total(func(t time.Time) string { return t.Format(time.RFC3339Nano) }),
		Func(func(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }),
		Total(func(t time.Time) int64 { return t.UnixMilli() }),
		Total(time.UnixMilli),
		Total(func(d time.Duration) string { return d.String() }),
		Func(time.ParseDuration),
	}
	table = append(table, numberBool[int]()...)
	table = append(table, numberBool[int8]()...)
	table = append(table, numberBool[int16]()...)
	table = append(table, numberBool[int32]()...)
	table = append(table, numberBool[int64]()...)
	table = append(table, numberBool[uint]()...)
	table = append(table, numberBool[uint8]()...)
	table = append(table, numberBool[uint16]()...)
	table = append(table, numberBool[uint32]()...)
	table = append(table, numberBool[uint64]()...)
	table = append(table, numberBool[float32]()...)
	table = append(table, numberBool[float64]()...)
	return table
}

// NewStandardProvider returns a provider holding only the standard table.
func NewStandardProvider() *Provider {
	return NewProvider(StandardFamily, Standard())
}

type number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

func toString[N number | bool](v N) (string, error) {
	return cast.ToStringE(v)
}

// numberBool bridges a numeric width and bool in both directions.
func numberBool[N number]() []Converter {
	return []Converter{
		Total(func(v N) bool { return v != 0 }),
		Total(func(b bool) N {
			if b {
				return 1
			}
			return 0
		}),
	}
}
