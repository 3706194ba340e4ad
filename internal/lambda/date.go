package lambda

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"

	"github.com/roach88/aqlc/internal/queryir"
)

// ParseDate parses a date literal in any common layout. Values without a
// zone are read in loc. Ambiguous numeric dates are read month first.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return dateparse.ParseIn(raw, loc, dateparse.PreferMonthFirst(true))
}

// Coerce converts a loosely typed parameter value, as read from YAML, CUE
// or the command line, to the Go value matching t.
func Coerce(v any, t queryir.Type, loc *time.Location) (any, error) {
	switch t {
	case queryir.TypeDate:
		switch d := v.(type) {
		case time.Time:
			return d, nil
		case string:
			parsed, err := ParseDate(d, loc)
			if err != nil {
				return nil, fmt.Errorf("invalid date %q: %w", d, err)
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("expected a date, got %T", v)
	case queryir.TypeNumber:
		switch n := v.(type) {
		case int, int64, float64:
			return n, nil
		case int32:
			return int(n), nil
		case uint64:
			return int64(n), nil
		}
		return nil, fmt.Errorf("expected a number, got %T", v)
	case queryir.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected a string, got %T", v)
	case queryir.TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected a bool, got %T", v)
	case queryir.TypeList:
		if l, ok := v.([]any); ok {
			return l, nil
		}
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	return v, nil
}
