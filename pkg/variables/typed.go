package variables

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Type tags understood by TypedVariable.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeDate    = "date"
	TypeList    = "list"
	TypeObject  = "object"
)

// DateLayout is the wire format used for dates: millisecond precision, UTC, "Z" suffix.
const DateLayout = "2006-01-02T15:04:05.000Z"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// TypedVariable is a value carrying an explicit type tag.
type TypedVariable struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// String builds a string-tagged variable.
func String(v string) TypedVariable { return TypedVariable{Type: TypeString, Value: v} }

// Number builds a number-tagged variable.
func Number(v float64) TypedVariable { return TypedVariable{Type: TypeNumber, Value: v} }

// Boolean builds a boolean-tagged variable.
func Boolean(v bool) TypedVariable { return TypedVariable{Type: TypeBoolean, Value: v} }

// Date builds a date-tagged variable in DateLayout.
func Date(v time.Time) TypedVariable {
	return TypedVariable{Type: TypeDate, Value: v.UTC().Format(DateLayout)}
}

// List builds a list-tagged variable.
func List[T any](items []T) TypedVariable {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it
	}
	return TypedVariable{Type: TypeList, Value: out}
}

// Object builds an object-tagged variable.
func Object(v any) TypedVariable { return TypedVariable{Type: TypeObject, Value: v} }

// Convert returns the engine representation of the value.
// Unparseable dates fall back to the raw string and are reported on logger (which may be nil).
func (tv TypedVariable) Convert(logger *slog.Logger) (any, error) {
	if tv.Value == nil {
		return nil, nil
	}

	switch strings.ToLower(tv.Type) {
	case TypeString:
		return fmt.Sprint(tv.Value), nil
	case TypeNumber:
		return toFloat(tv.Value)
	case TypeBoolean:
		if b, ok := tv.Value.(bool); ok {
			return b, nil
		}
		return strings.EqualFold(fmt.Sprint(tv.Value), "true"), nil
	case TypeDate:
		raw := fmt.Sprint(tv.Value)
		if t, ok := ParseTime(raw); ok {
			return t, nil
		}
		if logger != nil {
			logger.Warn("failed to parse date", "value", raw)
		}
		return raw, nil
	case TypeList:
		rv := reflect.ValueOf(tv.Value)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			return tv.Value, nil
		}
		return []any{tv.Value}, nil
	default:
		return normalizeValue(tv.Value, 0), nil
	}
}

// ParseTime parses the date layouts accepted on the wire.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(fmt.Sprint(v)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", fmt.Sprint(v), err)
	}
	return f, nil
}
