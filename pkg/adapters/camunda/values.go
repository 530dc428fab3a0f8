package camunda

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/variables"
)

// Camunda value types.
const (
	TypeString  = "String"
	TypeBoolean = "Boolean"
	TypeInteger = "Integer"
	TypeLong    = "Long"
	TypeShort   = "Short"
	TypeDouble  = "Double"
	TypeDate    = "Date"
	TypeJSON    = "Json"
	TypeNull    = "Null"
	TypeObject  = "Object"
)

// DateLayout is the date format of the engine REST API.
const DateLayout = "2006-01-02T15:04:05.000-0700"

// Value is a typed variable on the wire.
type Value struct {
	Value     any            `json:"value"`
	Type      string         `json:"type"`
	ValueInfo map[string]any `json:"valueInfo,omitempty"`
}

// ToValue converts a Go value into its typed wire form.
// Maps, slices and structs travel as Json strings.
func ToValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Value{Type: TypeNull}, nil
	case string:
		return Value{Value: val, Type: TypeString}, nil
	case bool:
		return Value{Value: val, Type: TypeBoolean}, nil
	case int:
		if val >= math.MinInt32 && val <= math.MaxInt32 {
			return Value{Value: val, Type: TypeInteger}, nil
		}
		return Value{Value: int64(val), Type: TypeLong}, nil
	case int8, int16, int32, uint8, uint16:
		return Value{Value: val, Type: TypeInteger}, nil
	case int64, uint32, uint, uint64:
		return Value{Value: val, Type: TypeLong}, nil
	case float32:
		return Value{Value: float64(val), Type: TypeDouble}, nil
	case float64:
		return Value{Value: val, Type: TypeDouble}, nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Value{Value: i, Type: TypeLong}, nil
		}
		f, err := val.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Value{Value: f, Type: TypeDouble}, nil
	case time.Time:
		return Value{Value: val.Format(DateLayout), Type: TypeDate}, nil
	case *time.Time:
		if val == nil {
			return Value{Type: TypeNull}, nil
		}
		return Value{Value: val.Format(DateLayout), Type: TypeDate}, nil
	}

	data, err := json.Marshal(variables.Normalize(domain.Variables{"v": v})["v"])
	if err != nil {
		return Value{}, fmt.Errorf("encode %s as json: %w", reflect.TypeOf(v), err)
	}
	return Value{Value: string(data), Type: TypeJSON}, nil
}

// FromValue converts a typed wire value into a Go value.
// Integers become int64, Doubles float64, Dates time.Time and Json a decoded tree.
func FromValue(v Value) (any, error) {
	if v.Value == nil {
		return nil, nil
	}

	switch strings.ToLower(v.Type) {
	case "null":
		return nil, nil
	case "string":
		return fmt.Sprint(v.Value), nil
	case "boolean":
		if b, ok := v.Value.(bool); ok {
			return b, nil
		}
		return strings.EqualFold(fmt.Sprint(v.Value), "true"), nil
	case "integer", "long", "short":
		return toInt64(v.Value)
	case "double":
		return toFloat64(v.Value)
	case "date":
		s := fmt.Sprint(v.Value)
		t, ok := variables.ParseTime(s)
		if !ok {
			return nil, fmt.Errorf("invalid date %q", s)
		}
		return t, nil
	case "json":
		return decodeJSONString(v.Value)
	case "object":
		if format, _ := v.ValueInfo["serializationDataFormat"].(string); format == "application/json" {
			return decodeJSONString(v.Value)
		}
		return v.Value, nil
	default:
		return v.Value, nil
	}
}

// ToValues converts a variable map into typed wire values.
func ToValues(vars domain.Variables) (map[string]Value, error) {
	out := make(map[string]Value, len(vars))
	for k, v := range vars {
		tv, err := ToValue(v)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", k, err)
		}
		out[k] = tv
	}
	return out, nil
}

// FromValues converts typed wire values into a variable map.
func FromValues(values map[string]Value) (domain.Variables, error) {
	out := make(domain.Variables, len(values))
	for k, v := range values {
		val, err := FromValue(v)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		return int64(f), err
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	}
	return 0, fmt.Errorf("not an integer: %v", v)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

func decodeJSONString(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid json value: %w", err)
	}
	return out, nil
}

// engineTime decodes the engine's date strings; null stays zero.
type engineTime struct {
	time.Time
}

func (t *engineTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, ok := variables.ParseTime(s)
	if !ok {
		return fmt.Errorf("invalid engine date %q", s)
	}
	t.Time = parsed
	return nil
}

func (t *engineTime) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}
