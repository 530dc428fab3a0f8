package variables

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/aretw0/bpmgate/pkg/domain"
)

// MaxDepth is how deeply values may nest. Normalize leaves deeper values untouched
// and Validate reports them, which also stops self-referencing values.
const MaxDepth = 64

// Normalize returns a copy of vars in cross-language friendly form.
func Normalize(vars domain.Variables) domain.Variables {
	if vars == nil {
		return nil
	}
	out := make(domain.Variables, len(vars))
	for k, v := range vars {
		out[k] = normalizeValue(v, 0)
	}
	return out
}

func normalizeValue(v any, depth int) any {
	if depth > MaxDepth {
		return v
	}
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.UTC().Format(DateLayout)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(DateLayout)
	case float32:
		return float64(val)
	case string, bool, float64, int, int32, int64, uint, uint32, uint64, json.Number:
		return val
	case domain.Variables:
		return normalizeMap(val, depth)
	case map[string]any:
		return normalizeMap(val, depth)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item, depth+1)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalizeValue(rv.Index(i).Interface(), depth+1)
		}
		return out
	case reflect.Map, reflect.Struct, reflect.Pointer:
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return v
		}
		var tree any
		if err := json.Unmarshal(data, &tree); err != nil {
			return v
		}
		return normalizeValue(tree, depth+1)
	}
	return v
}

func normalizeMap(m map[string]any, depth int) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v, depth+1)
	}
	return out
}

// Validate lists the problems that would prevent vars from being serialised.
// An empty result means the map is valid.
func Validate(vars domain.Variables) []string {
	var errs []string
	for k, v := range vars {
		if strings.TrimSpace(k) == "" {
			errs = append(errs, "variable name cannot be empty")
			continue
		}
		if path, problem := findUnserialisable(k, reflect.ValueOf(v), 0); problem != "" {
			errs = append(errs, fmt.Sprintf("variable %q %s (at %s)", k, problem, path))
		}
	}
	return errs
}

// findUnserialisable returns the path of the first offending value and what is wrong with it.
func findUnserialisable(path string, rv reflect.Value, depth int) (string, string) {
	if !rv.IsValid() {
		return "", ""
	}
	if depth > MaxDepth {
		return path, fmt.Sprintf("is nested deeper than %d levels", MaxDepth)
	}
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return path, "is not serializable"
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return "", ""
		}
		return findUnserialisable(path, rv.Elem(), depth+1)
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if p, problem := findUnserialisable(fmt.Sprintf("%s.%v", path, iter.Key().Interface()), iter.Value(), depth+1); problem != "" {
				return p, problem
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if p, problem := findUnserialisable(fmt.Sprintf("%s[%d]", path, i), rv.Index(i), depth+1); problem != "" {
				return p, problem
			}
		}
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if p, problem := findUnserialisable(path+"."+t.Field(i).Name, rv.Field(i), depth+1); problem != "" {
				return p, problem
			}
		}
	}
	return "", ""
}
