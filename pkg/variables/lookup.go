package variables

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// ErrVariableNotFound is returned by Decode when the path does not resolve.
var ErrVariableNotFound = errors.New("variable not found")

// Lookup resolves a dotted path ("employeeData.personalInfo.email") inside vars.
// Numeric segments index into lists.
func Lookup(vars domain.Variables, path string) (any, bool) {
	var current any = map[string]any(vars)
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			current = v
		case domain.Variables:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}
	return current, true
}

// Decode extracts the value at path into out using json field names.
// Input is weakly typed: numeric strings fill numbers and date strings fill time.Time.
func Decode(vars domain.Variables, path string, out any) error {
	v, ok := Lookup(vars, path)
	if !ok || v == nil {
		return fmt.Errorf("%s: %w", path, ErrVariableNotFound)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
