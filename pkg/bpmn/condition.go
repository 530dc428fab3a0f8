package bpmn

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/bpmgate/pkg/domain"
)

var comparison = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*(==|!=)\s*(.+)$`)
var identifier = regexp.MustCompile(`^!?\s*[A-Za-z_][A-Za-z0-9_]*$`)

// EvaluateCondition evaluates the small expression language accepted on sequence flows:
// ${name}, ${!name}, ${name == literal} and ${name != literal}. Literals are quoted
// strings, numbers, true, false or null. An empty expression is true.
func EvaluateCondition(expr string, vars domain.Variables) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}
	if !strings.HasPrefix(expr, "${") || !strings.HasSuffix(expr, "}") {
		return false, fmt.Errorf("unsupported expression %q", expr)
	}
	body := strings.TrimSpace(expr[2 : len(expr)-1])

	if m := comparison.FindStringSubmatch(body); m != nil {
		eq := equalsLiteral(vars[m[1]], strings.TrimSpace(m[3]))
		if m[2] == "!=" {
			return !eq, nil
		}
		return eq, nil
	}
	if identifier.MatchString(body) {
		negate := strings.HasPrefix(body, "!")
		name := strings.TrimSpace(strings.TrimPrefix(body, "!"))
		return truthy(vars[name]) != negate, nil
	}
	return false, fmt.Errorf("unsupported expression %q", expr)
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(val, "true")
	}
	return false
}

func equalsLiteral(v any, lit string) bool {
	switch {
	case lit == "null":
		return v == nil
	case lit == "true" || lit == "false":
		return truthy(v) == (lit == "true") && v != nil
	case len(lit) >= 2 && (lit[0] == '\'' || lit[0] == '"') && lit[len(lit)-1] == lit[0]:
		s, ok := v.(string)
		return ok && s == lit[1:len(lit)-1]
	}
	want, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return false
	}
	got, err := strconv.ParseFloat(strings.TrimSpace(fmt.Sprint(v)), 64)
	return err == nil && got == want
}
