package matchers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/ohler55/ojg/jp"

	"github.com/reqtrap/reqtrap/pkg/traffic"
)

// JSONPathMatcher matches requests whose JSON body satisfies every configured
// JSONPath condition: the path must select at least one value equal to the
// expected one. A body that is not valid JSON simply does not match.
type JSONPathMatcher struct {
	Conditions map[string]any `json:"conditions"`
}

func (*JSONPathMatcher) Type() string { return TypeJSONPath }

func (d *JSONPathMatcher) validate() error {
	if len(d.Conditions) == 0 {
		return errors.New("at least one JSONPath condition is required")
	}
	for path := range d.Conditions {
		if _, err := jp.ParseString(path); err != nil {
			return fmt.Errorf("invalid JSONPath expression %q: %w", path, err)
		}
	}
	return nil
}

func (d *JSONPathMatcher) BuildMatcher() (RequestMatcher, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}

	type condition struct {
		expr     jp.Expr
		expected any
	}
	conditions := make([]condition, 0, len(d.Conditions))
	for path, expected := range d.Conditions {
		expr, err := jp.ParseString(path)
		if err != nil {
			return nil, fmt.Errorf("invalid JSONPath expression %q: %w", path, err)
		}
		conditions = append(conditions, condition{expr: expr, expected: expected})
	}

	return &matcherFunc{
		explain: fmt.Sprintf("with a JSON body matching %v", d.Conditions),
		matches: func(_ context.Context, req *traffic.Request) (bool, error) {
			body, err := req.BodyBytes()
			if err != nil {
				return false, fmt.Errorf("reading body: %w", err)
			}

			var data any
			if err := json.Unmarshal(body, &data); err != nil {
				return false, nil
			}

			for _, c := range conditions {
				if !anyValueEqual(c.expr.Get(data), c.expected) {
					return false, nil
				}
			}
			return true, nil
		},
	}, nil
}

func anyValueEqual(values []any, expected any) bool {
	for _, v := range values {
		if jsonValuesEqual(v, expected) {
			return true
		}
	}
	return false
}

// jsonValuesEqual compares two decoded JSON values, coercing numeric types so
// an int from a config file equals a float64 from a request body.
func jsonValuesEqual(actual, expected any) bool {
	if reflect.DeepEqual(actual, expected) {
		return true
	}
	a, aok := toFloat64(actual)
	e, eok := toFloat64(expected)
	return aok && eok && a == e
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
