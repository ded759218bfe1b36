package matchers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/reqtrap/reqtrap/pkg/traffic"
)

// ExprMatcher matches requests against a compiled boolean expression over the
// request's method, path, query parameters and headers, e.g.
//
//	method == "POST" && headers["x-api-key"] == "secret"
//
// The expression source is what crosses the wire; compilation happens per
// build and bad expressions fail there.
type ExprMatcher struct {
	Expression string `json:"expression"`
}

func (*ExprMatcher) Type() string { return TypeExpr }

func (d *ExprMatcher) validate() error {
	if d.Expression == "" {
		return errors.New("expression is required")
	}
	return nil
}

func (d *ExprMatcher) BuildMatcher() (RequestMatcher, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	program, err := expr.Compile(d.Expression, expr.Env(exprEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling expression: %w", err)
	}
	return &exprRequestMatcher{source: d.Expression, program: program}, nil
}

// exprEnv is the evaluation environment handed to each expression run.
// Header names are folded to lower case; multi-valued query parameters and
// headers expose their first value.
type exprEnv struct {
	Method  string            `expr:"method"`
	Path    string            `expr:"path"`
	Query   map[string]string `expr:"query"`
	Headers map[string]string `expr:"headers"`
}

type exprRequestMatcher struct {
	source  string
	program *vm.Program
}

func (m *exprRequestMatcher) Matches(_ context.Context, req *traffic.Request) (bool, error) {
	env := exprEnv{
		Method:  req.Method,
		Path:    req.URL.Path,
		Query:   make(map[string]string),
		Headers: make(map[string]string),
	}
	for name, values := range req.URL.Query() {
		if len(values) > 0 {
			env.Query[name] = values[0]
		}
	}
	for name, values := range req.Headers {
		if len(values) > 0 {
			env.Headers[strings.ToLower(name)] = values[0]
		}
	}

	out, err := expr.Run(m.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluating expression: %w", err)
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, want bool", out)
	}
	return matched, nil
}

func (m *exprRequestMatcher) Explain() string {
	return fmt.Sprintf("matching `%s`", m.source)
}
