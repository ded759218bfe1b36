// Package matchers implements the composable request matchers of reqtrap.
//
// Each match condition lives twice: as a serializable descriptor (the value
// that crosses the remote control channel and the rules file) and as a built
// RequestMatcher (the runtime predicate with a human-readable explanation).
// Descriptors are immutable value objects; building compiles whatever the
// descriptor stored in source form, e.g. a regex pattern.
package matchers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reqtrap/reqtrap/pkg/traffic"
)

// RequestMatcher is a runtime predicate over a request paired with a prose
// explanation. Body-dependent matchers read through the request's buffered
// body accessors, which is why Matches can fail (malformed form data, body
// over the buffering cap).
type RequestMatcher interface {
	Matches(ctx context.Context, req *traffic.Request) (bool, error)
	Explain() string
}

// Descriptor is the serializable configuration of one matcher. BuildMatcher
// compiles it into a live predicate; compilation failures (bad regex, bad
// expression) surface here, at construction time.
type Descriptor interface {
	Type() string
	BuildMatcher() (RequestMatcher, error)
}

// Wire type tags, one per descriptor variant.
const (
	TypeWildcard   = "wildcard"
	TypeMethod     = "method"
	TypeSimplePath = "simple-path"
	TypeRegexPath  = "regex-path"
	TypeHeader     = "header"
	TypeQuery      = "query"
	TypeFormData   = "form-data"
	TypeRawBody    = "raw-body"
	TypeJSONPath   = "json-path"
	TypeExpr       = "expr"
)

// ErrUnknownType is returned when a wire payload carries a type tag with no
// registered descriptor.
var ErrUnknownType = errors.New("unknown matcher type")

// descriptorTypes maps wire tags to descriptor constructors. One entry per
// variant; Deserialize refuses anything else.
var descriptorTypes = map[string]func() Descriptor{
	TypeWildcard:   func() Descriptor { return &WildcardMatcher{} },
	TypeMethod:     func() Descriptor { return &MethodMatcher{} },
	TypeSimplePath: func() Descriptor { return &SimplePathMatcher{} },
	TypeRegexPath:  func() Descriptor { return &RegexPathMatcher{} },
	TypeHeader:     func() Descriptor { return &HeaderMatcher{} },
	TypeQuery:      func() Descriptor { return &QueryMatcher{} },
	TypeFormData:   func() Descriptor { return &FormDataMatcher{} },
	TypeRawBody:    func() Descriptor { return &RawBodyMatcher{} },
	TypeJSONPath:   func() Descriptor { return &JSONPathMatcher{} },
	TypeExpr:       func() Descriptor { return &ExprMatcher{} },
}

// validator lets descriptors check required fields at deserialization time,
// before anything tries to build them.
type validator interface {
	validate() error
}

// Serialize converts a descriptor to its wire form, a JSON object tagged with
// the descriptor's type.
func Serialize(d Descriptor) (json.RawMessage, error) {
	fields, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("serializing %s matcher: %w", d.Type(), err)
	}

	var obj map[string]any
	if err := json.Unmarshal(fields, &obj); err != nil {
		return nil, fmt.Errorf("serializing %s matcher: %w", d.Type(), err)
	}
	obj["type"] = d.Type()
	return json.Marshal(obj)
}

// Deserialize reconstructs a descriptor from its wire form. The payload's
// type tag must name a registered variant, and the variant's required fields
// must be present.
func Deserialize(data []byte) (Descriptor, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding matcher: %w", err)
	}

	newDescriptor, ok := descriptorTypes[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, env.Type)
	}

	d := newDescriptor()
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("decoding %s matcher: %w", env.Type, err)
	}
	if v, ok := d.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("invalid %s matcher: %w", env.Type, err)
		}
	}
	return d, nil
}

// matcherFunc is the plain {predicate, explanation} pairing every built
// matcher reduces to.
type matcherFunc struct {
	explain string
	matches func(ctx context.Context, req *traffic.Request) (bool, error)
}

func (m *matcherFunc) Matches(ctx context.Context, req *traffic.Request) (bool, error) {
	return m.matches(ctx, req)
}

func (m *matcherFunc) Explain() string {
	return m.explain
}
