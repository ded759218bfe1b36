// Package completion implements the completion-checker policies that decide
// whether a rule has handled enough requests. The engine consults a rule's
// checker when several rules match the same request; assertion callers read
// it to verify expectations.
package completion

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Checker decides whether a rule is done, given how many requests it has
// started handling.
type Checker interface {
	IsComplete(seen int) bool
	Explain() string
}

// Descriptor is the serializable configuration of one checker.
type Descriptor interface {
	Type() string
	BuildChecker() (Checker, error)
}

// Wire type tags.
const (
	TypeAlways = "always"
	TypeOnce   = "once"
	TypeTimes  = "times"
)

// ErrUnknownType is returned when a wire payload carries a type tag with no
// registered checker.
var ErrUnknownType = errors.New("unknown completion checker type")

var descriptorTypes = map[string]func() Descriptor{
	TypeAlways: func() Descriptor { return &AlwaysData{} },
	TypeOnce:   func() Descriptor { return &OnceData{} },
	TypeTimes:  func() Descriptor { return &TimesData{} },
}

// Serialize converts a descriptor to its type-tagged wire form.
func Serialize(d Descriptor) (json.RawMessage, error) {
	fields, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("serializing %s checker: %w", d.Type(), err)
	}
	var obj map[string]any
	if err := json.Unmarshal(fields, &obj); err != nil {
		return nil, fmt.Errorf("serializing %s checker: %w", d.Type(), err)
	}
	obj["type"] = d.Type()
	return json.Marshal(obj)
}

// Deserialize reconstructs a descriptor from its wire form.
func Deserialize(data []byte) (Descriptor, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding completion checker: %w", err)
	}
	newDescriptor, ok := descriptorTypes[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, env.Type)
	}
	d := newDescriptor()
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("decoding %s checker: %w", env.Type, err)
	}
	return d, nil
}

// AlwaysData configures a checker that never reports completion: the rule
// keeps handling matching requests forever.
type AlwaysData struct{}

func (*AlwaysData) Type() string { return TypeAlways }

func (*AlwaysData) BuildChecker() (Checker, error) {
	return checkerFunc{
		explain:  "always",
		complete: func(int) bool { return false },
	}, nil
}

// OnceData configures a checker that is complete after one handled request.
type OnceData struct{}

func (*OnceData) Type() string { return TypeOnce }

func (*OnceData) BuildChecker() (Checker, error) {
	return checkerFunc{
		explain:  "once",
		complete: func(seen int) bool { return seen >= 1 },
	}, nil
}

// TimesData configures a checker that is complete after Count handled
// requests.
type TimesData struct {
	Count int `json:"count"`
}

func (*TimesData) Type() string { return TypeTimes }

func (d *TimesData) BuildChecker() (Checker, error) {
	if d.Count < 1 {
		return nil, errors.New("count must be at least 1")
	}
	count := d.Count
	return checkerFunc{
		explain:  fmt.Sprintf("%d times", count),
		complete: func(seen int) bool { return seen >= count },
	}, nil
}

type checkerFunc struct {
	explain  string
	complete func(seen int) bool
}

func (c checkerFunc) IsComplete(seen int) bool { return c.complete(seen) }
func (c checkerFunc) Explain() string          { return c.explain }
