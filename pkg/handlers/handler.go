// Package handlers implements the response handlers a rule can execute once
// its matchers accept a request. Handlers follow the same descriptor/build
// split as matchers: the serializable descriptor crosses the control channel,
// BuildHandler turns it into the live callable.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/reqtrap/reqtrap/pkg/traffic"
)

// Handler executes a rule's response behavior for one request.
type Handler interface {
	Handle(ctx context.Context, w http.ResponseWriter, req *traffic.Request) error
	Explain() string
}

// Descriptor is the serializable configuration of one handler.
type Descriptor interface {
	Type() string
	BuildHandler() (Handler, error)
}

// Wire type tags.
const (
	TypeFixed           = "fixed"
	TypeCloseConnection = "close-connection"
	TypeTimeout         = "timeout"
)

// ErrUnknownType is returned when a wire payload carries a type tag with no
// registered handler.
var ErrUnknownType = errors.New("unknown handler type")

var descriptorTypes = map[string]func() Descriptor{
	TypeFixed:           func() Descriptor { return &FixedResponseData{} },
	TypeCloseConnection: func() Descriptor { return &CloseConnectionData{} },
	TypeTimeout:         func() Descriptor { return &TimeoutData{} },
}

type validator interface {
	validate() error
}

// Serialize converts a descriptor to its type-tagged wire form.
func Serialize(d Descriptor) (json.RawMessage, error) {
	fields, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("serializing %s handler: %w", d.Type(), err)
	}
	var obj map[string]any
	if err := json.Unmarshal(fields, &obj); err != nil {
		return nil, fmt.Errorf("serializing %s handler: %w", d.Type(), err)
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
		return nil, fmt.Errorf("decoding handler: %w", err)
	}
	newDescriptor, ok := descriptorTypes[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, env.Type)
	}
	d := newDescriptor()
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("decoding %s handler: %w", env.Type, err)
	}
	if v, ok := d.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("invalid %s handler: %w", env.Type, err)
		}
	}
	return d, nil
}
