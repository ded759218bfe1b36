// Package wire converts rule definitions to and from their transport-neutral
// JSON representation, so rules can cross a process boundary (the admin API,
// a rules file) and be rebuilt into live matchers on the receiving side.
//
// Every descriptor on the wire is a JSON object tagged with "type"; each
// descriptor family owns the tag-to-constructor table, and an unrecognized
// tag fails deserialization outright rather than producing a no-op rule.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reqtrap/reqtrap/pkg/completion"
	"github.com/reqtrap/reqtrap/pkg/handlers"
	"github.com/reqtrap/reqtrap/pkg/matchers"
	"github.com/reqtrap/reqtrap/pkg/rule"
)

// ErrMissingHandler is returned when a wire payload has no handler object.
var ErrMissingHandler = errors.New("rule definition has no handler")

// ruleEnvelope is the wire shape of one rule definition.
type ruleEnvelope struct {
	Matchers          []json.RawMessage `json:"matchers"`
	Handler           json.RawMessage   `json:"handler"`
	CompletionChecker json.RawMessage   `json:"completionChecker,omitempty"`
}

// SerializeRuleData converts a rule configuration to its wire form. The
// completionChecker field is omitted when the config has no checker.
func SerializeRuleData(cfg *rule.Config) ([]byte, error) {
	env := ruleEnvelope{
		Matchers: make([]json.RawMessage, 0, len(cfg.Matchers)),
	}

	for _, m := range cfg.Matchers {
		raw, err := matchers.Serialize(m)
		if err != nil {
			return nil, err
		}
		env.Matchers = append(env.Matchers, raw)
	}

	if cfg.Handler == nil {
		return nil, ErrMissingHandler
	}
	raw, err := handlers.Serialize(cfg.Handler)
	if err != nil {
		return nil, err
	}
	env.Handler = raw

	if cfg.Completion != nil {
		raw, err := completion.Serialize(cfg.Completion)
		if err != nil {
			return nil, err
		}
		env.CompletionChecker = raw
	}

	return json.Marshal(env)
}

// DeserializeRuleData rebuilds a rule configuration from its wire form. All
// type tags must name registered variants; anything else is a construction
// error surfaced to the caller, never a silently inert rule.
func DeserializeRuleData(data []byte) (*rule.Config, error) {
	var env ruleEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding rule definition: %w", err)
	}

	cfg := &rule.Config{}

	for i, raw := range env.Matchers {
		m, err := matchers.Deserialize(raw)
		if err != nil {
			return nil, fmt.Errorf("matcher %d: %w", i, err)
		}
		cfg.Matchers = append(cfg.Matchers, m)
	}

	if len(env.Handler) == 0 {
		return nil, ErrMissingHandler
	}
	h, err := handlers.Deserialize(env.Handler)
	if err != nil {
		return nil, err
	}
	cfg.Handler = h

	if len(env.CompletionChecker) > 0 {
		c, err := completion.Deserialize(env.CompletionChecker)
		if err != nil {
			return nil, err
		}
		cfg.Completion = c
	}

	return cfg, nil
}
