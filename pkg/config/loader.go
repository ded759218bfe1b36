// Package config loads rule definitions from JSON or YAML files, so a rule
// set can be provisioned at startup instead of POSTed one by one through the
// admin API.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reqtrap/reqtrap/pkg/rule"
	"github.com/reqtrap/reqtrap/pkg/wire"
)

// Common errors for rules file loading.
var (
	ErrFileNotFound = errors.New("rules file not found")
	ErrEmptyFile    = errors.New("rules file is empty")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrInvalidJSON  = errors.New("invalid JSON syntax")
)

// jsonFile is the JSON shape of a rules file.
type jsonFile struct {
	Rules []json.RawMessage `json:"rules"`
}

// yamlFile is the YAML shape of a rules file. Rule bodies stay untyped here
// and are re-encoded as JSON so the wire layer owns all descriptor decoding.
type yamlFile struct {
	Rules []any `yaml:"rules"`
}

// LoadRules reads rule definitions from a file. The format is detected from
// the extension: .yaml and .yml parse as YAML, anything else as JSON. Each
// definition uses the same wire shape the admin API accepts.
func LoadRules(path string) ([]*rule.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		return ParseYAML(data)
	}
	return ParseJSON(data)
}

// ParseJSON parses a rules file in JSON form.
func ParseJSON(data []byte) ([]*rule.Config, error) {
	var file jsonFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	configs := make([]*rule.Config, 0, len(file.Rules))
	for i, raw := range file.Rules {
		cfg, err := wire.DeserializeRuleData(raw)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// ParseYAML parses a rules file in YAML form. Each rule is re-encoded as
// JSON and decoded by the wire layer, keeping one source of truth for the
// definition shape.
func ParseYAML(data []byte) ([]*rule.Config, error) {
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	configs := make([]*rule.Config, 0, len(file.Rules))
	for i, entry := range file.Rules {
		raw, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		cfg, err := wire.DeserializeRuleData(raw)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}
