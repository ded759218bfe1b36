package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqtrap/reqtrap/pkg/matchers"
	"github.com/reqtrap/reqtrap/pkg/rule"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadRulesYAML(t *testing.T) {
	path := writeTemp(t, "rules.yaml", `
rules:
  - matchers:
      - type: method
        method: GET
      - type: simple-path
        path: /users
    handler:
      type: fixed
      status: 200
      headers:
        Content-Type: application/json
      body: '[]'
    completionChecker:
      type: times
      count: 3
  - matchers: []
    handler:
      type: close-connection
`)

	configs, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, configs, 2)

	first, err := rule.New(*configs[0])
	require.NoError(t, err)
	assert.Equal(t, "Match requests making GETs for /users, and then respond with status 200 and body '[]', 3 times.", first.Explain())

	second, err := rule.New(*configs[1])
	require.NoError(t, err)
	assert.Equal(t, "Match requests for anything, and then close the connection.", second.Explain())
}

func TestLoadRulesJSON(t *testing.T) {
	path := writeTemp(t, "rules.json", `{
		"rules": [
			{
				"matchers": [{"type": "regex-path", "pattern": "^/users/\\d+$"}],
				"handler": {"type": "fixed", "status": 404}
			}
		]
	}`)

	configs, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	require.Len(t, configs[0].Matchers, 1)
	assert.Equal(t, matchers.TypeRegexPath, configs[0].Matchers[0].Type())
}

func TestLoadRulesErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := LoadRules(writeTemp(t, "empty.yaml", "  \n"))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := LoadRules(writeTemp(t, "bad.yaml", "rules: [\n"))
		assert.ErrorIs(t, err, ErrInvalidYAML)
	})

	t.Run("bad json", func(t *testing.T) {
		_, err := LoadRules(writeTemp(t, "bad.json", "{"))
		assert.ErrorIs(t, err, ErrInvalidJSON)
	})

	t.Run("unknown matcher type", func(t *testing.T) {
		_, err := LoadRules(writeTemp(t, "rules.yaml", `
rules:
  - matchers:
      - type: telepathy
    handler:
      type: fixed
      status: 200
`))
		assert.ErrorIs(t, err, matchers.ErrUnknownType)
	})

	t.Run("missing handler", func(t *testing.T) {
		_, err := LoadRules(writeTemp(t, "rules.yaml", `
rules:
  - matchers:
      - type: wildcard
`))
		assert.Error(t, err)
	})
}
