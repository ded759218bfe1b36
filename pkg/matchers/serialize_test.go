package matchers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqtrap/reqtrap/pkg/traffic"
)

// sample is a request each serialized variant is checked against after a
// round trip: the rebuilt matcher must agree with the original on both a
// matching and a non-matching request.
type sample struct {
	method  string
	target  string
	headers map[string]string
	body    string
}

func (s sample) request(t *testing.T) *traffic.Request {
	return newRequest(t, s.method, s.target, s.headers, s.body)
}

func TestDescriptorRoundTrip(t *testing.T) {
	formHeaders := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

	tests := []struct {
		name       string
		descriptor Descriptor
		matching   sample
		other      sample
	}{
		{
			name:       "wildcard",
			descriptor: &WildcardMatcher{},
			matching:   sample{method: "GET", target: "/"},
			other:      sample{method: "POST", target: "/x"}, // also matches; wildcard has no negatives
		},
		{
			name:       "method",
			descriptor: &MethodMatcher{Method: "PUT"},
			matching:   sample{method: "PUT", target: "/"},
			other:      sample{method: "GET", target: "/"},
		},
		{
			name:       "simple path",
			descriptor: &SimplePathMatcher{Path: "/foo/"},
			matching:   sample{method: "GET", target: "/foo"},
			other:      sample{method: "GET", target: "/bar"},
		},
		{
			name:       "regex path",
			descriptor: &RegexPathMatcher{Pattern: `^/users/\d+$`},
			matching:   sample{method: "GET", target: "/users/42"},
			other:      sample{method: "GET", target: "/users/abc"},
		},
		{
			name:       "header",
			descriptor: &HeaderMatcher{Headers: map[string]string{"X-Token": "t1"}},
			matching:   sample{method: "GET", target: "/", headers: map[string]string{"X-Token": "t1"}},
			other:      sample{method: "GET", target: "/"},
		},
		{
			name:       "query",
			descriptor: &QueryMatcher{Params: map[string]string{"q": "cats"}},
			matching:   sample{method: "GET", target: "/search?q=cats"},
			other:      sample{method: "GET", target: "/search?q=dogs"},
		},
		{
			name:       "form data",
			descriptor: &FormDataMatcher{FormData: map[string]string{"user": "bob"}},
			matching:   sample{method: "POST", target: "/submit", headers: formHeaders, body: "user=bob"},
			other:      sample{method: "POST", target: "/submit", headers: formHeaders, body: "user=alice"},
		},
		{
			name:       "raw body",
			descriptor: &RawBodyMatcher{Body: "payload"},
			matching:   sample{method: "POST", target: "/", body: "payload"},
			other:      sample{method: "POST", target: "/", body: "other"},
		},
		{
			name:       "json path",
			descriptor: &JSONPathMatcher{Conditions: map[string]any{"$.ok": true}},
			matching:   sample{method: "POST", target: "/", body: `{"ok":true}`},
			other:      sample{method: "POST", target: "/", body: `{"ok":false}`},
		},
		{
			name:       "expr",
			descriptor: &ExprMatcher{Expression: `method == "DELETE"`},
			matching:   sample{method: "DELETE", target: "/"},
			other:      sample{method: "GET", target: "/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Serialize(tt.descriptor)
			require.NoError(t, err)

			// The wire object carries the type tag.
			var obj map[string]any
			require.NoError(t, json.Unmarshal(raw, &obj))
			assert.Equal(t, tt.descriptor.Type(), obj["type"])

			restored, err := Deserialize(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.descriptor.Type(), restored.Type())

			original := mustBuild(t, tt.descriptor)
			rebuilt := mustBuild(t, restored)

			for _, s := range []sample{tt.matching, tt.other} {
				wantMatch, err := original.Matches(context.Background(), s.request(t))
				require.NoError(t, err)
				gotMatch, err := rebuilt.Matches(context.Background(), s.request(t))
				require.NoError(t, err)
				assert.Equal(t, wantMatch, gotMatch, "request %s %s", s.method, s.target)
			}

			assert.Equal(t, original.Explain(), rebuilt.Explain())
		})
	}
}

func TestDeserializeUnknownType(t *testing.T) {
	_, err := Deserialize([]byte(`{"type":"not-a-real-matcher"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.Contains(t, err.Error(), "not-a-real-matcher")
}

func TestDeserializeMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "method without verb", raw: `{"type":"method"}`},
		{name: "simple path without path", raw: `{"type":"simple-path"}`},
		{name: "regex path without pattern", raw: `{"type":"regex-path"}`},
		{name: "header without headers", raw: `{"type":"header"}`},
		{name: "query without params", raw: `{"type":"query"}`},
		{name: "form data without fields", raw: `{"type":"form-data"}`},
		{name: "json path without conditions", raw: `{"type":"json-path"}`},
		{name: "expr without expression", raw: `{"type":"expr"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestDeserializeBadJSONPathAtBuildTime(t *testing.T) {
	// A syntactically valid wire object with an invalid JSONPath fails at
	// deserialization, not first use.
	_, err := Deserialize([]byte(`{"type":"json-path","conditions":{"$[":1}}`))
	assert.Error(t, err)
}
