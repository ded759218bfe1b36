package requestlog

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqtrap/reqtrap/pkg/traffic"
)

func entry(method, path, ruleID string) *Entry {
	return &Entry{ID: method + path + ruleID, Method: method, Path: path, MatchedRuleID: ruleID}
}

func TestStoreAppendAndList(t *testing.T) {
	s := NewStore()
	s.Log(entry("GET", "/a", "r1"))
	s.Log(entry("POST", "/b", "r2"))
	s.Log(entry("GET", "/a/b", "r1"))

	assert.Equal(t, 3, s.Count())

	all := s.List(nil)
	require.Len(t, all, 3)
	assert.Equal(t, "/a", all[0].Path)
	assert.Equal(t, "/a/b", all[2].Path)
}

func TestStoreFilters(t *testing.T) {
	s := NewStore()
	s.Log(entry("GET", "/a", "r1"))
	s.Log(entry("POST", "/b", "r2"))
	s.Log(entry("GET", "/a/b", "r1"))

	tests := []struct {
		name   string
		filter *Filter
		want   int
	}{
		{name: "by rule", filter: &Filter{RuleID: "r1"}, want: 2},
		{name: "by method", filter: &Filter{Method: "POST"}, want: 1},
		{name: "by path prefix", filter: &Filter{Path: "/a"}, want: 2},
		{name: "limit", filter: &Filter{Limit: 1}, want: 1},
		{name: "offset past end", filter: &Filter{Offset: 10}, want: 0},
		{name: "no match", filter: &Filter{RuleID: "nope"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, s.List(tt.filter), tt.want)
		})
	}
}

func TestStoreGetAndClear(t *testing.T) {
	s := NewStore()
	e := entry("GET", "/a", "r1")
	s.Log(e)

	assert.Same(t, e, s.Get(e.ID))
	assert.Nil(t, s.Get("missing"))

	s.Clear()
	assert.Equal(t, 0, s.Count())
}

func TestSubscribe(t *testing.T) {
	s := NewStore()
	sub, unsubscribe := s.Subscribe()

	e := entry("GET", "/a", "r1")
	s.Log(e)

	select {
	case got := <-sub:
		assert.Same(t, e, got)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the entry")
	}

	unsubscribe()
	_, open := <-sub
	assert.False(t, open, "channel should be closed after unsubscribe")

	// Unsubscribing twice is harmless.
	unsubscribe()
}

func TestFromCompleted(t *testing.T) {
	received := time.Now().Add(-250 * time.Millisecond)
	cr := &traffic.CompletedRequest{
		Method:        "POST",
		Path:          "/orders",
		Query:         url.Values{"dry": []string{"1"}},
		Headers:       http.Header{"Content-Type": []string{"text/plain"}},
		Body:          []byte("hello"),
		RemoteAddr:    "10.0.0.1:1234",
		MatchedRuleID: "rule-9",
		ReceivedAt:    received,
		CompletedAt:   received.Add(250 * time.Millisecond),
	}

	e := FromCompleted(cr)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "POST", e.Method)
	assert.Equal(t, "/orders", e.Path)
	assert.Equal(t, "dry=1", e.QueryString)
	assert.Equal(t, "hello", e.Body)
	assert.Equal(t, 5, e.BodySize)
	assert.Equal(t, "rule-9", e.MatchedRuleID)
	assert.Equal(t, 250, e.DurationMs)
}

func TestFromCompletedTruncatesBody(t *testing.T) {
	big := make([]byte, maxBodyBytes+100)
	for i := range big {
		big[i] = 'x'
	}
	e := FromCompleted(&traffic.CompletedRequest{Body: big})
	assert.Len(t, e.Body, maxBodyBytes)
	assert.Equal(t, len(big), e.BodySize)
}
