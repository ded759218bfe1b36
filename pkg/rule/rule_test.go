package rule

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqtrap/reqtrap/pkg/completion"
	"github.com/reqtrap/reqtrap/pkg/handlers"
	"github.com/reqtrap/reqtrap/pkg/matchers"
	"github.com/reqtrap/reqtrap/pkg/traffic"
)

func newRequest(t *testing.T, method, target, body string) *traffic.Request {
	t.Helper()
	return traffic.FromHTTP(httptest.NewRequest(method, target, strings.NewReader(body)))
}

func getHelloRule(t *testing.T) *Rule {
	t.Helper()
	r, err := New(Config{
		Matchers: []matchers.Descriptor{
			&matchers.MethodMatcher{Method: "GET"},
			&matchers.SimplePathMatcher{Path: "/hello"},
		},
		Handler: &handlers.FixedResponseData{Status: 200, Body: "hi"},
	})
	require.NoError(t, err)
	return r
}

func TestNewAssignsUniqueIDs(t *testing.T) {
	a := getHelloRule(t)
	b := getHelloRule(t)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	// The ID is stable across calls.
	assert.Equal(t, a.ID(), a.ID())
}

func TestNewRequiresHandler(t *testing.T) {
	_, err := New(Config{Matchers: []matchers.Descriptor{&matchers.WildcardMatcher{}}})
	assert.Error(t, err)
}

func TestNewRejectsBadDescriptors(t *testing.T) {
	_, err := New(Config{
		Matchers: []matchers.Descriptor{&matchers.RegexPathMatcher{Pattern: `[bad`}},
		Handler:  &handlers.FixedResponseData{Status: 200},
	})
	assert.Error(t, err)

	_, err = New(Config{
		Handler:    &handlers.FixedResponseData{Status: 200},
		Completion: &completion.TimesData{Count: 0},
	})
	assert.Error(t, err)
}

func TestEndToEndScenario(t *testing.T) {
	r := getHelloRule(t)

	// A GET to /hello matches and is recorded.
	req := newRequest(t, "GET", "/hello", "")
	matched, err := r.Matches(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, matched)

	rec := httptest.NewRecorder()
	require.NoError(t, r.HandleRequest(context.Background(), rec, req))
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
	assert.Equal(t, 1, r.RequestCount())

	// A POST to /hello does not match.
	matched, err = r.Matches(context.Background(), newRequest(t, "POST", "/hello", ""))
	require.NoError(t, err)
	assert.False(t, matched)

	assert.Equal(t, "Match requests making GETs for /hello, and then respond with status 200 and body 'hi'.", r.Explain())
}

func TestExplainWithCompletionChecker(t *testing.T) {
	r, err := New(Config{
		Matchers:   []matchers.Descriptor{&matchers.MethodMatcher{Method: "GET"}},
		Handler:    &handlers.FixedResponseData{Status: 200},
		Completion: &completion.OnceData{},
	})
	require.NoError(t, err)
	assert.Equal(t, "Match requests making GETs, and then respond with status 200, once.", r.Explain())
}

func TestRequestLogReflectsHandlingStarted(t *testing.T) {
	// A timeout handler never finishes on its own; the log must still grow
	// as soon as handling starts.
	r, err := New(Config{
		Handler: &handlers.TimeoutData{},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- r.HandleRequest(ctx, httptest.NewRecorder(), newRequest(t, "GET", "/", ""))
	}()

	require.Eventually(t, func() bool { return r.RequestCount() == 1 },
		time.Second, time.Millisecond, "log should grow before the handler settles")

	// Entry is pending: handling started but did not finish.
	assert.False(t, r.Requests()[0].Settled())

	cancel()
	assert.Error(t, <-done)
}

func TestRejectedHandlerIsStillRecorded(t *testing.T) {
	// The recorder is not a Hijacker, so close-connection fails.
	r, err := New(Config{
		Handler: &handlers.CloseConnectionData{},
	})
	require.NoError(t, err)

	req := newRequest(t, "GET", "/", "")
	handleErr := r.HandleRequest(context.Background(), httptest.NewRecorder(), req)
	require.Error(t, handleErr)

	reqs := r.Requests()
	require.Len(t, reqs, 1)

	_, waitErr := reqs[0].Wait(context.Background())
	assert.Equal(t, handleErr, waitErr)
}

func TestRecordingOrderFollowsStartOrder(t *testing.T) {
	r := getHelloRule(t)

	first := newRequest(t, "GET", "/hello?n=1", "")
	second := newRequest(t, "GET", "/hello?n=2", "")

	require.NoError(t, r.HandleRequest(context.Background(), httptest.NewRecorder(), first))
	require.NoError(t, r.HandleRequest(context.Background(), httptest.NewRecorder(), second))

	// Complete them in reverse order; the log order must not change.
	second.MarkCompleted(r.ID())
	first.MarkCompleted(r.ID())

	reqs := r.Requests()
	require.Len(t, reqs, 2)

	got1, err := reqs[0].Wait(context.Background())
	require.NoError(t, err)
	got2, err := reqs[1].Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", got1.Query.Get("n"))
	assert.Equal(t, "2", got2.Query.Get("n"))
}

func TestRecordedEntryCarriesBufferedBody(t *testing.T) {
	r, err := New(Config{
		Matchers: []matchers.Descriptor{&matchers.MethodMatcher{Method: "POST"}},
		Handler:  &handlers.FixedResponseData{Status: 200},
	})
	require.NoError(t, err)

	req := newRequest(t, "POST", "/data", "the payload")
	require.NoError(t, r.HandleRequest(context.Background(), httptest.NewRecorder(), req))
	req.MarkCompleted(r.ID())

	completed, err := r.Requests()[0].Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("the payload"), completed.Body)
	assert.Equal(t, r.ID(), completed.MatchedRuleID)
}

func TestIsComplete(t *testing.T) {
	r, err := New(Config{
		Handler:    &handlers.FixedResponseData{Status: 200},
		Completion: &completion.OnceData{},
	})
	require.NoError(t, err)

	assert.False(t, r.IsComplete())
	require.NoError(t, r.HandleRequest(context.Background(), httptest.NewRecorder(), newRequest(t, "GET", "/", "")))
	assert.True(t, r.IsComplete())

	// Without a checker a rule never completes.
	unchecked := getHelloRule(t)
	require.NoError(t, unchecked.HandleRequest(context.Background(), httptest.NewRecorder(), newRequest(t, "GET", "/hello", "")))
	assert.False(t, unchecked.IsComplete())
}
