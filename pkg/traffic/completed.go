package traffic

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Errors surfaced by body buffering and completion tracking.
var (
	// ErrBodyTooLarge means the request body exceeded MaxBodySize.
	ErrBodyTooLarge = errors.New("request body exceeds maximum buffered size")
)

// CompletedRequest is the fully resolved record of one handled request,
// produced once the body has been read and the response settled.
type CompletedRequest struct {
	Method        string      `json:"method"`
	URL           string      `json:"url"`
	Path          string      `json:"path"`
	Query         url.Values  `json:"query,omitempty"`
	Headers       http.Header `json:"headers,omitempty"`
	Body          []byte      `json:"body,omitempty"`
	RemoteAddr    string      `json:"remoteAddr,omitempty"`
	MatchedRuleID string      `json:"matchedRuleId,omitempty"`
	ReceivedAt    time.Time   `json:"receivedAt"`
	CompletedAt   time.Time   `json:"completedAt"`
}

// Future is a deferred CompletedRequest. It settles exactly once, either with
// a record or with the error that ended the request's handling.
type Future struct {
	once sync.Once
	done chan struct{}
	req  *CompletedRequest
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(req *CompletedRequest) {
	f.once.Do(func() {
		f.req = req
		close(f.done)
	})
}

func (f *Future) reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the Future has settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the Future has already resolved or rejected.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the Future settles or ctx is cancelled. A rejected Future
// returns the rejection error on every call.
func (f *Future) Wait(ctx context.Context) (*CompletedRequest, error) {
	select {
	case <-f.done:
		return f.req, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
