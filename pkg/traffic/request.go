// Package traffic carries requests across the rule-matching core. A Request
// wraps one in-flight HTTP exchange with a re-readable buffered body, and a
// Future hands out its eventual CompletedRequest record.
package traffic

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// MaxBodySize caps how much of a request body is buffered for matching and
// recording (10MB). Larger bodies fail the buffering step rather than
// exhausting memory.
const MaxBodySize = 10 << 20

// Request is one in-flight request as seen by matchers and handlers. The body
// is buffered eagerly on first access and stays readable afterwards, so
// body-dependent matchers and the response handler can all consume it.
type Request struct {
	Method     string
	URL        *url.URL
	Headers    http.Header
	RemoteAddr string
	ReceivedAt time.Time

	raw io.ReadCloser

	mu       sync.Mutex
	buffered bool
	body     []byte
	bodyErr  error

	completion *Future
}

// FromHTTP wraps an incoming http.Request. The original body reader is owned
// by the returned Request from this point on.
func FromHTTP(r *http.Request) *Request {
	return &Request{
		Method:     r.Method,
		URL:        r.URL,
		Headers:    r.Header,
		RemoteAddr: r.RemoteAddr,
		ReceivedAt: time.Now(),
		raw:        r.Body,
		completion: newFuture(),
	}
}

// BufferBody eagerly reads the full body into memory. It is idempotent; every
// later call returns the first outcome. Bodies over MaxBodySize fail with
// ErrBodyTooLarge.
func (r *Request) BufferBody() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bufferLocked()
}

func (r *Request) bufferLocked() error {
	if r.buffered {
		return r.bodyErr
	}
	r.buffered = true

	if r.raw == nil {
		r.body = nil
		return nil
	}
	defer r.raw.Close()

	data, err := io.ReadAll(io.LimitReader(r.raw, MaxBodySize+1))
	if err != nil {
		r.bodyErr = err
		return err
	}
	if len(data) > MaxBodySize {
		r.bodyErr = ErrBodyTooLarge
		return r.bodyErr
	}
	r.body = data
	return nil
}

// BodyBytes returns the buffered body, buffering it first if needed.
func (r *Request) BodyBytes() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.bufferLocked(); err != nil {
		return nil, err
	}
	return r.body, nil
}

// BodyText returns the body decoded as text.
func (r *Request) BodyText() (string, error) {
	b, err := r.BodyBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BodyForm decodes the body as URL-encoded form data. Callers that care about
// the content type must check it themselves; this just parses.
func (r *Request) BodyForm() (url.Values, error) {
	b, err := r.BodyBytes()
	if err != nil {
		return nil, err
	}
	return url.ParseQuery(string(b))
}

// BodyReader returns a fresh reader over the buffered body, so handlers that
// stream the body elsewhere still see the full content after matchers ran.
func (r *Request) BodyReader() (io.Reader, error) {
	b, err := r.BodyBytes()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

// Completed returns the deferred CompletedRequest handle for this request.
// The same Future is returned on every call.
func (r *Request) Completed() *Future {
	return r.completion
}

// MarkCompleted settles the completion Future with the full record of this
// request. ruleID names the rule that handled it. Safe to call once; later
// calls are ignored.
func (r *Request) MarkCompleted(ruleID string) {
	body, _ := r.BodyBytes()
	r.completion.resolve(&CompletedRequest{
		Method:        r.Method,
		URL:           r.URL.String(),
		Path:          r.URL.Path,
		Query:         r.URL.Query(),
		Headers:       r.Headers,
		Body:          body,
		RemoteAddr:    r.RemoteAddr,
		MatchedRuleID: ruleID,
		ReceivedAt:    r.ReceivedAt,
		CompletedAt:   time.Now(),
	})
}

// MarkFailed settles the completion Future with err. Safe to call once; later
// calls are ignored.
func (r *Request) MarkFailed(err error) {
	r.completion.reject(err)
}
