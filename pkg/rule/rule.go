// Package rule ties one composite matcher, one response handler and an
// optional completion checker into a live, executable unit. Every request a
// rule handles is recorded as a deferred CompletedRequest, so assertion
// callers can later inspect exactly what traffic the rule saw.
package rule

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/reqtrap/reqtrap/pkg/completion"
	"github.com/reqtrap/reqtrap/pkg/handlers"
	"github.com/reqtrap/reqtrap/pkg/matchers"
	"github.com/reqtrap/reqtrap/pkg/traffic"
)

// Config is the reconstructable definition of a rule: what to match, how to
// respond, and optionally when the rule counts as used up. Descriptors are
// immutable; a Config can be serialized, shipped across the control channel,
// and rebuilt into an equivalent rule on the other side.
type Config struct {
	Matchers   []matchers.Descriptor
	Handler    handlers.Descriptor
	Completion completion.Descriptor // nil when absent
}

// Rule is the live unit built from a Config. Its request log is append-only
// and grows in the order handling starts, never pruned by the rule itself.
type Rule struct {
	id      string
	cfg     Config
	matcher matchers.RequestMatcher
	handler handlers.Handler
	checker completion.Checker // nil when absent

	mu       sync.Mutex
	requests []*traffic.Future
}

// New builds a Rule from cfg: compiles the composite matcher, builds the
// handler and checker through their family factories, and assigns a fresh
// UUID that stays stable for the rule's lifetime.
func New(cfg Config) (*Rule, error) {
	if cfg.Handler == nil {
		return nil, errors.New("rule requires a handler")
	}

	matcher, err := matchers.BuildMatchers(cfg.Matchers)
	if err != nil {
		return nil, err
	}

	handler, err := cfg.Handler.BuildHandler()
	if err != nil {
		return nil, fmt.Errorf("building %s handler: %w", cfg.Handler.Type(), err)
	}

	var checker completion.Checker
	if cfg.Completion != nil {
		checker, err = cfg.Completion.BuildChecker()
		if err != nil {
			return nil, fmt.Errorf("building %s checker: %w", cfg.Completion.Type(), err)
		}
	}

	return &Rule{
		id:      uuid.NewString(),
		cfg:     cfg,
		matcher: matcher,
		handler: handler,
		checker: checker,
	}, nil
}

// ID returns the rule's unique identifier.
func (r *Rule) ID() string { return r.id }

// Config returns the definition this rule was built from.
func (r *Rule) Config() Config { return r.cfg }

// Matches evaluates the rule's composite matcher against req.
func (r *Rule) Matches(ctx context.Context, req *traffic.Request) (bool, error) {
	return r.matcher.Matches(ctx, req)
}

// HandleRequest is the recording adapter around the rule's handler. It
// buffers the request body eagerly (so the completion record never misses
// bytes that streamed in before the handler started), appends the request's
// deferred CompletedRequest to the log BEFORE the handler's work settles, and
// then runs the handler. The log therefore reflects "handling has started",
// not "handling has finished".
//
// A handler failure is still recorded: the logged future rejects with the
// handler's error, and HandleRequest returns that same error.
func (r *Rule) HandleRequest(ctx context.Context, w http.ResponseWriter, req *traffic.Request) error {
	// Best effort; body-dependent matchers and handlers surface their own
	// read errors.
	_ = req.BufferBody()

	fut := req.Completed()
	r.mu.Lock()
	r.requests = append(r.requests, fut)
	r.mu.Unlock()

	if err := r.handler.Handle(ctx, w, req); err != nil {
		req.MarkFailed(err)
		return err
	}
	return nil
}

// Requests returns a snapshot of the rule's request log, in handling-start
// order. Entries may still be pending.
func (r *Rule) Requests() []*traffic.Future {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*traffic.Future, len(r.requests))
	copy(out, r.requests)
	return out
}

// RequestCount returns the number of requests whose handling has started.
func (r *Rule) RequestCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// IsComplete reports whether the rule's completion checker considers it used
// up. Rules without a checker never complete.
func (r *Rule) IsComplete() bool {
	if r.checker == nil {
		return false
	}
	return r.checker.IsComplete(r.RequestCount())
}

// Explain summarizes the rule's full behavior as one sentence.
func (r *Rule) Explain() string {
	s := fmt.Sprintf("Match requests %s, and then %s", r.matcher.Explain(), r.handler.Explain())
	if r.checker != nil {
		s += ", " + r.checker.Explain()
	}
	return s + "."
}
