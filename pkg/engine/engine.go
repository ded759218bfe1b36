// Package engine dispatches live HTTP traffic against the configured rule
// set. For each request it evaluates every rule's composite matcher, picks
// the first matching rule that is not yet complete (falling back to the last
// matching rule when all are used up), runs the rule's recording adapter, and
// finally settles the request's completion record into the request log.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/reqtrap/reqtrap/pkg/logging"
	"github.com/reqtrap/reqtrap/pkg/requestlog"
	"github.com/reqtrap/reqtrap/pkg/rule"
	"github.com/reqtrap/reqtrap/pkg/traffic"
)

// Engine holds the ordered rule set and implements http.Handler for the
// mocked traffic port.
type Engine struct {
	mu    sync.RWMutex
	rules []*rule.Rule

	log   *slog.Logger
	store *requestlog.Store
}

// New creates an Engine with no rules, a no-op logger and a fresh request
// log store.
func New() *Engine {
	return &Engine{
		log:   logging.Nop(),
		store: requestlog.NewStore(),
	}
}

// SetLogger sets the operational logger.
func (e *Engine) SetLogger(log *slog.Logger) {
	if log == nil {
		log = logging.Nop()
	}
	e.log = log
}

// Store returns the engine's request log store.
func (e *Engine) Store() *requestlog.Store {
	return e.store
}

// AddRule appends a built rule to the end of the rule set. Rules are
// consulted in insertion order.
func (e *Engine) AddRule(r *rule.Rule) {
	e.mu.Lock()
	e.rules = append(e.rules, r)
	e.mu.Unlock()
	e.log.Info("rule added", "id", r.ID(), "explanation", r.Explain())
}

// AddRuleConfig builds a rule from cfg and appends it.
func (e *Engine) AddRuleConfig(cfg rule.Config) (*rule.Rule, error) {
	r, err := rule.New(cfg)
	if err != nil {
		return nil, err
	}
	e.AddRule(r)
	return r, nil
}

// Rules returns a snapshot of the rule set in consultation order.
func (e *Engine) Rules() []*rule.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.rules)
}

// Rule returns the rule with the given ID, or nil.
func (e *Engine) Rule(id string) *rule.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, r := range e.rules {
		if r.ID() == id {
			return r
		}
	}
	return nil
}

// RemoveRule deletes the rule with the given ID. Returns false when no such
// rule exists.
func (e *Engine) RemoveRule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, r := range e.rules {
		if r.ID() == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Reset removes every rule.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.rules = nil
	e.mu.Unlock()
}

// ServeHTTP implements http.Handler for mocked traffic.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := traffic.FromHTTP(r)

	selected, matchErr := e.selectRule(ctx, req)
	if selected == nil {
		if matchErr != nil {
			e.log.Error("request matching failed", "method", req.Method, "path", req.URL.Path, "error", matchErr)
			http.Error(w, "Failed to match request: "+matchErr.Error(), http.StatusInternalServerError)
			return
		}
		e.log.Info("no rule matched", "method", req.Method, "path", req.URL.Path)
		e.writeUnmatched(w)
		return
	}

	if err := selected.HandleRequest(ctx, w, req); err != nil {
		e.log.Error("handler failed", "rule", selected.ID(), "method", req.Method, "path", req.URL.Path, "error", err)
		e.logFailure(req, selected.ID(), err)
		return
	}

	req.MarkCompleted(selected.ID())
	completed, err := req.Completed().Wait(ctx)
	if err != nil {
		e.log.Warn("completion record unavailable", "rule", selected.ID(), "error", err)
		return
	}
	e.store.Log(requestlog.FromCompleted(completed))
	e.log.Debug("request handled", "rule", selected.ID(), "method", req.Method, "path", req.URL.Path)
}

// selectRule evaluates every rule against req. Among matching rules the first
// one that is not complete wins; when every matching rule is complete, the
// last one keeps serving. A matcher error counts as "did not match" for that
// rule, and is surfaced only when no rule matched at all.
func (e *Engine) selectRule(ctx context.Context, req *traffic.Request) (*rule.Rule, error) {
	rules := e.Rules()

	var matching []*rule.Rule
	var matchErrs []error
	for _, r := range rules {
		matched, err := r.Matches(ctx, req)
		if err != nil {
			e.log.Warn("matcher error", "rule", r.ID(), "error", err)
			matchErrs = append(matchErrs, fmt.Errorf("rule %s: %w", r.ID(), err))
			continue
		}
		if matched {
			matching = append(matching, r)
		}
	}

	if len(matching) == 0 {
		return nil, errors.Join(matchErrs...)
	}

	for _, r := range matching {
		if !r.IsComplete() {
			return r, nil
		}
	}
	return matching[len(matching)-1], nil
}

// writeUnmatched answers a request no rule claimed, explaining what the
// configured rules would have accepted.
func (e *Engine) writeUnmatched(w http.ResponseWriter) {
	var b strings.Builder
	b.WriteString("No rules matched this request.\n")

	rules := e.Rules()
	if len(rules) == 0 {
		b.WriteString("No rules are configured.\n")
	} else {
		b.WriteString("The configured rules are:\n")
		for _, r := range rules {
			b.WriteString("  - ")
			b.WriteString(r.Explain())
			b.WriteString("\n")
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte(b.String()))
}

// logFailure records a handling attempt that ended in an error, so failed
// exchanges stay visible in the request history.
func (e *Engine) logFailure(req *traffic.Request, ruleID string, handleErr error) {
	body, _ := req.BodyBytes()
	entry := requestlog.FromCompleted(&traffic.CompletedRequest{
		Method:        req.Method,
		URL:           req.URL.String(),
		Path:          req.URL.Path,
		Query:         req.URL.Query(),
		Headers:       req.Headers,
		Body:          body,
		RemoteAddr:    req.RemoteAddr,
		MatchedRuleID: ruleID,
		ReceivedAt:    req.ReceivedAt,
		CompletedAt:   req.ReceivedAt,
	})
	entry.Error = handleErr.Error()
	e.store.Log(entry)
}
