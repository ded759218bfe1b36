// Package requestlog stores completed-request records for inspection through
// the admin API. The engine appends an entry once a request's lifecycle is
// fully known; admin consumers list, filter and subscribe to them.
package requestlog

import (
	"time"

	"github.com/google/uuid"

	"github.com/reqtrap/reqtrap/pkg/traffic"
)

// maxBodyBytes caps how much request body is kept per entry.
const maxBodyBytes = 10 * 1024

// Entry is one recorded request/response exchange.
type Entry struct {
	// ID is a unique identifier for the log entry.
	ID string `json:"id"`

	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`

	Method      string              `json:"method"`
	Path        string              `json:"path"`
	QueryString string              `json:"queryString,omitempty"`
	Headers     map[string][]string `json:"headers,omitempty"`

	// Body is the request body, truncated to 10KB.
	Body string `json:"body,omitempty"`

	// BodySize is the original body size in bytes.
	BodySize int `json:"bodySize"`

	RemoteAddr string `json:"remoteAddr,omitempty"`

	// MatchedRuleID names the rule that handled the request.
	MatchedRuleID string `json:"matchedRuleId,omitempty"`

	// DurationMs is the time from receipt to completion in milliseconds.
	DurationMs int `json:"durationMs"`

	// Error holds the failure message when handling did not finish cleanly.
	Error string `json:"error,omitempty"`
}

// FromCompleted converts a traffic record into a log entry.
func FromCompleted(cr *traffic.CompletedRequest) *Entry {
	body := cr.Body
	if len(body) > maxBodyBytes {
		body = body[:maxBodyBytes]
	}
	return &Entry{
		ID:            uuid.NewString(),
		Timestamp:     cr.ReceivedAt,
		Method:        cr.Method,
		Path:          cr.Path,
		QueryString:   cr.Query.Encode(),
		Headers:       cr.Headers,
		Body:          string(body),
		BodySize:      len(cr.Body),
		RemoteAddr:    cr.RemoteAddr,
		MatchedRuleID: cr.MatchedRuleID,
		DurationMs:    int(cr.CompletedAt.Sub(cr.ReceivedAt).Milliseconds()),
	}
}
