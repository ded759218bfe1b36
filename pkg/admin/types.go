// Response types for the admin API.

package admin

import (
	"encoding/json"

	"github.com/reqtrap/reqtrap/pkg/requestlog"
)

// ErrorResponse is the JSON shape of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse reports server liveness.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// RuleSummary describes one configured rule.
type RuleSummary struct {
	ID          string `json:"id"`
	Explanation string `json:"explanation"`

	// Definition is the rule's wire form, as it would be POSTed.
	Definition json.RawMessage `json:"definition"`

	// SeenRequests counts requests this rule has handled or started handling.
	SeenRequests int `json:"seenRequests"`

	// Complete reports whether the rule's completion checker considers it
	// used up. Rules without a checker never complete.
	Complete bool `json:"complete"`
}

// RuleListResponse wraps GET /rules.
type RuleListResponse struct {
	Rules []RuleSummary `json:"rules"`
	Count int           `json:"count"`
}

// CreateRuleResponse wraps POST /rules.
type CreateRuleResponse struct {
	ID          string `json:"id"`
	Explanation string `json:"explanation"`
}

// RequestListResponse wraps GET /requests.
type RequestListResponse struct {
	Requests []*requestlog.Entry `json:"requests"`
	Count    int                 `json:"count"`
}
