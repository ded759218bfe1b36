// HTTP handlers for the admin API.

package admin

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/reqtrap/reqtrap/pkg/requestlog"
	"github.com/reqtrap/reqtrap/pkg/rule"
	"github.com/reqtrap/reqtrap/pkg/wire"
)

// maxRuleBodyBytes caps the size of a rule definition payload.
const maxRuleBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}

// handleHealth handles GET /health.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(a.startTime).Round(time.Second).String(),
	})
}

// handleListRules handles GET /rules.
func (a *API) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules := a.engine.Rules()
	summaries := make([]RuleSummary, 0, len(rules))
	for _, rl := range rules {
		summaries = append(summaries, a.summarize(rl))
	}
	writeJSON(w, http.StatusOK, RuleListResponse{
		Rules: summaries,
		Count: len(summaries),
	})
}

// handleCreateRule handles POST /rules. The body is a rule definition in
// wire form; it is rebuilt into a live rule and appended to the rule set.
func (a *API) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRuleBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Rule definition exceeds size limit")
		return
	}

	cfg, err := wire.DeserializeRuleData(body)
	if err != nil {
		a.log.Warn("rejected rule definition", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_rule", err.Error())
		return
	}

	rl, err := a.engine.AddRuleConfig(*cfg)
	if err != nil {
		a.log.Warn("rejected rule definition", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_rule", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, CreateRuleResponse{
		ID:          rl.ID(),
		Explanation: rl.Explain(),
	})
}

// handleGetRule handles GET /rules/{id}.
func (a *API) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rl := a.engine.Rule(r.PathValue("id"))
	if rl == nil {
		writeError(w, http.StatusNotFound, "not_found", "No rule with that ID")
		return
	}
	writeJSON(w, http.StatusOK, a.summarize(rl))
}

// handleDeleteRule handles DELETE /rules/{id}.
func (a *API) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if !a.engine.RemoveRule(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "not_found", "No rule with that ID")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResetRules handles DELETE /rules.
func (a *API) handleResetRules(w http.ResponseWriter, r *http.Request) {
	a.engine.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// handleListRequests handles GET /requests.
func (a *API) handleListRequests(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	entries := a.engine.Store().List(filter)
	if entries == nil {
		entries = []*requestlog.Entry{}
	}
	writeJSON(w, http.StatusOK, RequestListResponse{
		Requests: entries,
		Count:    len(entries),
	})
}

// handleGetRequest handles GET /requests/{id}.
func (a *API) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	entry := a.engine.Store().Get(r.PathValue("id"))
	if entry == nil {
		writeError(w, http.StatusNotFound, "not_found", "No request with that ID")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleClearRequests handles DELETE /requests.
func (a *API) handleClearRequests(w http.ResponseWriter, r *http.Request) {
	a.engine.Store().Clear()
	w.WriteHeader(http.StatusNoContent)
}

// summarize builds the API view of a rule.
func (a *API) summarize(rl *rule.Rule) RuleSummary {
	cfg := rl.Config()
	definition, err := wire.SerializeRuleData(&cfg)
	if err != nil {
		// The config was already built once, so this should not happen; an
		// empty definition is better than failing the whole listing.
		a.log.Error("serializing rule definition", "rule", rl.ID(), "error", err)
	}
	return RuleSummary{
		ID:           rl.ID(),
		Explanation:  rl.Explain(),
		Definition:   definition,
		SeenRequests: rl.RequestCount(),
		Complete:     rl.IsComplete(),
	}
}

// parseFilter extracts request log filter parameters from the query string.
func parseFilter(r *http.Request) (*requestlog.Filter, error) {
	q := r.URL.Query()
	filter := &requestlog.Filter{
		RuleID: q.Get("ruleId"),
		Method: q.Get("method"),
		Path:   q.Get("path"),
	}

	var err error
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			return nil, err
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil {
			return nil, err
		}
	}
	return filter, nil
}
