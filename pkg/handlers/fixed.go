package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/reqtrap/reqtrap/pkg/traffic"
)

// FixedResponseData configures a handler that always answers with the same
// status, headers and body.
type FixedResponseData struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

func (*FixedResponseData) Type() string { return TypeFixed }

func (d *FixedResponseData) validate() error {
	if d.Status < 100 || d.Status > 599 {
		return fmt.Errorf("status %d out of range", d.Status)
	}
	return nil
}

func (d *FixedResponseData) BuildHandler() (Handler, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &fixedResponseHandler{data: *d}, nil
}

type fixedResponseHandler struct {
	data FixedResponseData
}

func (h *fixedResponseHandler) Handle(_ context.Context, w http.ResponseWriter, _ *traffic.Request) error {
	for name, value := range h.data.Headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(h.data.Status)
	if h.data.Body != "" {
		if _, err := w.Write([]byte(h.data.Body)); err != nil {
			return fmt.Errorf("writing response body: %w", err)
		}
	}
	return nil
}

func (h *fixedResponseHandler) Explain() string {
	if h.data.Body != "" {
		return fmt.Sprintf("respond with status %d and body '%s'", h.data.Status, h.data.Body)
	}
	return fmt.Sprintf("respond with status %d", h.data.Status)
}
