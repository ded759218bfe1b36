// Package admin provides the REST API for managing rules and inspecting
// recorded traffic. It runs on its own port, separate from the mocked
// traffic the engine serves.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reqtrap/reqtrap/pkg/engine"
	"github.com/reqtrap/reqtrap/pkg/logging"
)

// API exposes rule management and request inspection over HTTP.
type API struct {
	engine     *engine.Engine
	httpServer *http.Server
	port       int
	startTime  time.Time
	upgrader   websocket.Upgrader
	log        *slog.Logger
}

// New creates an API bound to the given engine.
func New(eng *engine.Engine, port int) *API {
	return &API{
		engine: eng,
		port:   port,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The admin port is a local control surface, not a browser-facing
			// origin, so cross-origin upgrades are fine.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logging.Nop(),
	}
}

// SetLogger sets the operational logger.
func (a *API) SetLogger(log *slog.Logger) {
	if log == nil {
		log = logging.Nop()
	}
	a.log = log
}

// Handler returns the admin route tree. Useful for tests and for embedding
// the API into an existing server.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.registerRoutes(mux)
	return mux
}

// Start begins serving the admin API. It blocks until the server stops.
func (a *API) Start() error {
	a.startTime = time.Now()
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.log.Info("admin API listening", "port", a.port)
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the admin server down.
func (a *API) Stop(ctx context.Context) error {
	if a.httpServer == nil {
		return nil
	}
	return a.httpServer.Shutdown(ctx)
}

// registerRoutes sets up all API routes.
func (a *API) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)

	mux.HandleFunc("GET /rules", a.handleListRules)
	mux.HandleFunc("POST /rules", a.handleCreateRule)
	mux.HandleFunc("DELETE /rules", a.handleResetRules)
	mux.HandleFunc("GET /rules/{id}", a.handleGetRule)
	mux.HandleFunc("DELETE /rules/{id}", a.handleDeleteRule)

	mux.HandleFunc("GET /requests", a.handleListRequests)
	mux.HandleFunc("DELETE /requests", a.handleClearRequests)
	mux.HandleFunc("GET /requests/{id}", a.handleGetRequest)

	mux.HandleFunc("GET /events", a.handleEvents)
}
