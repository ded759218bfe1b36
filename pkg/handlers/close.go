package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/reqtrap/reqtrap/pkg/traffic"
)

// CloseConnectionData configures a handler that drops the TCP connection
// without sending any response, simulating an abruptly failing server.
type CloseConnectionData struct{}

func (*CloseConnectionData) Type() string { return TypeCloseConnection }

func (*CloseConnectionData) BuildHandler() (Handler, error) {
	return closeConnectionHandler{}, nil
}

type closeConnectionHandler struct{}

func (closeConnectionHandler) Handle(_ context.Context, w http.ResponseWriter, _ *traffic.Request) error {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		return errors.New("connection cannot be hijacked")
	}
	conn, _, err := hijacker.Hijack()
	if err != nil {
		return fmt.Errorf("hijacking connection: %w", err)
	}
	return conn.Close()
}

func (closeConnectionHandler) Explain() string {
	return "close the connection"
}

// TimeoutData configures a handler that never responds: it holds the request
// open until the client gives up or the server shuts down.
type TimeoutData struct{}

func (*TimeoutData) Type() string { return TypeTimeout }

func (*TimeoutData) BuildHandler() (Handler, error) {
	return timeoutHandler{}, nil
}

type timeoutHandler struct{}

func (timeoutHandler) Handle(ctx context.Context, _ http.ResponseWriter, _ *traffic.Request) error {
	<-ctx.Done()
	return ctx.Err()
}

func (timeoutHandler) Explain() string {
	return "time out (never respond)"
}
