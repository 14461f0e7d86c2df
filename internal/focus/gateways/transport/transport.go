// Package transport serves control requests to local clients. It owns the
// socket and the wire format so the service layer only sees domain values.
package transport

import (
	"context"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
)

// ServerTransport accepts control connections and dispatches each request
// to a RequestHandler.
type ServerTransport interface {
	// Start begins listening and serving requests with handler.
	Start(ctx context.Context, handler RequestHandler) error

	// Stop closes the listener and every open connection.
	Stop() error

	// Address returns the address the transport is bound to.
	Address() string
}

// RequestHandler produces exactly one response per request.
type RequestHandler interface {
	HandleRequest(ctx context.Context, req domain.ControlRequest) domain.ControlResponse
}
