// Package client talks to a running daemon over its control socket.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/gateways/wire"
)

// DefaultTimeout bounds a request round trip when the context has no deadline.
const DefaultTimeout = 10 * time.Second

// ErrDaemonUnavailable is returned when nothing is listening on the socket.
var ErrDaemonUnavailable = errors.New("focus daemon is not running")

// Client sends one request per connection.
type Client struct {
	path    string
	codec   wire.ControlCodec
	timeout time.Duration
	dialer  net.Dialer
}

// New returns a Client for the socket at path.
func New(path string) *Client {
	return &Client{path: path, codec: wire.NewJSONCodec(), timeout: DefaultTimeout}
}

// Do sends req and waits for its response. A response that reports failure
// is returned as-is; err is only set for transport problems.
func (c *Client) Do(ctx context.Context, req domain.ControlRequest) (domain.ControlResponse, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	data, err := c.codec.EncodeRequest(req)
	if err != nil {
		return domain.ControlResponse{}, err
	}

	conn, err := c.dialer.DialContext(ctx, "unix", c.path)
	if err != nil {
		return domain.ControlResponse{}, fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	if _, err := conn.Write(append(data, '\n')); err != nil {
		return domain.ControlResponse{}, fmt.Errorf("send request: %w", err)
	}
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return domain.ControlResponse{}, fmt.Errorf("read response: %w", err)
	}
	return c.codec.DecodeResponse(req.Type, line)
}

// Start asks the daemon to begin a session. minutes <= 0 uses the default.
func (c *Client) Start(ctx context.Context, minutes float64) (domain.ControlResponse, error) {
	return c.Do(ctx, domain.ControlRequest{Type: domain.RequestStart, DurationMinutes: minutes})
}

// Stop asks the daemon to end the current session.
func (c *Client) Stop(ctx context.Context) (domain.ControlResponse, error) {
	return c.Do(ctx, domain.ControlRequest{Type: domain.RequestStop})
}

// Status fetches the current session state.
func (c *Client) Status(ctx context.Context) (domain.ControlResponse, error) {
	return c.Do(ctx, domain.ControlRequest{Type: domain.RequestStatus})
}

// Check asks whether a navigation to url would be blocked.
func (c *Client) Check(ctx context.Context, url string) (domain.ControlResponse, error) {
	return c.Do(ctx, domain.ControlRequest{Type: domain.RequestCheck, URL: url})
}
