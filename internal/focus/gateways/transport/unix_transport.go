package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/time/rate"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/log"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/gateways/wire"
)

// maxLineBytes bounds a single request line.
const maxLineBytes = 64 * 1024

// ErrMessageTooLong is answered before closing a connection whose request
// line exceeds maxLineBytes.
var ErrMessageTooLong = fmt.Errorf("%w: request exceeds %d bytes", wire.ErrMalformedMessage, maxLineBytes)

// UnixOptions configures NewUnixTransport.
type UnixOptions struct {
	Path   string
	Codec  wire.ControlCodec
	Logger log.Logger
	// MaxRPS limits requests per second across all connections; 0 disables.
	MaxRPS float64
}

// UnixTransport serves line-delimited JSON requests over a Unix domain
// socket. Requests on one connection are answered in order.
type UnixTransport struct {
	path    string
	codec   wire.ControlCodec
	logger  log.Logger
	limiter *rate.Limiter

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewUnixTransport creates a transport for opts.Path.
func NewUnixTransport(opts UnixOptions) *UnixTransport {
	if opts.Codec == nil {
		opts.Codec = wire.NewJSONCodec()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	t := &UnixTransport{
		path:   opts.Path,
		codec:  opts.Codec,
		logger: opts.Logger,
		conns:  make(map[net.Conn]struct{}),
	}
	if opts.MaxRPS > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), int(opts.MaxRPS)+1)
	}
	return t
}

// Start binds the socket, replacing a stale socket file, and serves until
// Stop is called or ctx is cancelled.
func (t *UnixTransport) Start(ctx context.Context, handler RequestHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return errors.New("control transport already running")
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if err := removeStaleSocket(t.path); err != nil {
		return err
	}
	ln, err := net.Listen("unix", t.path)
	if err != nil {
		return fmt.Errorf("failed to bind control socket %s: %w", t.path, err)
	}
	if err := os.Chmod(t.path, 0o600); err != nil {
		_ = ln.Close()
		return fmt.Errorf("restrict control socket: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	t.listener = ln
	t.cancel = cancel
	t.running = true

	t.logger.Info(map[string]any{"transport": "unix", "address": t.path}, "control transport started")

	t.wg.Add(1)
	go t.acceptLoop(ctx, ln, handler)
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	return nil
}

// Stop closes the listener and open connections and waits for in-flight
// requests to finish.
func (t *UnixTransport) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	t.cancel()
	err := t.listener.Close()
	for c := range t.conns {
		_ = c.Close()
	}
	t.mu.Unlock()

	t.wg.Wait()
	if rmErr := os.Remove(t.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		t.logger.Warn(map[string]any{"error": rmErr, "address": t.path}, "failed to remove control socket")
	}
	t.logger.Info(map[string]any{"transport": "unix", "address": t.path}, "control transport stopped")
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Address returns the socket path.
func (t *UnixTransport) Address() string { return t.path }

func (t *UnixTransport) acceptLoop(ctx context.Context, ln net.Listener, handler RequestHandler) {
	defer t.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			t.logger.Warn(map[string]any{"error": err}, "failed to accept control connection")
			continue
		}
		if !t.track(conn) {
			_ = conn.Close()
			return
		}
		t.wg.Add(1)
		go t.serveConn(ctx, conn, handler)
	}
}

func (t *UnixTransport) track(conn net.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return false
	}
	t.conns[conn] = struct{}{}
	return true
}

func (t *UnixTransport) untrack(conn net.Conn) {
	t.mu.Lock()
	delete(t.conns, conn)
	t.mu.Unlock()
	_ = conn.Close()
}

func (t *UnixTransport) serveConn(ctx context.Context, conn net.Conn, handler RequestHandler) {
	defer t.wg.Done()
	defer t.untrack(conn)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	w := bufio.NewWriter(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !t.writeResponse(w, t.handleLine(ctx, line, handler)) {
			return
		}
	}
	err := scanner.Err()
	switch {
	case errors.Is(err, bufio.ErrTooLong):
		// the rest of the line cannot be resynchronised, so answer and hang up
		t.logger.Warn(map[string]any{"limit": maxLineBytes}, "control request too long")
		t.writeResponse(w, domain.ErrorResponse("", ErrMessageTooLong))
	case err != nil && !errors.Is(err, net.ErrClosed):
		t.logger.Warn(map[string]any{"error": err}, "control connection read failed")
	}
}

// writeResponse encodes and flushes one response line. It reports false when
// the connection is no longer writable.
func (t *UnixTransport) writeResponse(w *bufio.Writer, resp domain.ControlResponse) bool {
	out, err := t.codec.EncodeResponse(resp)
	if err != nil {
		t.logger.Error(map[string]any{"error": err, "type": string(resp.Type)}, "failed to encode control response")
		out, _ = t.codec.EncodeResponse(domain.ErrorResponse(resp.Type, errors.New("internal error")))
	}
	if _, err := w.Write(append(out, '\n')); err != nil {
		t.logger.Debug(map[string]any{"error": err}, "failed to write control response")
		return false
	}
	if err := w.Flush(); err != nil {
		t.logger.Debug(map[string]any{"error": err}, "failed to flush control response")
		return false
	}
	return true
}

func (t *UnixTransport) handleLine(ctx context.Context, line []byte, handler RequestHandler) domain.ControlResponse {
	req, err := t.codec.DecodeRequest(line)
	if err != nil {
		t.logger.Warn(map[string]any{"error": err, "size": len(line)}, "failed to decode control request")
		return domain.ErrorResponse("", err)
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return domain.ErrorResponse(req.Type, fmt.Errorf("rate limiter: %w", err))
		}
	}
	t.logger.Debug(map[string]any{"type": string(req.Type)}, "control request received")
	return handler.HandleRequest(ctx, req)
}

// removeStaleSocket deletes a leftover socket file. Anything else at the
// path is left alone and reported.
func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspect control socket: %w", err)
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("control socket path %s exists and is not a socket", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale control socket: %w", err)
	}
	return nil
}

var _ ServerTransport = (*UnixTransport)(nil)
