package progress

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/specialistvlad/bundlegrid/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultEventName is the socket.io event loader events are emitted under.
const DefaultEventName = "bundle_event"

// SocketIOConfig describes the live-ops endpoint that receives events.
type SocketIOConfig struct {
	URL                string
	Namespace          string
	EventName          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// SocketIO pushes loader events to a socket.io server.
type SocketIO struct {
	event string
	emit  func(event string, payload map[string]any)
	close func()
}

// DialSocketIO connects to the configured server and waits for the connect
// event, the connect_error event, the timeout or ctx, whichever comes first.
func DialSocketIO(ctx context.Context, cfg SocketIOConfig) (*SocketIO, error) {
	logger := ctxlog.FromContext(ctx).With("reporter", "socketio", "url", cfg.URL)
	logger.Info("Connecting progress reporter...")

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "/"
	}
	io := manager.Socket(namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Progress reporter connected", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		connErr := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				connErr = e
			}
		}
		connectChan <- connErr
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	return newSocketIO(cfg.EventName,
		func(event string, payload map[string]any) { io.Emit(event, payload) },
		func() { io.Disconnect() },
	), nil
}

func newSocketIO(event string, emit func(string, map[string]any), closeFn func()) *SocketIO {
	if event == "" {
		event = DefaultEventName
	}
	return &SocketIO{event: event, emit: emit, close: closeFn}
}

// Report implements Reporter.
func (s *SocketIO) Report(_ context.Context, ev Event) {
	payload := map[string]any{
		"kind":   string(ev.Kind),
		"bundle": ev.Bundle.String(),
	}
	if ev.URI != "" {
		payload["uri"] = ev.URI
	}
	if ev.Err != nil {
		payload["error"] = ev.Err.Error()
	}
	s.emit(s.event, payload)
}

// Close disconnects from the server.
func (s *SocketIO) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
