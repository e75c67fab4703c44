package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/client"
	"github.com/mash-protocol/lwm2m-go/pkg/dm"
	"github.com/mash-protocol/lwm2m-go/pkg/log"
)

// Engine errors.
var (
	ErrEngineClosed     = errors.New("engine closed")
	ErrUnknownSocket    = errors.New("socket not owned by this engine")
	ErrTruncated        = errors.New("datagram exceeds input buffer")
	ErrDatagramTooLarge = errors.New("datagram exceeds output buffer")
	ErrNoSocket         = errors.New("no socket for server")
)

// DefaultReadTimeout bounds a Serve call made without a pending datagram.
const DefaultReadTimeout = 100 * time.Millisecond

// Targets returns the servers the engine should hold sockets for.
type Targets func() []Target

// Handler consumes one received datagram. data is only valid during the call.
type Handler interface {
	HandleDatagram(sock *Socket, data []byte) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(sock *Socket, data []byte) error

// HandleDatagram calls f.
func (f HandlerFunc) HandleDatagram(sock *Socket, data []byte) error { return f(sock, data) }

// Config configures an Engine.
type Config struct {
	// EndpointName is stamped on trace events.
	EndpointName string

	// InBufferSize is the largest datagram Serve accepts.
	InBufferSize int

	// OutBufferSize is the largest datagram Send accepts.
	OutBufferSize int

	// ReadTimeout bounds a read when nothing is pending (default 100ms).
	ReadTimeout time.Duration

	// Backoff spaces out dial attempts for a server that could not be
	// reached.
	Backoff BackoffConfig

	// Logger for socket lifecycle. Nil disables logging.
	Logger *slog.Logger

	// Trace receives datagram and socket events. Nil disables tracing.
	Trace log.Logger
}

// ConfigFrom derives an engine configuration from a client configuration.
func ConfigFrom(cfg client.Config) Config {
	return Config{
		EndpointName:  cfg.EndpointName,
		InBufferSize:  cfg.InBufferSize,
		OutBufferSize: cfg.OutBufferSize,
		Logger:        cfg.Logger,
	}
}

// Engine owns the UDP sockets of a client.
type Engine struct {
	config  Config
	targets Targets
	handler Handler
	trace   log.Logger
	logger  *slog.Logger

	// Seams for tests.
	now  func() time.Time
	dial func(Target) (*Socket, error)

	mu       sync.Mutex
	sockets  []*Socket
	byID     map[string]*Socket
	failures map[Target]*dialFailure
	closed   bool

	// readMu guards inBuf from the read through the handler call.
	readMu sync.Mutex
	inBuf  []byte
}

// dialFailure remembers a target that could not be dialed. Permanent
// failures (a scheme or URI the engine cannot handle) are not retried
// until the target changes.
type dialFailure struct {
	backoff   *Backoff
	retryAt   time.Time
	permanent bool
}

// Compile-time interface satisfaction check.
var _ client.Engine = (*Engine)(nil)

// New creates an engine. Sockets are dialed lazily on the first Sockets call.
func New(config Config, targets Targets, handler Handler) *Engine {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	return &Engine{
		config:   config,
		targets:  targets,
		handler:  handler,
		trace:    log.OrNoop(config.Trace),
		logger:   config.Logger,
		now:      time.Now,
		dial:     dial,
		byID:     make(map[string]*Socket),
		failures: make(map[Target]*dialFailure),
		// One spare byte detects datagrams larger than the buffer.
		inBuf: make([]byte, config.InBufferSize+1),
	}
}

// Sockets re-syncs the socket set with the current targets and returns the
// open sockets in target order. Targets that cannot be dialed are skipped
// and retried with exponential backoff; targets with an unsupported scheme
// or a malformed URI are traced once and not retried.
func (e *Engine) Sockets() []client.Socket {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	var targets []Target
	if e.targets != nil {
		targets = e.targets()
	}

	existing := make(map[Target]*Socket, len(e.sockets))
	for _, s := range e.sockets {
		existing[s.target] = s
	}

	now := e.now()
	wanted := make(map[Target]bool, len(targets))
	next := make([]*Socket, 0, len(targets))
	for _, target := range targets {
		wanted[target] = true
		if s, ok := existing[target]; ok {
			next = append(next, s)
			delete(existing, target)
			continue
		}
		if f, ok := e.failures[target]; ok && (f.permanent || now.Before(f.retryAt)) {
			continue
		}
		s, err := e.dial(target)
		if err != nil {
			e.recordFailure(target, err, now)
			continue
		}
		delete(e.failures, target)
		e.byID[s.id] = s
		next = append(next, s)
		e.debugLog("socket opened", "ssid", target.SSID, "remote", s.RemoteAddr(), "socket", s.id)
		e.traceState(s, "", "OPEN", "dial")
	}

	for _, s := range existing {
		e.closeSocketLocked(s, "target removed")
	}
	for target := range e.failures {
		if !wanted[target] {
			delete(e.failures, target)
		}
	}
	e.sockets = next

	out := make([]client.Socket, len(next))
	for i, s := range next {
		out[i] = s
	}
	return out
}

// recordFailure traces a failed dial and decides when to try again.
func (e *Engine) recordFailure(target Target, err error, now time.Time) {
	f, seen := e.failures[target]
	if !seen {
		f = &dialFailure{backoff: NewBackoff(e.config.Backoff)}
		e.failures[target] = f
	}
	if errors.Is(err, ErrUnsupportedScheme) || errors.Is(err, ErrInvalidURI) {
		f.permanent = true
		e.warnLog("server not dialable", "ssid", target.SSID, "uri", target.URI, "error", err)
		e.traceError("", target, err, "dial")
		return
	}
	f.retryAt = now.Add(f.backoff.Next())
	e.debugLog("dial failed", "ssid", target.SSID, "uri", target.URI, "error", err, "retryAt", f.retryAt)
	e.traceError("", target, err, "dial")
}

// Socket returns the open socket for ssid.
func (e *Engine) Socket(ssid dm.SSID) (*Socket, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range e.sockets {
		if s.target.SSID == ssid {
			return s, true
		}
	}
	return nil, false
}

// Serve reads one datagram from sock and passes it to the handler. A read
// that times out with nothing pending is not an error.
func (e *Engine) Serve(cs client.Socket) error {
	e.mu.Lock()
	closed := e.closed
	s, ok := e.byID[cs.ID()]
	e.mu.Unlock()

	if closed {
		return ErrEngineClosed
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSocket, cs.ID())
	}

	e.readMu.Lock()
	defer e.readMu.Unlock()

	if err := s.conn.SetReadDeadline(time.Now().Add(e.config.ReadTimeout)); err != nil {
		return err
	}
	n, err := s.conn.Read(e.inBuf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil
		}
		e.traceError(s.id, s.target, err, "read")
		return fmt.Errorf("read %s: %w", s.id, err)
	}
	if n > e.config.InBufferSize {
		e.traceError(s.id, s.target, ErrTruncated, "read")
		return fmt.Errorf("%w: more than %d bytes", ErrTruncated, e.config.InBufferSize)
	}

	data := e.inBuf[:n]
	e.trace.Log(log.Event{
		Timestamp:  time.Now(),
		SocketID:   s.id,
		Direction:  log.DirectionIn,
		Layer:      log.LayerTransport,
		Category:   log.CategoryDatagram,
		Endpoint:   e.config.EndpointName,
		RemoteAddr: s.RemoteAddr().String(),
		SSID:       uint16(s.target.SSID),
		Datagram:   log.NewDatagramEvent(data),
	})

	if e.handler == nil {
		return nil
	}
	return e.handler.HandleDatagram(s, data)
}

// Send writes one datagram to the server behind sock.
func (e *Engine) Send(s *Socket, data []byte) error {
	if len(data) > e.config.OutBufferSize {
		return fmt.Errorf("%w: %d > %d", ErrDatagramTooLarge, len(data), e.config.OutBufferSize)
	}

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrEngineClosed
	}

	if _, err := s.conn.Write(data); err != nil {
		e.traceError(s.id, s.target, err, "write")
		return fmt.Errorf("write %s: %w", s.id, err)
	}
	e.trace.Log(log.Event{
		Timestamp:  time.Now(),
		SocketID:   s.id,
		Direction:  log.DirectionOut,
		Layer:      log.LayerTransport,
		Category:   log.CategoryDatagram,
		Endpoint:   e.config.EndpointName,
		RemoteAddr: s.RemoteAddr().String(),
		SSID:       uint16(s.target.SSID),
		Datagram:   log.NewDatagramEvent(data),
	})
	return nil
}

// SendTo writes one datagram to the server account ssid.
func (e *Engine) SendTo(ssid dm.SSID, data []byte) error {
	s, ok := e.Socket(ssid)
	if !ok {
		return fmt.Errorf("%w: ssid %d", ErrNoSocket, ssid)
	}
	return e.Send(s, data)
}

// Close closes every socket. Repeated calls return nil.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	for _, s := range e.sockets {
		errs = append(errs, e.closeSocketLocked(s, "engine closed"))
	}
	e.sockets = nil
	clear(e.failures)
	return errors.Join(errs...)
}

func (e *Engine) closeSocketLocked(s *Socket, reason string) error {
	delete(e.byID, s.id)
	err := s.Close()
	e.debugLog("socket closed", "ssid", s.target.SSID, "socket", s.id, "reason", reason)
	e.traceState(s, "OPEN", "CLOSED", reason)
	return err
}

func (e *Engine) traceState(s *Socket, oldState, newState, reason string) {
	e.trace.Log(log.Event{
		Timestamp:  time.Now(),
		SocketID:   s.id,
		Layer:      log.LayerTransport,
		Category:   log.CategoryState,
		Endpoint:   e.config.EndpointName,
		RemoteAddr: s.RemoteAddr().String(),
		SSID:       uint16(s.target.SSID),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySocket,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (e *Engine) traceError(socketID string, target Target, err error, context string) {
	e.trace.Log(log.Event{
		Timestamp: time.Now(),
		SocketID:  socketID,
		Layer:     log.LayerTransport,
		Category:  log.CategoryError,
		Endpoint:  e.config.EndpointName,
		SSID:      uint16(target.SSID),
		Error: &log.ErrorEventData{
			Message: err.Error(),
			Context: context,
		},
	})
}

// debugLog logs a debug message if logging is enabled.
func (e *Engine) debugLog(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Engine) warnLog(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
