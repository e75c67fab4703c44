// Package client provides the client context: the handle that owns the
// protocol engine, the object registry and the scheduler for one endpoint.
//
// Objects registered with the client are referenced, not owned. Delete must
// be called before the registered objects are released so the engine drops
// its references first.
package client

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/dm"
	"github.com/mash-protocol/lwm2m-go/pkg/sched"
)

// Client errors.
var (
	ErrInvalidConfig = errors.New("invalid client configuration")
	ErrDeleted       = errors.New("client deleted")
	ErrNoEngine      = errors.New("no protocol engine")
)

// Socket is an open endpoint socket owned by the protocol engine.
type Socket interface {
	// ID is stable for the lifetime of the socket.
	ID() string

	// Fd is the OS descriptor used for readiness polling.
	Fd() int
}

// Engine is the protocol engine that owns the sockets and handles traffic.
type Engine interface {
	// Sockets returns the currently open sockets in a stable order.
	Sockets() []Socket

	// Serve handles one pending datagram on sock.
	Serve(sock Socket) error

	// Close releases every socket.
	Close() error
}

// Config configures a Client.
type Config struct {
	// EndpointName identifies this client to management servers.
	EndpointName string

	// InBufferSize is the receive buffer size in bytes.
	InBufferSize int

	// OutBufferSize is the send buffer size in bytes.
	OutBufferSize int

	// Logger for client lifecycle events. Nil disables logging.
	Logger *slog.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		EndpointName:  "urn:dev:os:lwm2m-client",
		InBufferSize:  4000,
		OutBufferSize: 4000,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.EndpointName == "" {
		return fmt.Errorf("%w: endpoint name is required", ErrInvalidConfig)
	}
	if c.InBufferSize <= 0 || c.OutBufferSize <= 0 {
		return fmt.Errorf("%w: buffer sizes must be positive (in=%d, out=%d)",
			ErrInvalidConfig, c.InBufferSize, c.OutBufferSize)
	}
	return nil
}

// Option configures optional Client dependencies.
type Option func(*Client)

// WithEngine sets the protocol engine. Without one the client has no sockets.
func WithEngine(engine Engine) Option {
	return func(c *Client) {
		c.engine = engine
	}
}

// WithScheduler replaces the default scheduler.
func WithScheduler(s *sched.Scheduler) Option {
	return func(c *Client) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// Client is the client context.
type Client struct {
	config    Config
	engine    Engine
	scheduler *sched.Scheduler
	registry  *dm.Registry
	logger    *slog.Logger
	deleted   bool
}

// New creates a client context.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:   cfg,
		registry: dm.NewRegistry(),
		logger:   cfg.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.scheduler == nil {
		c.scheduler = sched.New(sched.WithLogger(cfg.Logger))
	}

	c.debugLog("client created",
		"endpoint", cfg.EndpointName,
		"inBuffer", cfg.InBufferSize,
		"outBuffer", cfg.OutBufferSize)
	return c, nil
}

// Config returns the client configuration.
func (c *Client) Config() Config { return c.config }

// Registry returns the object registry.
func (c *Client) Registry() *dm.Registry { return c.registry }

// Scheduler returns the scheduler.
func (c *Client) Scheduler() *sched.Scheduler { return c.scheduler }

// RegisterObject adds obj to the registry.
func (c *Client) RegisterObject(obj dm.Object) error {
	if c.deleted {
		return ErrDeleted
	}
	if err := c.registry.Register(obj); err != nil {
		return err
	}
	c.debugLog("object registered", "oid", obj.ObjectID())
	return nil
}

// Sockets returns the engine's open sockets, or nil when there is no engine
// or the client is deleted.
func (c *Client) Sockets() []Socket {
	if c.deleted || c.engine == nil {
		return nil
	}
	return c.engine.Sockets()
}

// Serve handles one pending datagram on sock.
func (c *Client) Serve(sock Socket) error {
	if c.deleted {
		return ErrDeleted
	}
	if c.engine == nil {
		return ErrNoEngine
	}
	return c.engine.Serve(sock)
}

// WaitTime returns how long the event loop may block before the next task
// is due, bounded by maxWait.
func (c *Client) WaitTime(maxWait time.Duration) time.Duration {
	return c.scheduler.WaitTime(maxWait)
}

// RunDue runs every task that is due. Returns the number of tasks run.
func (c *Client) RunDue() int {
	if c.deleted {
		return 0
	}
	return c.scheduler.Run()
}

// Deleted reports whether Delete has been called.
func (c *Client) Deleted() bool { return c.deleted }

// Delete closes the engine and forgets every registered object and pending
// task. The objects themselves are not released. Safe on a nil Client and
// when repeated.
func (c *Client) Delete() error {
	if c == nil || c.deleted {
		return nil
	}
	c.deleted = true

	var err error
	if c.engine != nil {
		err = c.engine.Close()
	}
	c.registry.Clear()
	c.scheduler.Clear()

	c.debugLog("client deleted", "endpoint", c.config.EndpointName)
	return err
}

// debugLog logs a debug message if logging is enabled.
func (c *Client) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
