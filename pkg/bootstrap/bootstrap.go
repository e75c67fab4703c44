// Package bootstrap assembles a client with its data model and tears it
// down again.
//
// Bootstrap creates the client context, the attribute storage and the
// Security, Server, Resource and Access Control objects, registers the
// wrapped objects in that order, populates the server accounts and the
// access control entries, and returns an Agent ready to run the event loop.
//
// Every component is released on every exit path. Teardown deletes the
// client context first so the protocol engine drops its references, then
// releases the remaining components in reverse creation order.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mash-protocol/lwm2m-go/pkg/acl"
	"github.com/mash-protocol/lwm2m-go/pkg/attrstore"
	"github.com/mash-protocol/lwm2m-go/pkg/client"
	"github.com/mash-protocol/lwm2m-go/pkg/dm"
	"github.com/mash-protocol/lwm2m-go/pkg/examples"
	"github.com/mash-protocol/lwm2m-go/pkg/loop"
	"github.com/mash-protocol/lwm2m-go/pkg/persistence"
	"github.com/mash-protocol/lwm2m-go/pkg/security"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
	"github.com/mash-protocol/lwm2m-go/pkg/transport"
)

// Bootstrap errors.
var (
	ErrCreate       = errors.New("component creation failed")
	ErrRegister     = errors.New("object registration failed")
	ErrPopulate     = errors.New("data model population failed")
	ErrRestore      = errors.New("state restore failed")
	ErrOrphanServer = errors.New("server account has no security account")
	ErrClosed       = errors.New("agent closed")
)

// Component names reported to a release observer.
const (
	ComponentClient     = "client"
	ComponentAttributes = "attrstore"
	ComponentSecurity   = "security"
	ComponentServer     = "server"
	ComponentResource   = "resource"
	ComponentACL        = "acl"
)

// Factory creates the bootstrap components. Nil fields use the default
// constructors; tests replace single fields to inject failures.
type Factory struct {
	NewClient      func(cfg client.Config, opts ...client.Option) (*client.Client, error)
	NewAttrStorage func(cfg attrstore.Config) (*attrstore.Storage, error)
	NewSecurity    func() (*security.Object, error)
	NewServer      func() (*server.Object, error)
	NewResource    func() (*examples.TestObject, error)
	NewACL         func(registry *dm.Registry) (*acl.Table, error)
	Register       func(c *client.Client, obj dm.Object) error
}

// DefaultFactory returns the factory of the production constructors.
func DefaultFactory() Factory {
	return Factory{
		NewClient: client.New,
		NewAttrStorage: func(cfg attrstore.Config) (*attrstore.Storage, error) {
			return attrstore.New(cfg), nil
		},
		NewSecurity: func() (*security.Object, error) { return security.New(), nil },
		NewServer:   func() (*server.Object, error) { return server.New(), nil },
		NewResource: func() (*examples.TestObject, error) { return examples.NewTestObject(), nil },
		NewACL:      acl.New,
		Register:    (*client.Client).RegisterObject,
	}
}

func (f Factory) withDefaults() Factory {
	d := DefaultFactory()
	if f.NewClient == nil {
		f.NewClient = d.NewClient
	}
	if f.NewAttrStorage == nil {
		f.NewAttrStorage = d.NewAttrStorage
	}
	if f.NewSecurity == nil {
		f.NewSecurity = d.NewSecurity
	}
	if f.NewServer == nil {
		f.NewServer = d.NewServer
	}
	if f.NewResource == nil {
		f.NewResource = d.NewResource
	}
	if f.NewACL == nil {
		f.NewACL = d.NewACL
	}
	if f.Register == nil {
		f.Register = d.Register
	}
	return f
}

// Option configures Bootstrap.
type Option func(*options)

type options struct {
	factory   Factory
	onRelease func(component string)
	engine    client.Engine
	handler   transport.Handler
}

// WithFactory replaces component constructors.
func WithFactory(f Factory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithReleaseObserver calls fn after each component is released.
func WithReleaseObserver(fn func(component string)) Option {
	return func(o *options) {
		o.onRelease = fn
	}
}

// WithEngine sets the protocol engine instead of the UDP transport.
func WithEngine(engine client.Engine) Option {
	return func(o *options) {
		o.engine = engine
	}
}

// WithHandler sets the datagram handler of the default UDP transport.
func WithHandler(h transport.Handler) Option {
	return func(o *options) {
		o.handler = h
	}
}

// release is one acquired component and how to give it back.
type release struct {
	name string
	fn   func()
}

// Agent is a bootstrapped client with its data model.
type Agent struct {
	config    Config
	logger    *slog.Logger
	onRelease func(string)

	client    *client.Client
	transport *transport.Engine
	attrs     *attrstore.Storage
	security  *security.Object
	server    *server.Object
	resource  *examples.TestObject
	acl       *acl.Table
	loop      *loop.Loop

	// releases holds every component but the client, in creation order.
	releases []release
	closed   bool
}

// Bootstrap builds an Agent from cfg. On failure every component created so
// far is released before the error is returned.
func Bootstrap(cfg Config, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = loop.DefaultMaxWait
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	f := o.factory.withDefaults()

	a := &Agent{
		config:    cfg,
		logger:    cfg.Logger,
		onRelease: o.onRelease,
	}

	engine := o.engine
	if engine == nil {
		tc := transport.ConfigFrom(cfg.ClientConfig())
		tc.Trace = cfg.Trace
		a.transport = transport.New(tc, a.targets, o.handler)
		engine = a.transport
	}

	c, err := f.NewClient(cfg.ClientConfig(), client.WithEngine(engine))
	if err != nil {
		if a.transport != nil {
			a.transport.Close()
		}
		return nil, fmt.Errorf("%w: client: %w", ErrCreate, err)
	}
	a.client = c

	if err := a.create(f, cfg); err != nil {
		a.teardown()
		return nil, err
	}
	if err := a.register(f); err != nil {
		a.teardown()
		return nil, err
	}
	if err := a.populate(); err != nil {
		a.teardown()
		return nil, err
	}

	a.debugLog("bootstrap complete",
		"endpoint", cfg.EndpointName,
		"objects", c.Registry().Len(),
		"servers", len(a.security.Servers()))
	return a, nil
}

// acquire records a created component for teardown.
func (a *Agent) acquire(name string, fn func()) {
	a.releases = append(a.releases, release{name: name, fn: fn})
}

// create builds the components in creation order, stopping at the first
// failure.
func (a *Agent) create(f Factory, cfg Config) error {
	attrs, err := f.NewAttrStorage(attrstore.Config{AutoCorrect: cfg.AutoCorrectAttributes})
	if err != nil {
		return fmt.Errorf("%w: attribute storage: %w", ErrCreate, err)
	}
	a.attrs = attrs
	a.acquire(ComponentAttributes, attrs.Delete)

	sec, err := f.NewSecurity()
	if err != nil {
		return fmt.Errorf("%w: security object: %w", ErrCreate, err)
	}
	a.security = sec
	a.acquire(ComponentSecurity, sec.Delete)

	srv, err := f.NewServer()
	if err != nil {
		return fmt.Errorf("%w: server object: %w", ErrCreate, err)
	}
	a.server = srv
	a.acquire(ComponentServer, srv.Delete)

	res, err := f.NewResource()
	if err != nil {
		return fmt.Errorf("%w: resource object: %w", ErrCreate, err)
	}
	a.resource = res
	a.acquire(ComponentResource, res.Delete)

	table, err := f.NewACL(a.client.Registry())
	if err != nil {
		return fmt.Errorf("%w: access control object: %w", ErrCreate, err)
	}
	a.acl = table
	a.acquire(ComponentACL, table.Delete)
	return nil
}

// register wraps each object with the attribute storage and registers it.
func (a *Agent) register(f Factory) error {
	for _, obj := range []dm.Object{a.security, a.server, a.resource, a.acl} {
		if err := f.Register(a.client, a.attrs.Wrap(obj)); err != nil {
			return fmt.Errorf("%w: object %s: %w", ErrRegister, obj.ObjectID(), err)
		}
		a.debugLog("object registered", "object", obj.ObjectID())
	}
	return nil
}

// populate creates the server accounts and access control entries, from the
// state file when one exists and from the configuration otherwise.
func (a *Agent) populate() error {
	if a.config.StatePath != "" {
		state, err := persistence.NewStore(a.config.StatePath).Load()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRestore, err)
		}
		if state != nil {
			if err := a.restore(state); err != nil {
				return fmt.Errorf("%w: %w", ErrRestore, err)
			}
			a.debugLog("state restored", "path", a.config.StatePath, "savedAt", state.SavedAt)
			return nil
		}
	}

	for _, s := range a.config.Servers {
		secInst, srvInst, err := s.Instances()
		if err != nil {
			return fmt.Errorf("%w: ssid %d: %w", ErrPopulate, s.SSID, err)
		}
		// Instance IDs of the two objects are allocated independently.
		if _, err := a.security.AddInstance(secInst, dm.IIDInvalid); err != nil {
			return fmt.Errorf("%w: security instance for ssid %d: %w", ErrPopulate, s.SSID, err)
		}
		if _, err := a.server.AddInstance(srvInst, dm.IIDInvalid); err != nil {
			return fmt.Errorf("%w: server instance for ssid %d: %w", ErrPopulate, s.SSID, err)
		}
	}

	if err := a.acl.SetACL(ResourceObjectID, dm.IIDInvalid, a.config.CreateGrantSSID, dm.AccessCreate); err != nil {
		return fmt.Errorf("%w: create grant: %w", ErrPopulate, err)
	}
	for _, e := range a.server.Entries() {
		if err := a.acl.SetACL(dm.ObjectServer, e.IID, e.Instance.SSID, dm.AccessRead); err != nil {
			return fmt.Errorf("%w: read grant for ssid %d: %w", ErrPopulate, e.Instance.SSID, err)
		}
	}
	return nil
}

// teardown releases the client context first, then every other component
// in reverse creation order. Handles that were never created are skipped.
func (a *Agent) teardown() error {
	var errs []error
	if a.client != nil {
		if err := a.client.Delete(); err != nil {
			errs = append(errs, fmt.Errorf("delete client: %w", err))
		}
		a.client = nil
		a.transport = nil
		a.released(ComponentClient)
	}
	for i := len(a.releases) - 1; i >= 0; i-- {
		r := a.releases[i]
		r.fn()
		a.released(r.name)
	}
	a.releases = nil
	return errors.Join(errs...)
}

func (a *Agent) released(name string) {
	a.debugLog("component released", "component", name)
	if a.onRelease != nil {
		a.onRelease(name)
	}
}

// targets lists the transport targets from the Security object.
func (a *Agent) targets() []transport.Target {
	if a.security == nil {
		return nil
	}
	servers := a.security.Servers()
	targets := make([]transport.Target, 0, len(servers))
	for _, e := range servers {
		targets = append(targets, transport.Target{SSID: e.Instance.SSID, URI: e.Instance.ServerURI})
	}
	return targets
}

// Run hands off to the event loop and blocks until ctx is cancelled or the
// loop fails. A nil poller selects poll(2).
func (a *Agent) Run(ctx context.Context, poller loop.Poller) error {
	if a.closed {
		return ErrClosed
	}
	a.loop = loop.New(a.client, poller, loop.Config{
		MaxWait: a.config.MaxWait,
		Logger:  a.logger,
		Trace:   a.config.Trace,
	})
	a.infoLog("event loop running", "maxWait", a.config.MaxWait)
	return a.loop.Run(ctx)
}

// Stats returns the event loop counters, zero before Run.
func (a *Agent) Stats() loop.Stats {
	if a.loop == nil {
		return loop.Stats{}
	}
	return a.loop.Stats()
}

// Close saves the state when a state path is configured and tears the
// agent down. Close is idempotent; the teardown runs even if saving fails.
func (a *Agent) Close() error {
	if a == nil || a.closed {
		return nil
	}
	a.closed = true

	var saveErr error
	if a.config.StatePath != "" {
		saveErr = a.Save()
	}
	return errors.Join(saveErr, a.teardown())
}

// Config returns the configuration the agent was bootstrapped with.
func (a *Agent) Config() Config { return a.config }

// Client returns the client context, nil after Close.
func (a *Agent) Client() *client.Client { return a.client }

// Transport returns the default UDP engine, nil when WithEngine was used.
func (a *Agent) Transport() *transport.Engine { return a.transport }

// Attributes returns the attribute storage.
func (a *Agent) Attributes() *attrstore.Storage { return a.attrs }

// Security returns the Security object.
func (a *Agent) Security() *security.Object { return a.security }

// Server returns the Server object.
func (a *Agent) Server() *server.Object { return a.server }

// Resource returns the custom Resource object.
func (a *Agent) Resource() *examples.TestObject { return a.resource }

// ACL returns the Access Control table.
func (a *Agent) ACL() *acl.Table { return a.acl }

func (a *Agent) debugLog(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func (a *Agent) infoLog(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Info(msg, args...)
	}
}
