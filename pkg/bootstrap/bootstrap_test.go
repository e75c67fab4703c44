package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/lwm2m-go/pkg/acl"
	"github.com/mash-protocol/lwm2m-go/pkg/attrstore"
	"github.com/mash-protocol/lwm2m-go/pkg/client"
	"github.com/mash-protocol/lwm2m-go/pkg/dm"
	"github.com/mash-protocol/lwm2m-go/pkg/examples"
	"github.com/mash-protocol/lwm2m-go/pkg/persistence"
	"github.com/mash-protocol/lwm2m-go/pkg/security"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
)

// nopEngine is a protocol engine without sockets.
type nopEngine struct {
	closed int
}

func (e *nopEngine) Sockets() []client.Socket  { return nil }
func (e *nopEngine) Serve(client.Socket) error { return nil }

func (e *nopEngine) Close() error {
	e.closed++
	return nil
}

// recorder collects released component names.
type recorder struct {
	released []string
}

func (r *recorder) observe(name string) {
	r.released = append(r.released, name)
}

var errInjected = errors.New("injected failure")

func bootstrapTest(t *testing.T, cfg Config, opts ...Option) (*Agent, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts = append([]Option{WithEngine(&nopEngine{}), WithReleaseObserver(rec.observe)}, opts...)
	a, err := Bootstrap(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, rec
}

func TestBootstrapEndToEnd(t *testing.T) {
	a, _ := bootstrapTest(t, DefaultConfig())

	registry := a.Client().Registry()
	assert.Equal(t,
		[]dm.ObjectID{dm.ObjectSecurity, dm.ObjectServer, ResourceObjectID, dm.ObjectAccessControl},
		registry.ObjectIDs())

	for _, obj := range registry.Objects() {
		if _, ok := obj.(*attrstore.WrappedObject); !ok {
			t.Errorf("object %s registered without attribute storage", obj.ObjectID())
		}
	}

	secIIDs := a.Security().Instances()
	srvIIDs := a.Server().Instances()
	require.Len(t, secIIDs, 2)
	require.Len(t, srvIIDs, 2)
	assert.NotEqual(t, secIIDs[0], secIIDs[1])
	assert.NotEqual(t, srvIIDs[0], srvIIDs[1])

	table := a.ACL()
	for _, ssid := range []dm.SSID{1, 2} {
		iid, _, ok := a.Server().BySSID(ssid)
		require.True(t, ok, "server instance for ssid %d", ssid)
		assert.Equal(t, dm.AccessRead, table.GetACL(dm.ObjectServer, iid, ssid))
	}
	assert.Equal(t, dm.AccessCreate, table.GetACL(ResourceObjectID, dm.IIDInvalid, CreateGrantSSID))

	// No other (object, instance, ssid) triple has a mask.
	assert.Len(t, table.Entries(), 3)
}

func TestBootstrapACLKeyedByServerInstance(t *testing.T) {
	// A pre-existing server instance shifts the allocated server IIDs away
	// from the security IIDs.
	newServer := func() (*server.Object, error) {
		srv := server.New()
		_, err := srv.AddInstance(server.Instance{
			SSID:             99,
			Lifetime:         time.Minute,
			DefaultMinPeriod: server.NotSet,
			DefaultMaxPeriod: server.NotSet,
			DisableTimeout:   server.NotSet,
			Binding:          server.BindingUDP,
		}, 0)
		return srv, err
	}

	a, _ := bootstrapTest(t, DefaultConfig(), WithFactory(Factory{NewServer: newServer}))

	for _, ssid := range []dm.SSID{1, 2} {
		secIID, _, ok := a.Security().BySSID(ssid)
		require.True(t, ok)
		srvIID, _, ok := a.Server().BySSID(ssid)
		require.True(t, ok)
		assert.NotEqual(t, secIID, srvIID, "instance ids are independent")

		assert.Equal(t, dm.AccessRead, a.ACL().GetACL(dm.ObjectServer, srvIID, ssid))
		assert.Equal(t, dm.AccessNone, a.ACL().GetACL(dm.ObjectServer, secIID, ssid))
	}
}

func TestBootstrapCreationFailure(t *testing.T) {
	fail := func(f *Factory, step string) {
		switch step {
		case ComponentClient:
			f.NewClient = func(client.Config, ...client.Option) (*client.Client, error) { return nil, errInjected }
		case ComponentAttributes:
			f.NewAttrStorage = func(attrstore.Config) (*attrstore.Storage, error) { return nil, errInjected }
		case ComponentSecurity:
			f.NewSecurity = func() (*security.Object, error) { return nil, errInjected }
		case ComponentServer:
			f.NewServer = func() (*server.Object, error) { return nil, errInjected }
		case ComponentResource:
			f.NewResource = func() (*examples.TestObject, error) { return nil, errInjected }
		case ComponentACL:
			f.NewACL = func(*dm.Registry) (*acl.Table, error) { return nil, errInjected }
		}
	}

	tests := []struct {
		step string
		want []string
	}{
		{ComponentClient, nil},
		{ComponentAttributes, []string{ComponentClient}},
		{ComponentSecurity, []string{ComponentClient, ComponentAttributes}},
		{ComponentServer, []string{ComponentClient, ComponentSecurity, ComponentAttributes}},
		{ComponentResource, []string{ComponentClient, ComponentServer, ComponentSecurity, ComponentAttributes}},
		{ComponentACL, []string{ComponentClient, ComponentResource, ComponentServer, ComponentSecurity, ComponentAttributes}},
	}
	for _, tt := range tests {
		t.Run(tt.step, func(t *testing.T) {
			var f Factory
			fail(&f, tt.step)
			rec := &recorder{}
			engine := &nopEngine{}

			a, err := Bootstrap(DefaultConfig(), WithFactory(f), WithEngine(engine), WithReleaseObserver(rec.observe))
			if err == nil {
				t.Fatal("Bootstrap() succeeded, want error")
			}
			assert.Nil(t, a)
			assert.ErrorIs(t, err, ErrCreate)
			assert.ErrorIs(t, err, errInjected)
			assert.Equal(t, tt.want, rec.released)
			if tt.step != ComponentClient {
				assert.Equal(t, 1, engine.closed, "client deletion closes the engine")
			}
		})
	}
}

func TestBootstrapRegistrationFailure(t *testing.T) {
	var registered []dm.ObjectID
	register := func(c *client.Client, obj dm.Object) error {
		if obj.ObjectID() == ResourceObjectID {
			return errInjected
		}
		registered = append(registered, obj.ObjectID())
		return c.RegisterObject(obj)
	}
	rec := &recorder{}

	a, err := Bootstrap(DefaultConfig(),
		WithFactory(Factory{Register: register}),
		WithEngine(&nopEngine{}),
		WithReleaseObserver(rec.observe))
	require.Error(t, err)
	assert.Nil(t, a)
	assert.ErrorIs(t, err, ErrRegister)
	assert.Equal(t, []dm.ObjectID{dm.ObjectSecurity, dm.ObjectServer}, registered)
	assert.Equal(t, []string{
		ComponentClient, ComponentACL, ComponentResource, ComponentServer, ComponentSecurity, ComponentAttributes,
	}, rec.released)
}

func TestTeardownReversesRegistration(t *testing.T) {
	var registered []string
	names := map[dm.ObjectID]string{
		dm.ObjectSecurity:      ComponentSecurity,
		dm.ObjectServer:        ComponentServer,
		ResourceObjectID:       ComponentResource,
		dm.ObjectAccessControl: ComponentACL,
	}
	register := func(c *client.Client, obj dm.Object) error {
		registered = append(registered, names[obj.ObjectID()])
		return c.RegisterObject(obj)
	}

	a, rec := bootstrapTest(t, DefaultConfig(), WithFactory(Factory{Register: register}))
	require.NoError(t, a.Close())

	require.Len(t, rec.released, len(registered)+2)
	assert.Equal(t, ComponentClient, rec.released[0], "client is deleted first")
	assert.Equal(t, ComponentAttributes, rec.released[len(rec.released)-1], "attribute storage is released last")

	objects := rec.released[1 : len(rec.released)-1]
	for i, name := range objects {
		if want := registered[len(registered)-1-i]; name != want {
			t.Errorf("release[%d] = %s, want %s", i, name, want)
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	engine := &nopEngine{}
	a, rec := bootstrapTest(t, DefaultConfig(), WithEngine(engine))

	require.NoError(t, a.Close())
	released := len(rec.released)
	assert.Equal(t, 6, released)

	require.NoError(t, a.Close())
	assert.Equal(t, released, len(rec.released), "second Close releases nothing")
	assert.Equal(t, 1, engine.closed)
	assert.Nil(t, a.Client())
	assert.ErrorIs(t, a.Run(context.Background(), nil), ErrClosed)

	var nilAgent *Agent
	assert.NoError(t, nilAgent.Close())
}

func TestBootstrapInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Servers = append(cfg.Servers, cfg.Servers[0])

	rec := &recorder{}
	_, err := Bootstrap(cfg, WithEngine(&nopEngine{}), WithReleaseObserver(rec.observe))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Empty(t, rec.released)
}

func TestRunHandsOffToLoop(t *testing.T) {
	a, _ := bootstrapTest(t, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.Client().Scheduler().Schedule(0, func() { cancel() })

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, nil) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	stats := a.Stats()
	assert.GreaterOrEqual(t, stats.Iterations, uint64(1))
	assert.Equal(t, uint64(1), stats.TasksRun)
}

func TestDefaultTransportTargets(t *testing.T) {
	a, err := Bootstrap(DefaultConfig())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Transport())
	targets := a.targets()
	require.Len(t, targets, 2)
	assert.Equal(t, dm.SSID(1), targets[0].SSID)
	assert.Equal(t, "coap://127.0.0.1:5683", targets[0].URI)
	assert.Equal(t, dm.SSID(2), targets[1].SSID)
	assert.Equal(t, "coap://127.0.0.1:5693", targets[1].URI)
}

func TestStateSaveAndRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	cfg := DefaultConfig()
	cfg.StatePath = path

	first, err := Bootstrap(cfg, WithEngine(&nopEngine{}))
	require.NoError(t, err)

	// A remotely created resource instance with its own grant is not
	// persisted; its ACL entry is skipped on restore.
	iid, err := first.Resource().CreateInstance(dm.IIDInvalid)
	require.NoError(t, err)
	require.NoError(t, first.ACL().SetACL(ResourceObjectID, iid, 1, dm.AccessRead|dm.AccessWrite))

	wantSec := first.Security().Entries()
	wantSrv := first.Server().Entries()
	require.NoError(t, first.Close())

	_, err = os.Stat(path)
	require.NoError(t, err, "Close saves the state")

	// The state file wins over the configured server list.
	cfg.Servers = cfg.Servers[:1]
	second, err := Bootstrap(cfg, WithEngine(&nopEngine{}))
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, wantSec, second.Security().Entries())
	assert.Equal(t, wantSrv, second.Server().Entries())
	assert.Equal(t, dm.AccessCreate, second.ACL().GetACL(ResourceObjectID, dm.IIDInvalid, CreateGrantSSID))
	assert.Len(t, second.ACL().Entries(), 3)
}

func TestRestoreCorruptStateFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	require.NoError(t, os.WriteFile(path, []byte("not cbor"), 0o600))

	cfg := DefaultConfig()
	cfg.StatePath = path
	rec := &recorder{}

	_, err := Bootstrap(cfg, WithEngine(&nopEngine{}), WithReleaseObserver(rec.observe))
	assert.ErrorIs(t, err, ErrRestore)
	assert.Len(t, rec.released, 6)
}

func TestRestoreRejectsOrphanServer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	state := &persistence.State{
		Security: []persistence.SecurityRecord{
			{IID: 0, SSID: 1, ServerURI: "coap://127.0.0.1:5683", SecurityMode: uint8(security.ModeNoSec)},
		},
		Server: []persistence.ServerRecord{
			{IID: 0, SSID: 1, Lifetime: DefaultLifetime, DefaultMinPeriod: server.NotSet, DefaultMaxPeriod: server.NotSet, DisableTimeout: server.NotSet, Binding: "U"},
			{IID: 1, SSID: 5, Lifetime: DefaultLifetime, DefaultMinPeriod: server.NotSet, DefaultMaxPeriod: server.NotSet, DisableTimeout: server.NotSet, Binding: "U"},
		},
	}
	require.NoError(t, persistence.NewStore(path).Save(state))

	cfg := DefaultConfig()
	cfg.StatePath = path
	rec := &recorder{}

	_, err := Bootstrap(cfg, WithEngine(&nopEngine{}), WithReleaseObserver(rec.observe))
	assert.ErrorIs(t, err, ErrRestore)
	assert.ErrorIs(t, err, ErrOrphanServer)
	assert.Len(t, rec.released, 6, "everything acquired is released")
}
