package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService records what the advertiser does with a registration.
type fakeService struct {
	text     []string
	shutdown bool
}

func (s *fakeService) SetText(text []string) { s.text = text }
func (s *fakeService) Shutdown()             { s.shutdown = true }

type registration struct {
	instance, service, domain string
	port                      int
	text                      []string
	opts                      int
}

func newTestAdvertiser(t *testing.T) (*MDNSAdvertiser, *[]registration, *[]*fakeService) {
	t.Helper()
	var regs []registration
	var services []*fakeService
	adv := NewMDNSAdvertiser(DefaultAdvertiserConfig())
	adv.register = func(instance, svc, domain string, port int, text []string, _ []net.Interface, opts ...zeroconf.ServerOption) (service, error) {
		regs = append(regs, registration{instance, svc, domain, port, text, len(opts)})
		s := &fakeService{text: text}
		services = append(services, s)
		return s, nil
	}
	return adv, &regs, &services
}

func TestMDNSAdvertiserAdvertise(t *testing.T) {
	adv, regs, _ := newTestAdvertiser(t)

	info := &ServiceInfo{EndpointName: "urn:dev:os:test", Binding: "U", Servers: 2}
	require.NoError(t, adv.Advertise(context.Background(), info))

	require.Len(t, *regs, 1)
	reg := (*regs)[0]
	assert.Equal(t, "urn:dev:os:test", reg.instance)
	assert.Equal(t, ServiceType, reg.service)
	assert.Equal(t, Domain, reg.domain)
	assert.Equal(t, DefaultPort, reg.port)
	assert.Equal(t, []string{"b=U", "ep=urn:dev:os:test", "srv=2"}, reg.text)
	assert.Equal(t, 1, reg.opts, "TTL option is set")
	assert.Same(t, info, adv.Advertised())
}

func TestMDNSAdvertiserReplaces(t *testing.T) {
	adv, regs, services := newTestAdvertiser(t)
	ctx := context.Background()

	require.NoError(t, adv.Advertise(ctx, &ServiceInfo{EndpointName: "a"}))
	require.NoError(t, adv.Advertise(ctx, &ServiceInfo{EndpointName: "b", Port: 5700}))

	require.Len(t, *regs, 2)
	assert.True(t, (*services)[0].shutdown, "previous advertisement is withdrawn")
	assert.False(t, (*services)[1].shutdown)
	assert.Equal(t, 5700, (*regs)[1].port)
}

func TestMDNSAdvertiserUpdate(t *testing.T) {
	adv, _, services := newTestAdvertiser(t)

	err := adv.Update(&ServiceInfo{EndpointName: "a"})
	assert.ErrorIs(t, err, ErrNotAdvertising)

	require.NoError(t, adv.Advertise(context.Background(), &ServiceInfo{EndpointName: "a"}))
	require.NoError(t, adv.Update(&ServiceInfo{EndpointName: "a", Servers: 1}))
	assert.Equal(t, []string{"ep=a", "srv=1"}, (*services)[0].text)
}

func TestMDNSAdvertiserStop(t *testing.T) {
	adv, _, services := newTestAdvertiser(t)

	// Nothing advertised yet.
	require.NoError(t, adv.Stop())

	require.NoError(t, adv.Advertise(context.Background(), &ServiceInfo{EndpointName: "a"}))
	require.NoError(t, adv.Stop())
	assert.True(t, (*services)[0].shutdown)
	assert.Nil(t, adv.Advertised())
	require.NoError(t, adv.Stop())
}

func TestMDNSAdvertiserErrors(t *testing.T) {
	adv, regs, _ := newTestAdvertiser(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, adv.Advertise(ctx, &ServiceInfo{EndpointName: "a"}), context.Canceled)

	assert.ErrorIs(t, adv.Advertise(context.Background(), &ServiceInfo{}), ErrInstanceNameTooLong)
	assert.Empty(t, *regs)

	regErr := errors.New("no multicast interface")
	adv.register = func(string, string, string, int, []string, []net.Interface, ...zeroconf.ServerOption) (service, error) {
		return nil, regErr
	}
	assert.ErrorIs(t, adv.Advertise(context.Background(), &ServiceInfo{EndpointName: "a"}), regErr)
	assert.Nil(t, adv.Advertised())
}

func TestDefaultAdvertiserConfig(t *testing.T) {
	cfg := DefaultAdvertiserConfig()
	if cfg.TTL != 120*time.Second {
		t.Errorf("TTL = %v, want 120s", cfg.TTL)
	}
	if cfg.Interface != "" {
		t.Errorf("Interface = %q, want all interfaces", cfg.Interface)
	}
}
