package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/lwm2m-go/pkg/dm"
	"github.com/mash-protocol/lwm2m-go/pkg/security"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4000, cfg.InBufferSize)
	assert.Equal(t, 4000, cfg.OutBufferSize)
	assert.Equal(t, CreateGrantSSID, cfg.CreateGrantSSID)
	require.Len(t, cfg.Servers, 2)

	sec, srv, err := cfg.Servers[1].Instances()
	require.NoError(t, err)
	assert.Equal(t, security.Instance{SSID: 2, ServerURI: "coap://127.0.0.1:5693", SecurityMode: security.ModeNoSec}, sec)
	assert.Equal(t, server.Instance{
		SSID:             2,
		Lifetime:         86400 * time.Second,
		DefaultMinPeriod: server.NotSet,
		DefaultMaxPeriod: server.NotSet,
		DisableTimeout:   server.NotSet,
		Binding:          server.BindingUDP,
	}, srv)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	data := `
endpoint_name: urn:dev:os:test-42
out_buffer_size: 1024
max_wait: 250ms
servers:
  - ssid: 7
    uri: coap://192.0.2.1:5683
    lifetime: 10m
    default_min_period: 5s
    binding: UQ
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "urn:dev:os:test-42", cfg.EndpointName)
	assert.Equal(t, 4000, cfg.InBufferSize, "unset keys keep defaults")
	assert.Equal(t, 1024, cfg.OutBufferSize)
	assert.Equal(t, 250*time.Millisecond, cfg.MaxWait)
	require.Len(t, cfg.Servers, 1, "servers list replaces the defaults")

	_, srv, err := cfg.Servers[0].Instances()
	require.NoError(t, err)
	assert.Equal(t, dm.SSID(7), srv.SSID)
	assert.Equal(t, 10*time.Minute, srv.Lifetime)
	assert.Equal(t, 5*time.Second, srv.DefaultMinPeriod)
	assert.Equal(t, server.NotSet, srv.DefaultMaxPeriod)
	assert.Equal(t, server.BindingUDPQueue, srv.Binding)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers: {not: a list"), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty endpoint", func(c *Config) { c.EndpointName = "" }},
		{"zero buffer", func(c *Config) { c.InBufferSize = 0 }},
		{"duplicate ssid", func(c *Config) { c.Servers[1].SSID = c.Servers[0].SSID }},
		{"reserved ssid", func(c *Config) { c.Servers[0].SSID = dm.SSIDBootstrap }},
		{"bootstrap create grant", func(c *Config) { c.CreateGrantSSID = dm.SSIDBootstrap }},
		{"unknown mode", func(c *Config) { c.Servers[0].SecurityMode = "tls" }},
		{"secure mode over coap", func(c *Config) { c.Servers[0].SecurityMode = "psk" }},
		{"bad binding", func(c *Config) { c.Servers[0].Binding = "X" }},
		{"negative max wait", func(c *Config) { c.MaxWait = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}
