package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mash-protocol/lwm2m-go/pkg/client"
	"github.com/mash-protocol/lwm2m-go/pkg/dm"
	"github.com/mash-protocol/lwm2m-go/pkg/examples"
	"github.com/mash-protocol/lwm2m-go/pkg/log"
	"github.com/mash-protocol/lwm2m-go/pkg/loop"
	"github.com/mash-protocol/lwm2m-go/pkg/security"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
)

// ResourceObjectID is the object ID of the custom Resource object.
const ResourceObjectID = examples.TestObjectID

// CreateGrantSSID is the server account that receives CREATE rights on the
// custom Resource object. It is a separate value from the object ID and from
// the configured server list; it need not name a configured server.
const CreateGrantSSID dm.SSID = 1

// DefaultLifetime is the registration lifetime used when a server entry
// leaves it out.
const DefaultLifetime = 86400 * time.Second

// ErrInvalidConfig is returned for configuration that cannot be bootstrapped.
var ErrInvalidConfig = errors.New("invalid bootstrap configuration")

// ServerConfig describes one management server account. Durations are Go
// duration strings in YAML ("24h", "30s"). Optional periods left out are
// not set.
type ServerConfig struct {
	SSID             dm.SSID        `yaml:"ssid"`
	URI              string         `yaml:"uri"`
	SecurityMode     string         `yaml:"security_mode,omitempty"`
	Lifetime         time.Duration  `yaml:"lifetime,omitempty"`
	DefaultMinPeriod *time.Duration `yaml:"default_min_period,omitempty"`
	DefaultMaxPeriod *time.Duration `yaml:"default_max_period,omitempty"`
	DisableTimeout   *time.Duration `yaml:"disable_timeout,omitempty"`
	Binding          server.Binding `yaml:"binding,omitempty"`
}

func optional(d *time.Duration) time.Duration {
	if d == nil {
		return server.NotSet
	}
	return *d
}

// Instances converts the entry into the Security and Server instances it
// describes.
func (s ServerConfig) Instances() (security.Instance, server.Instance, error) {
	mode, err := security.ParseMode(s.SecurityMode)
	if err != nil {
		return security.Instance{}, server.Instance{}, err
	}
	lifetime := s.Lifetime
	if lifetime == 0 {
		lifetime = DefaultLifetime
	}
	binding := s.Binding
	if binding == "" {
		binding = server.BindingUDP
	}

	sec := security.Instance{
		SSID:         s.SSID,
		ServerURI:    s.URI,
		SecurityMode: mode,
	}
	srv := server.Instance{
		SSID:             s.SSID,
		Lifetime:         lifetime,
		DefaultMinPeriod: optional(s.DefaultMinPeriod),
		DefaultMaxPeriod: optional(s.DefaultMaxPeriod),
		DisableTimeout:   optional(s.DisableTimeout),
		Binding:          binding,
	}
	if err := sec.Validate(); err != nil {
		return sec, srv, err
	}
	if err := srv.Validate(); err != nil {
		return sec, srv, err
	}
	return sec, srv, nil
}

// Config configures the bootstrap sequence.
type Config struct {
	// EndpointName identifies this client to management servers.
	EndpointName string `yaml:"endpoint_name"`

	// InBufferSize and OutBufferSize size the datagram buffers.
	InBufferSize  int `yaml:"in_buffer_size"`
	OutBufferSize int `yaml:"out_buffer_size"`

	// Servers are the management server accounts created at startup.
	Servers []ServerConfig `yaml:"servers"`

	// CreateGrantSSID receives CREATE rights on the Resource object.
	CreateGrantSSID dm.SSID `yaml:"create_grant_ssid"`

	// StatePath, when set, restores the data model from this file if it
	// exists and saves it there on Close.
	StatePath string `yaml:"state_path,omitempty"`

	// MaxWait bounds every event loop wait.
	MaxWait time.Duration `yaml:"max_wait,omitempty"`

	// AutoCorrectAttributes swaps inverted min/max attribute pairs.
	AutoCorrectAttributes bool `yaml:"auto_correct_attributes,omitempty"`

	// Logger for bootstrap and runtime events. Nil disables logging.
	Logger *slog.Logger `yaml:"-"`

	// Trace receives protocol events. Nil disables tracing.
	Trace log.Logger `yaml:"-"`
}

// DefaultConfig returns the default configuration: two servers on the
// loopback interface with SSIDs 1 and 2.
func DefaultConfig() Config {
	cc := client.DefaultConfig()
	return Config{
		EndpointName:  cc.EndpointName,
		InBufferSize:  cc.InBufferSize,
		OutBufferSize: cc.OutBufferSize,
		Servers: []ServerConfig{
			{SSID: 1, URI: "coap://127.0.0.1:5683", SecurityMode: "nosec", Lifetime: DefaultLifetime, Binding: server.BindingUDP},
			{SSID: 2, URI: "coap://127.0.0.1:5693", SecurityMode: "nosec", Lifetime: DefaultLifetime, Binding: server.BindingUDP},
		},
		CreateGrantSSID: CreateGrantSSID,
		MaxWait:         loop.DefaultMaxWait,
	}
}

// LoadConfig reads a YAML file and overlays it onto DefaultConfig. A
// servers list in the file replaces the default list.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ClientConfig returns the client context configuration.
func (c Config) ClientConfig() client.Config {
	return client.Config{
		EndpointName:  c.EndpointName,
		InBufferSize:  c.InBufferSize,
		OutBufferSize: c.OutBufferSize,
		Logger:        c.Logger,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.ClientConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !c.CreateGrantSSID.Valid() {
		return fmt.Errorf("%w: create_grant_ssid %d", ErrInvalidConfig, c.CreateGrantSSID)
	}
	if c.MaxWait < 0 {
		return fmt.Errorf("%w: negative max_wait %s", ErrInvalidConfig, c.MaxWait)
	}

	seen := make(map[dm.SSID]bool, len(c.Servers))
	for i, s := range c.Servers {
		if seen[s.SSID] {
			return fmt.Errorf("%w: servers[%d]: duplicate ssid %d", ErrInvalidConfig, i, s.SSID)
		}
		seen[s.SSID] = true
		if _, _, err := s.Instances(); err != nil {
			return fmt.Errorf("%w: servers[%d]: %w", ErrInvalidConfig, i, err)
		}
	}
	return nil
}
