package discovery

import (
	"errors"
	"time"
)

// Service constants for mDNS.
const (
	// ServiceType is the DNS-SD service type of a client endpoint.
	ServiceType = "_lwm2m._udp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the CoAP port announced when none is set.
	DefaultPort = 5683

	// DefaultTTL is the DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// TXT record keys.
const (
	TXTKeyEndpoint = "ep"  // Endpoint name
	TXTKeyBinding  = "b"   // Binding mode (optional)
	TXTKeyVersion  = "v"   // Enabler version (optional)
	TXTKeyServers  = "srv" // Server account count (optional)
)

// MaxInstanceNameLen is the DNS label limit.
const MaxInstanceNameLen = 63

// Discovery errors.
var (
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record value")
	ErrInstanceNameTooLong = errors.New("invalid instance name")
	ErrNotAdvertising      = errors.New("not advertising")
)

// ServiceInfo describes the advertised endpoint.
type ServiceInfo struct {
	// EndpointName is the client endpoint name.
	EndpointName string

	// Port is the local CoAP port (default 5683).
	Port uint16

	// Binding is the binding mode of the client, e.g. "U".
	Binding string

	// Version is the enabler version, e.g. "1.0".
	Version string

	// Servers is the number of configured server accounts.
	Servers int
}

// InstanceName returns the DNS-SD instance name for the endpoint.
func (i *ServiceInfo) InstanceName() string {
	name := i.EndpointName
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}
