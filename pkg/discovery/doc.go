// Package discovery advertises the client endpoint with DNS-SD over mDNS.
//
// The endpoint is announced as a _lwm2m._udp service so that tools on the
// local network can find the client without a configured address. The
// instance name is the endpoint name, truncated to a DNS label.
//
// TXT records:
//   - ep: endpoint name (required)
//   - b: binding mode, e.g. "U" (optional)
//   - v: LwM2M enabler version (optional)
//   - srv: number of configured server accounts (optional)
package discovery
