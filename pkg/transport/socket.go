package transport

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/mash-protocol/lwm2m-go/pkg/dm"
)

// DefaultPort is used when a coap URI has no port.
const DefaultPort = "5683"

// Socket errors.
var (
	ErrUnsupportedScheme = errors.New("unsupported URI scheme")
	ErrInvalidURI        = errors.New("invalid server URI")
	ErrSocketClosed      = errors.New("socket closed")
)

// Target is one server the engine keeps a socket for.
type Target struct {
	SSID dm.SSID
	URI  string
}

// Socket is a connected UDP socket for one server account.
type Socket struct {
	id     string
	target Target
	conn   *net.UDPConn
	fd     int

	closeOnce sync.Once
}

// ID returns the socket's UUID.
func (s *Socket) ID() string { return s.id }

// Fd returns the OS descriptor for readiness polling.
func (s *Socket) Fd() int { return s.fd }

// SSID returns the server account the socket serves.
func (s *Socket) SSID() dm.SSID { return s.target.SSID }

// Target returns the server the socket is connected to.
func (s *Socket) Target() Target { return s.target }

// LocalAddr returns the bound local address.
func (s *Socket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// RemoteAddr returns the server address.
func (s *Socket) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Close closes the socket. Repeated calls return nil.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// resolveTarget turns a coap URI into a UDP address.
func resolveTarget(uri string) (*net.UDPAddr, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	if u.Scheme != "coap" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	port := u.Port()
	if port == "" {
		port = DefaultPort
	}
	return net.ResolveUDPAddr("udp", net.JoinHostPort(u.Hostname(), port))
}

// dial opens a connected socket to target.
func dial(target Target) (*Socket, error) {
	raddr, err := resolveTarget(target.URI)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", raddr, err)
	}

	fd, err := socketFd(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Socket{
		id:     uuid.NewString(),
		target: target,
		conn:   conn,
		fd:     fd,
	}, nil
}

// socketFd extracts the descriptor without detaching it from the runtime
// poller, so reads through conn keep working.
func socketFd(conn *net.UDPConn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return -1, fmt.Errorf("syscall conn: %w", err)
	}
	fd := -1
	if err := raw.Control(func(s uintptr) { fd = int(s) }); err != nil {
		return -1, fmt.Errorf("socket descriptor: %w", err)
	}
	return fd, nil
}
