package loop

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mash-protocol/lwm2m-go/pkg/client"
)

// Poller waits until sockets become readable.
type Poller interface {
	// Poll blocks for at most timeout and returns the sockets that are
	// readable, in the order they appear in socks. An empty socks slice
	// makes Poll a plain timed sleep.
	Poll(socks []client.Socket, timeout time.Duration) ([]client.Socket, error)
}

// UnixPoller implements Poller with poll(2).
type UnixPoller struct{}

// Compile-time interface satisfaction check.
var _ Poller = UnixPoller{}

// Poll waits with poll(2). EINTR is reported as nothing ready. Error and
// hang-up conditions count as ready so that Serve surfaces them.
func (UnixPoller) Poll(socks []client.Socket, timeout time.Duration) ([]client.Socket, error) {
	fds := make([]unix.PollFd, len(socks))
	for i, s := range socks {
		fds[i] = unix.PollFd{Fd: int32(s.Fd()), Events: unix.POLLIN}
	}

	n, err := unix.Poll(fds, timeoutMS(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	ready := make([]client.Socket, 0, n)
	for i, fd := range fds {
		if fd.Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0 {
			ready = append(ready, socks[i])
		}
	}
	return ready, nil
}

// timeoutMS converts a wait bound to poll milliseconds, rounding a positive
// sub-millisecond remainder up so a pending deadline never becomes a spin.
func timeoutMS(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := int(d / time.Millisecond)
	if d%time.Millisecond > 0 {
		ms++
	}
	return ms
}
