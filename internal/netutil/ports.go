// Package netutil provides local port probing and in-process port
// reservation for kcdev server instances.
//
// Reservations only protect concurrent allocations inside one process from
// picking the same ports; whether a port is actually free on the host is
// checked with a bind probe. Between the probe and the server binding the
// port another process may still grab it, in which case startup fails and
// surfaces the server log.
package netutil

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"kcdev/pkg/logging"
)

// maxPortAttempts is the number of candidate pairs tried during an
// automatic port search.
const maxPortAttempts = 100

// Probe reports whether a TCP port on localhost can currently be bound.
// The test socket is opened with SO_REUSEADDR and closed immediately, so a
// successful probe does not leave the port in a state that would block the
// server from binding it right after.
func Probe(port int) bool {
	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(context.Background(), "tcp", net.JoinHostPort("localhost", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// Allocator hands out port pairs to server instances and remembers which
// ports are taken by which instance until they are released.
type Allocator struct {
	mu       sync.Mutex
	reserved map[int]string // port -> owner ID
}

// NewAllocator creates an empty Allocator.
func NewAllocator() *Allocator {
	return &Allocator{
		reserved: make(map[int]string),
	}
}

// AllocatePair searches for a free (port, port+offset) pair, starting at
// basePort and walking upwards one port at a time. Both ports must be
// unreserved and bindable. The pair is reserved for owner before it is
// returned.
func (a *Allocator) AllocatePair(basePort, offset int, owner string) (int, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < maxPortAttempts; i++ {
		port := basePort + i
		paired := port + offset
		if paired > 65535 {
			break
		}
		if _, taken := a.reserved[port]; taken {
			continue
		}
		if _, taken := a.reserved[paired]; taken {
			continue
		}
		if !Probe(port) || !Probe(paired) {
			continue
		}

		a.reserved[port] = owner
		a.reserved[paired] = owner
		logging.Debug("Ports", "Reserved port pair %d/%d for %s", port, paired, owner)
		return port, paired, nil
	}

	return 0, 0, fmt.Errorf("no available port pair starting from %d after %d attempts", basePort, maxPortAttempts)
}

// Release frees reservations held by owner. Ports reserved by a different
// owner are left alone.
func (a *Allocator) Release(owner string, ports ...int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, port := range ports {
		holder, taken := a.reserved[port]
		if !taken {
			continue
		}
		if holder != owner {
			logging.Warn("Ports", "Port %d is reserved by %s, not releasing for %s", port, holder, owner)
			continue
		}
		delete(a.reserved, port)
		logging.Debug("Ports", "Released port %d for %s", port, owner)
	}
}
