//go:build !windows

package netutil

import "syscall"

// reuseAddrControl sets SO_REUSEADDR on the probe socket so a port left in
// TIME_WAIT by a previous instance still probes as free.
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
