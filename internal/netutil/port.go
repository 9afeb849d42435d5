// Package netutil picks the local bind address for an agent's HTTP surface.
package netutil

import (
	"fmt"
	"net"
)

// SelectBindAddr returns the first bindable address, preferring preferred and
// then walking candidates when autoFallback is enabled. Without autoFallback
// a busy preferred address is an error instead of a silent port change: the
// capture page URL and the bridge endpoint are addresses other things point
// at.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	attempts := make([]string, 0, len(candidates)+1)
	if preferred != "" {
		attempts = append(attempts, preferred)
	}
	if autoFallback {
		attempts = append(attempts, candidates...)
	}
	if len(attempts) == 0 {
		return "", fmt.Errorf("no bind addresses configured")
	}

	for _, addr := range attempts {
		ok, err := IsAddrAvailable(addr)
		if err != nil {
			return "", err
		}
		if ok {
			return addr, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("preferred bind address in use: %s", preferred)
		}
	}
	return "", fmt.Errorf("all %d bind addresses in use (preferred %s)", len(attempts), preferred)
}

// IsAddrAvailable returns true when an address can be listened on.
func IsAddrAvailable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if closeErr := ln.Close(); closeErr != nil {
		return false, closeErr
	}
	return true, nil
}
