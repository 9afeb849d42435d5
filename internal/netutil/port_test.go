package netutil

import (
	"net"
	"strings"
	"testing"
)

// grabPort listens on an ephemeral port and returns its address, optionally
// keeping it held.
func grabPort(t *testing.T, hold bool) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	if hold {
		t.Cleanup(func() { _ = ln.Close() })
	} else {
		_ = ln.Close()
	}
	return addr
}

func TestSelectBindAddrPreferredFree(t *testing.T) {
	addr := grabPort(t, false)

	got, err := SelectBindAddr(addr, nil, false)
	if err != nil {
		t.Fatalf("SelectBindAddr() error = %v", err)
	}
	if got != addr {
		t.Fatalf("SelectBindAddr() = %q, want %q", got, addr)
	}
}

func TestSelectBindAddrBusyWithoutFallback(t *testing.T) {
	busy := grabPort(t, true)

	_, err := SelectBindAddr(busy, []string{grabPort(t, false)}, false)
	if err == nil {
		t.Fatal("expected error for busy preferred address")
	}
	if !strings.Contains(err.Error(), busy) {
		t.Fatalf("error should name the busy address, got %v", err)
	}
}

func TestSelectBindAddrFallsBackToCandidate(t *testing.T) {
	busy := grabPort(t, true)
	busyCandidate := grabPort(t, true)
	free := grabPort(t, false)

	got, err := SelectBindAddr(busy, []string{busyCandidate, free}, true)
	if err != nil {
		t.Fatalf("SelectBindAddr() error = %v", err)
	}
	if got != free {
		t.Fatalf("SelectBindAddr() = %q, want fallback %q", got, free)
	}
}

func TestSelectBindAddrAllBusy(t *testing.T) {
	busy := grabPort(t, true)

	if _, err := SelectBindAddr(busy, []string{busy}, true); err == nil {
		t.Fatal("expected error when every address is held")
	}
}

func TestSelectBindAddrNothingConfigured(t *testing.T) {
	if _, err := SelectBindAddr("", nil, true); err == nil {
		t.Fatal("expected error with no addresses configured")
	}
}
