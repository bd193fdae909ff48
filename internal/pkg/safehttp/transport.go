// Package safehttp builds HTTP transports for calls to partner-supplied URLs.
package safehttp

import (
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// DialTimeout bounds connection setup for partner calls.
const DialTimeout = 5 * time.Second

// NewTransport returns a transport that refuses to connect to loopback,
// private or link-local addresses. The check runs on the resolved address
// before the connection is made, so a partner URL whose host resolves to an
// internal address never reaches it. Proxies from the environment are not
// used: the check has to see the partner's address, not the proxy's.
func NewTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout: DialTimeout,
		Control: func(_, address string, _ syscall.RawConn) error {
			return CheckAddress(address)
		},
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = dialer.DialContext
	t.Proxy = nil
	return t
}

// CheckAddress reports an error when the host:port address points at a
// network partners must not reach through the gateway.
func CheckAddress(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("failed to parse remote IP for %q", address)
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
		return fmt.Errorf("access to private IP %s is denied", ip)
	}
	return nil
}
