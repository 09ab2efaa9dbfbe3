// Package clientip resolves the peer address used to key rate-limit buckets.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// FromRequest returns the remote IP of the request. Forwarding headers are
// ignored on purpose: X-Forwarded-For is client-controlled unless a trusted
// proxy strips it, and the chat gateway terminates connections directly.
func FromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port, e.g. in tests.
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}
