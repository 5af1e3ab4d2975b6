package consent

import (
	"net"
	"net/http"
	"strings"
)

const unknownAddress = "unknown"

// ClientAddress extracts the signer's address. The first present source wins:
// X-Forwarded-For (first hop), X-Real-IP, CF-Connecting-IP, then the peer address.
func ClientAddress(r *http.Request) string {
	if r == nil {
		return unknownAddress
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	for _, h := range []string{"X-Real-IP", "CF-Connecting-IP"} {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}
	if addr := strings.TrimSpace(r.RemoteAddr); addr != "" {
		if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
			return host
		}
		return addr
	}
	return unknownAddress
}
