package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// clientIP returns the caller's address for request logs. Forwarding headers
// are honoured only with trustProxy, and only when they hold a valid IP.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		for _, v := range []string{first, r.Header.Get("X-Real-IP")} {
			if addr, err := netip.ParseAddr(strings.TrimSpace(v)); err == nil {
				return addr.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
