package middleware

import (
	"net"
	"net/http"
	"strings"

	goReset "github.com/MrEthical07/goReset"
)

// ClientIP attaches the caller address to the request context with
// goReset.WithClientIP. X-Forwarded-For is only honored when the direct peer
// is one of trustedProxies; otherwise RemoteAddr is used.
func ClientIP(trustedProxies ...string) func(http.Handler) http.Handler {
	trusted := make(map[string]struct{}, len(trustedProxies))
	for _, p := range trustedProxies {
		trusted[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteHost(r.RemoteAddr)
			if _, ok := trusted[ip]; ok {
				if fwd := forwardedFor(r.Header.Get("X-Forwarded-For")); fwd != "" {
					ip = fwd
				}
			}
			if ip != "" {
				r = r.WithContext(goReset.WithClientIP(r.Context(), ip))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// forwardedFor returns the left-most valid address in an X-Forwarded-For
// header.
func forwardedFor(value string) string {
	first, _, _ := strings.Cut(value, ",")
	first = strings.TrimSpace(first)
	if net.ParseIP(first) == nil {
		return ""
	}
	return first
}
