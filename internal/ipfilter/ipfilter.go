package ipfilter

import (
	"net"
	"net/http"
	"strings"

	"fknsrs.biz/p/vidvault/internal/config"
	"fknsrs.biz/p/vidvault/internal/httputil"
)

// ClientIP returns the caller's address, preferring the first hop of
// X-Forwarded-For when a proxy sits in front.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// Allowed checks an address against the allow-list. An empty list admits
// everyone.
func Allowed(ip string, allowed config.IPList) bool {
	if len(allowed) == 0 {
		return true
	}

	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, e := range allowed {
		if allowedIP := net.ParseIP(e); allowedIP != nil && allowedIP.Equal(clientIP) {
			return true
		}
	}

	return false
}

// Register builds the negroni middleware. The allow-list is read through the
// cell on every request so config changes take effect without a restart.
func Register(c *config.Cell) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		ip := ClientIP(r)

		if !Allowed(ip, c.Get().AllowedIPs) {
			httputil.Forbidden(rw, "access denied for "+ip)
			return
		}

		next(rw, r)
	}
}
