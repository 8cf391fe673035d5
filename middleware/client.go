package middleware

import (
	"net"
	"net/http"

	authcore "github.com/ridgelock-io/authcore"
)

// ClientContext annotates the request context with the caller's IP, user agent,
// and device headers so that downstream Engine calls can attribute audit events
// and device trust to the requesting client.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.Header.Get("X-Forwarded-For")
		if ip == "" {
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				ip = host
			} else {
				ip = r.RemoteAddr
			}
		}

		ctx := authcore.WithClientIP(r.Context(), ip)
		ctx = authcore.WithUserAgent(ctx, r.UserAgent())
		if fp := r.Header.Get("X-Device-Fingerprint"); fp != "" {
			ctx = authcore.WithDeviceFingerprint(ctx, fp)
		}
		if host := r.Header.Get("X-Device-Hostname"); host != "" {
			ctx = authcore.WithHostname(ctx, host)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
