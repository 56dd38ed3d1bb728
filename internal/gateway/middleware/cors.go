package middleware

import (
	"net/http"
	"slices"
	"strings"
)

const (
	allowMethods = "POST, GET, OPTIONS"
	allowHeaders = "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, " +
		"Connect-Protocol-Version, Connect-Timeout-Ms, Connect-Content-Encoding, Connect-Accept-Encoding, " +
		"Sec-WebSocket-Protocol"
	exposeHeaders = "Connect-Content-Encoding, Connect-Accept-Encoding"
)

// OriginAllowed reports whether a browser origin may call the gateway. An
// empty allowlist admits every origin.
func OriginAllowed(origin string, allowed []string) bool {
	return len(allowed) == 0 || slices.Contains(allowed, strings.TrimSpace(origin))
}

// CORS answers preflights for the browser UI. With no allowed origins any
// origin is echoed back; otherwise unknown origins get no CORS headers and
// the browser blocks them.
func CORS(next http.Handler, allowed ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		switch {
		case origin == "":
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case OriginAllowed(origin, allowed):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		default:
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Access-Control-Allow-Methods", allowMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
		w.Header().Set("Access-Control-Expose-Headers", exposeHeaders)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
