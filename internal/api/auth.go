package api

import "net/http"

// RequireKey wraps next with shared-secret header authentication.
//
// Behaviour:
//   - If mode != "apikey" or key == "", all requests pass through.
//   - Otherwise the request must carry key in the named header; a
//     missing, empty, or incorrect value gets 401.
//
// An unset key deliberately admits everything: the daemon binds to
// localhost, and a misconfigured secret must not silently discard the
// host's build telemetry.
func RequireKey(mode, header, key string, next http.Handler) http.Handler {
	if mode != "apikey" || key == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(header) != key {
			jsonErr(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
