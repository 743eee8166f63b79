package middleware

import "net/http"

// Vary adds Accept to the Vary header of every response, since handlers pick
// JSON or CBOR from it (RFC 9110 section 12.5.5). CORS adds Origin separately.
func Vary() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Accept")
			next.ServeHTTP(w, r)
		})
	}
}
