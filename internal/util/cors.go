package util

import "net/http"

var corsHeaders = [][2]string{
	{"Access-Control-Allow-Origin", "*"},
	{"Access-Control-Allow-Headers", "Authorization, Content-Type, " + RequestIDHeader},
	{"Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS"},
	{"Access-Control-Expose-Headers", RequestIDHeader + ", Retry-After"},
	{"Access-Control-Max-Age", "600"},
}

// WithCORS lets browser clients on any origin call the API with a bearer
// token. Preflight requests are answered here and never reach the router.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, kv := range corsHeaders {
			w.Header().Set(kv[0], kv[1])
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
