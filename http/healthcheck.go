package http

import "net/http"

func HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// HandleReadyCheck responds with 503 until the readiness check passes.
func HandleReadyCheck(readinessCheck func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !readinessCheck() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
