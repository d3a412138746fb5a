package http

import (
	"net/http"
)

// HandleVersion responds to GET and HEAD requests with the server version as
// plain text.
func HandleVersion(version string) http.HandlerFunc {
	body := []byte(version)

	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
		default:
			w.Header().Set("Allow", "GET, HEAD")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		w.Write(body)
	}
}
