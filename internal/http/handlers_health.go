package httpx

import "net/http"

// healthz is a liveness probe; it never touches the database or the provider.
func healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteJSON(w, http.StatusOK, okResponse{OK: true})
}
