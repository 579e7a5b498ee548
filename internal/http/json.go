package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Client went away.
		return
	}
}

// okResponse is the success envelope shared by every JSON endpoint.
type okResponse struct {
	OK bool `json:"ok"`
}

// failure is the error envelope: {"ok":false,"error":"..."}.
type failure struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// WriteFailure writes {"ok":false,"error":msg}.
func WriteFailure(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, failure{OK: false, Error: msg})
}
