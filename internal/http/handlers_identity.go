package httpx

import (
	"net/http"
)

type meResponse struct {
	OK             bool   `json:"ok"`
	Email          string `json:"email"`
	InboxConnected bool   `json:"inboxConnected"`
}

// meHandler reports the signed-in user. Mounted behind RequireSession.
// GET /identity/me.
func meHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteFailure(w, http.StatusUnauthorized, "Missing token")
		return
	}
	// Mailbox access is out of scope, so inboxConnected is always false.
	WriteJSON(w, http.StatusOK, meResponse{OK: true, Email: p.Email, InboxConnected: false})
}
