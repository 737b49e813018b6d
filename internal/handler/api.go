package handler

import (
	"net/http"
	"time"

	"github.com/msomdec/shopfront/internal/service"
)

// APIHandler serves endpoints for clients that cannot hold cookies.
type APIHandler struct {
	tokens *service.TokenIssuer
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(tokens *service.TokenIssuer) *APIHandler {
	return &APIHandler{tokens: tokens}
}

// HandleSessionToken wraps the current session in a bearer JWT.
// POST /api/session/token
// Response: {"token":"...","csrfToken":"...","expiresAt":"..."}
func (h *APIHandler) HandleSessionToken(w http.ResponseWriter, r *http.Request) {
	rs := requestSessionFrom(r.Context())
	if rs.sess == nil || !rs.sess.IsLoggedIn {
		writeMessage(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	signed, err := h.tokens.Issue(rs.token, rs.sess)
	if err != nil {
		handleError(w, r, "issue session token", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":     signed,
		"csrfToken": rs.sess.CSRFToken,
		"expiresAt": rs.sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
