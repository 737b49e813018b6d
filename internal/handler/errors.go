package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/msomdec/shopfront/internal/domain"
	"github.com/msomdec/shopfront/internal/view"
)

const (
	msgNotFound        = "Page Not Found!"
	msgInvalidCSRF     = "Invalid CSRF token"
	msgServerError     = "Something went wrong. We're working on fixing this, sorry for the inconvenience!"
	msgTooManyRequests = "Too many attempts. Please wait a minute and try again."
	msgTooLarge        = "The upload is too large."
	msgBadRequest      = "The request could not be read."
)

// render writes an HTML page with the given status.
func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.ErrorContext(r.Context(), "render page", "error", err)
	}
}

// renderError writes a status page. It never exposes internal details.
func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render(w, r, status, view.ErrorPage(navFromContext(r.Context()), status, message))
}

// handleError maps a service error to a response. Validation errors are
// handled by the form handlers and never reach here.
func handleError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		renderError(w, r, http.StatusNotFound, msgNotFound)
	case errors.Is(err, domain.ErrUnauthorized):
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case errors.Is(err, domain.ErrInvalidCSRFToken):
		renderError(w, r, http.StatusForbidden, msgInvalidCSRF)
	default:
		slog.ErrorContext(r.Context(), op, "error", err)
		renderError(w, r, http.StatusInternalServerError, msgServerError)
	}
}
