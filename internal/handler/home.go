package handler

import (
	"net/http"

	"github.com/msomdec/shopfront/internal/view"
)

// HomeHandler renders the landing page.
type HomeHandler struct {
	*pages
}

// HandleHome renders the home page.
func (h *HomeHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, view.HomePage(h.optionalNav(r)))
}
