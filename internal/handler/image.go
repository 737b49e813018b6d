package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/msomdec/shopfront/internal/service"
)

// ImageHandler serves stored product images.
type ImageHandler struct {
	products *service.ProductService
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(products *service.ProductService) *ImageHandler {
	return &ImageHandler{products: products}
}

// HandleServe streams image bytes with the stored content type.
// GET /uploads/{key...}
func (h *ImageHandler) HandleServe(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.products.Image(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		handleError(w, r, "serve image", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
