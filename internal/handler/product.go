package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/msomdec/shopfront/internal/domain"
	"github.com/msomdec/shopfront/internal/service"
	"github.com/msomdec/shopfront/internal/view"
	"github.com/starfederation/datastar-go/datastar"
)

// ProductHandler serves the seller's product admin pages.
type ProductHandler struct {
	*pages
	products  *service.ProductService
	maxUpload int64
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(products *service.ProductService, p *pages, maxUpload int64) *ProductHandler {
	return &ProductHandler{pages: p, products: products, maxUpload: maxUpload}
}

func productInput(r *http.Request) (service.ProductInput, map[string]string) {
	in := service.ProductInput{
		Title:       r.PostFormValue("title"),
		Price:       r.PostFormValue("price"),
		Description: r.PostFormValue("description"),
	}
	return in, map[string]string{"title": in.Title, "price": in.Price, "description": in.Description}
}

func productValues(p *domain.Product) map[string]string {
	return map[string]string{"title": p.Title, "price": p.Price(), "description": p.Description}
}

// readUpload returns the image part, or nil when none was sent.
func (h *ProductHandler) readUpload(r *http.Request) (*domain.Upload, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.maxUpload {
		return nil, domain.NewValidationError("image", msgTooLarge)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &domain.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, domain.ErrNotFound
	}
	return id, nil
}

// HandleList renders the seller's products.
// GET /admin/products
func (h *ProductHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListByOwner(r.Context(), identity(r.Context()))
	if err != nil {
		handleError(w, r, "list products", err)
		return
	}
	h.renderForm(w, r, http.StatusOK, func(nav view.Nav) templ.Component {
		return view.ProductsPage(nav, products)
	})
}

// HandleAddPage renders an empty product form.
// GET /admin/add-product
func (h *ProductHandler) HandleAddPage(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, func(nav view.Nav) templ.Component {
		return view.ProductFormPage(nav, nil, view.Form{})
	})
}

// HandleAdd creates a product.
// POST /admin/add-product
func (h *ProductHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	in, values := productInput(r)
	up, err := h.readUpload(r)
	if err == nil {
		_, err = h.products.Create(r.Context(), identity(r.Context()), in, up)
	}

	var verr *domain.ValidationError
	switch {
	case err == nil:
		http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
	case errors.As(err, &verr):
		h.renderForm(w, r, http.StatusUnprocessableEntity, func(nav view.Nav) templ.Component {
			return view.ProductFormPage(nav, nil, view.FormFromError(values, verr))
		})
	default:
		handleError(w, r, "create product", err)
	}
}

// HandleEditPage renders the edit form for a product the user owns.
// GET /admin/edit-product/{id}
func (h *ProductHandler) HandleEditPage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, "parse product id", err)
		return
	}
	p, err := h.products.GetForEdit(r.Context(), identity(r.Context()), id)
	if err != nil {
		handleError(w, r, "get product", err)
		return
	}
	h.renderForm(w, r, http.StatusOK, func(nav view.Nav) templ.Component {
		return view.ProductFormPage(nav, p, view.Form{Values: productValues(p)})
	})
}

// HandleEdit updates a product the user owns.
// POST /admin/edit-product
func (h *ProductHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r.PostFormValue("productId"))
	if err != nil {
		handleError(w, r, "parse product id", err)
		return
	}

	in, values := productInput(r)
	up, err := h.readUpload(r)
	if err == nil {
		_, err = h.products.Update(ctx, identity(ctx), id, in, up)
	}

	var verr *domain.ValidationError
	switch {
	case err == nil:
		http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
	case errors.As(err, &verr):
		p, getErr := h.products.GetForEdit(ctx, identity(ctx), id)
		if getErr != nil {
			handleError(w, r, "get product", getErr)
			return
		}
		h.renderForm(w, r, http.StatusUnprocessableEntity, func(nav view.Nav) templ.Component {
			return view.ProductFormPage(nav, p, view.FormFromError(values, verr))
		})
	default:
		handleError(w, r, "update product", err)
	}
}

// HandleDeleteForm deletes a product from a plain form post.
// POST /admin/delete-product
func (h *ProductHandler) HandleDeleteForm(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PostFormValue("productId"))
	if err == nil {
		err = h.products.Delete(r.Context(), identity(r.Context()), id)
	}
	if err != nil {
		handleError(w, r, "delete product", err)
		return
	}
	http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
}

// HandleDelete deletes a product for a script client. Datastar requests get
// an SSE patch removing the product's element; others get JSON.
// DELETE /admin/products/{id}
func (h *ProductHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err == nil {
		err = h.products.Delete(r.Context(), identity(r.Context()), id)
	}

	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	default:
		handleError(w, r, "delete product", err)
		return
	}

	if r.Header.Get("Datastar-Request") == "true" {
		if status != http.StatusOK {
			http.Error(w, "Not Found", status)
			return
		}
		sse := datastar.NewSSE(w, r)
		sse.RemoveElementByID("product-" + id.String())
		return
	}
	if status != http.StatusOK {
		writeMessage(w, status, "Deleting product failed.")
		return
	}
	writeMessage(w, http.StatusOK, "success!")
}
