package view

import (
	"github.com/a-h/templ"
	"github.com/msomdec/shopfront/internal/domain"
)

// ProductsPage lists the signed-in seller's products.
func ProductsPage(nav Nav, products []domain.Product) templ.Component {
	return layout("Admin Products", nav, component(func(w *writer) {
		w.raw(`<h1>Your Products</h1>`)
		if len(products) == 0 {
			w.raw(`<p>No products yet. <a href="/admin/add-product">Add one.</a></p>`)
		}
		w.raw(`<div id="product-list">`)
		for i := range products {
			w.render(productCard(&products[i], nav.CSRF))
		}
		w.raw(`</div>`)
	}))
}

// productCard is also the element the delete SSE stream removes by id.
func productCard(p *domain.Product, csrf string) templ.Component {
	return component(func(w *writer) {
		id := p.ID.String()
		w.raw(`<article id="product-` + id + `"><h2>`)
		w.text(p.Title)
		w.raw(`</h2><img src="`)
		w.url(p.ImageURL())
		w.raw(`" alt="`)
		w.text(p.Title)
		w.raw(`"><p class="price">$`)
		w.text(p.Price())
		w.raw(`</p><p>`)
		w.text(p.Description)
		w.raw(`</p><a href="/admin/edit-product/` + id + `">Edit</a>`)
		w.raw(`<button type="button" data-on-click="`)
		w.text("@delete('/admin/products/" + id + "', {headers: {'X-CSRF-Token': '" + csrf + "'}})")
		w.raw(`">Delete</button><noscript><form action="/admin/delete-product" method="post">`)
		csrfField(w, csrf)
		hidden(w, "productId", id)
		w.raw(`<button type="submit">Delete</button></form></noscript></article>`)
	})
}

// ProductFormPage renders the add form, or the edit form when product is set.
func ProductFormPage(nav Nav, product *domain.Product, form Form) templ.Component {
	title, action, submit := "Add Product", "/admin/add-product", "Add Product"
	if product != nil {
		title, action, submit = "Edit Product", "/admin/edit-product", "Update Product"
	}
	return layout(title, nav, component(func(w *writer) {
		w.raw(`<h1>`)
		w.text(title)
		w.raw(`</h1><form action="` + action + `" method="post" enctype="multipart/form-data" novalidate>`)
		csrfField(w, nav.CSRF)
		if product != nil {
			hidden(w, "productId", product.ID.String())
		}
		input(w, form, "text", "title", "Title")
		w.raw(`<label for="image">Image</label>`)
		if product != nil {
			w.raw(`<img src="`)
			w.url(product.ImageURL())
			w.raw(`" alt="`)
			w.text(product.Title)
			w.raw(`">`)
		}
		w.raw(`<input type="file" id="image" name="image" accept="image/png,image/jpeg">`)
		fieldError(w, form, "image")
		w.raw(`<label for="price">Price</label><input type="number" id="price" name="price" step="0.01" value="`)
		w.text(form.Value("price"))
		w.raw(`">`)
		fieldError(w, form, "price")
		w.raw(`<label for="description">Description</label><textarea id="description" name="description" rows="5">`)
		w.text(form.Value("description"))
		w.raw(`</textarea>`)
		fieldError(w, form, "description")
		w.raw(`<button type="submit">` + submit + `</button></form>`)
	})
}
