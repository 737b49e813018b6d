// Package view renders the storefront's HTML pages as templ components.
package view

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
	"github.com/msomdec/shopfront/internal/domain"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

// Nav is the per-request chrome every page shows.
type Nav struct {
	LoggedIn bool
	Email    string
	CSRF     string
	Flash    string
}

// Form carries submitted values and per-field messages back to a form.
type Form struct {
	Values map[string]string
	Errors map[string]string
}

// FormFromError builds a Form from submitted values and a validation error.
func FormFromError(values map[string]string, verr *domain.ValidationError) Form {
	f := Form{Values: values, Errors: map[string]string{}}
	if verr != nil {
		for _, fe := range verr.Fields {
			if _, ok := f.Errors[fe.Field]; !ok {
				f.Errors[fe.Field] = fe.Message
			}
		}
	}
	return f
}

// Value returns the submitted value of field.
func (f Form) Value(field string) string { return f.Values[field] }

// Error returns the first message for field.
func (f Form) Error(field string) string { return f.Errors[field] }

// writer keeps the first write error so components read top to bottom.
type writer struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err == nil {
		_, w.err = io.WriteString(w.w, s)
	}
}

// text writes s escaped for element content and quoted attribute values.
func (w *writer) text(s string) { w.raw(templ.EscapeString(s)) }

// url writes a sanitized URL attribute value.
func (w *writer) url(s string) { w.text(string(templ.URL(s))) }

func (w *writer) render(c templ.Component) {
	if w.err == nil {
		w.err = c.Render(w.ctx, w.w)
	}
}

func component(fn func(w *writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{ctx: ctx, w: out}
		fn(w)
		return w.err
	})
}

func layout(title string, nav Nav, content templ.Component) templ.Component {
	return component(func(w *writer) {
		w.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"><title>`)
		w.text(title)
		w.raw(`</title><script type="module" src="` + datastarScript + `"></script></head><body><header><nav><a href="/">Shop</a>`)
		if nav.LoggedIn {
			w.raw(`<a href="/admin/add-product">Add Product</a><a href="/admin/products">Admin Products</a><span>`)
			w.text(nav.Email)
			w.raw(`</span><form action="/logout" method="post">`)
			csrfField(w, nav.CSRF)
			w.raw(`<button type="submit">Logout</button></form>`)
		} else {
			w.raw(`<a href="/login">Login</a><a href="/signup">Signup</a>`)
		}
		w.raw(`</nav></header><main>`)
		if nav.Flash != "" {
			w.raw(`<div class="flash" role="alert">`)
			w.text(nav.Flash)
			w.raw(`</div>`)
		}
		w.render(content)
		w.raw(`</main></body></html>`)
	})
}

func csrfField(w *writer, token string) {
	hidden(w, "_csrf", token)
}

func hidden(w *writer, name, value string) {
	w.raw(`<input type="hidden" name="`)
	w.text(name)
	w.raw(`" value="`)
	w.text(value)
	w.raw(`">`)
}

func fieldError(w *writer, form Form, field string) {
	if msg := form.Error(field); msg != "" {
		w.raw(`<p class="error">`)
		w.text(msg)
		w.raw(`</p>`)
	}
}

// input renders a labelled input with its error. Password inputs never echo
// the submitted value.
func input(w *writer, form Form, kind, name, label string) {
	w.raw(`<label for="`)
	w.text(name)
	w.raw(`">`)
	w.text(label)
	w.raw(`</label><input type="`)
	w.text(kind)
	w.raw(`" id="`)
	w.text(name)
	w.raw(`" name="`)
	w.text(name)
	w.raw(`"`)
	if kind != "password" {
		w.raw(` value="`)
		w.text(form.Value(name))
		w.raw(`"`)
	}
	w.raw(`>`)
	fieldError(w, form, name)
}

// HomePage renders the landing page.
func HomePage(nav Nav) templ.Component {
	return layout("Shop", nav, component(func(w *writer) {
		w.raw(`<h1>Welcome</h1>`)
		if nav.LoggedIn {
			w.raw(`<p>Signed in as `)
			w.text(nav.Email)
			w.raw(`. Manage your catalog from <a href="/admin/products">your products</a>.</p>`)
			return
		}
		w.raw(`<p><a href="/login">Log in</a> or <a href="/signup">sign up</a> to start selling.</p>`)
	}))
}

// ErrorPage renders a status page without internal details.
func ErrorPage(nav Nav, status int, message string) templ.Component {
	return layout("Error", nav, component(func(w *writer) {
		w.raw(`<h1>`)
		w.text(strconv.Itoa(status))
		w.raw(`</h1><p>`)
		w.text(message)
		w.raw(`</p><p><a href="/">Back to the shop</a></p>`)
	}))
}
