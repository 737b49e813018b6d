package view

import "github.com/a-h/templ"

// LoginPage renders the login form.
func LoginPage(nav Nav, form Form) templ.Component {
	return layout("Login", nav, component(func(w *writer) {
		w.raw(`<h1>Login</h1><form action="/login" method="post" novalidate>`)
		csrfField(w, nav.CSRF)
		fieldError(w, form, "form")
		input(w, form, "email", "email", "E-Mail")
		input(w, form, "password", "password", "Password")
		w.raw(`<button type="submit">Login</button></form><p><a href="/reset">Reset Password</a></p>`)
	}))
}

// SignupPage renders the signup form.
func SignupPage(nav Nav, form Form) templ.Component {
	return layout("Signup", nav, component(func(w *writer) {
		w.raw(`<h1>Signup</h1><form action="/signup" method="post" novalidate>`)
		csrfField(w, nav.CSRF)
		input(w, form, "email", "email", "E-Mail")
		input(w, form, "password", "password", "Password")
		input(w, form, "password", "confirmPassword", "Confirm Password")
		w.raw(`<button type="submit">Signup</button></form>`)
	}))
}

// ResetPage renders the reset request form.
func ResetPage(nav Nav, form Form) templ.Component {
	return layout("Reset Password", nav, component(func(w *writer) {
		w.raw(`<h1>Reset Password</h1><form action="/reset" method="post" novalidate>`)
		csrfField(w, nav.CSRF)
		input(w, form, "email", "email", "E-Mail")
		w.raw(`<button type="submit">Reset Password</button></form>`)
	}))
}

// NewPasswordPage renders the form that consumes a reset token.
func NewPasswordPage(nav Nav, token string, form Form) templ.Component {
	return layout("New Password", nav, component(func(w *writer) {
		w.raw(`<h1>New Password</h1><form action="/new-password" method="post" novalidate>`)
		csrfField(w, nav.CSRF)
		hidden(w, "passwordToken", token)
		input(w, form, "password", "password", "Password")
		input(w, form, "password", "confirmPassword", "Confirm Password")
		w.raw(`<button type="submit">Update Password</button></form>`)
	}))
}
