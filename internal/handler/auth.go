package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/msomdec/shopfront/internal/domain"
	"github.com/msomdec/shopfront/internal/service"
	"github.com/msomdec/shopfront/internal/view"
)

const (
	flashSignedUp    = "Your account was created. Please log in."
	flashResetSent   = "If that address belongs to an account, a reset link is on its way."
	flashPasswordSet = "Your password was updated. Please log in."
)

// AuthHandler handles signup, login, logout and password recovery.
type AuthHandler struct {
	*pages
	auth    *service.AuthService
	baseURL string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, p *pages, baseURL string) *AuthHandler {
	return &AuthHandler{pages: p, auth: auth, baseURL: baseURL}
}

// HandleLoginPage renders the login form.
// GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, func(nav view.Nav) templ.Component {
		return view.LoginPage(nav, view.Form{})
	})
}

// HandleLogin checks the credentials and binds the user to a new session.
// POST /login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := r.PostFormValue("email")
	values := map[string]string{"email": email}

	user, err := h.auth.Login(ctx, email, r.PostFormValue("password"))
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
		case errors.Is(err, domain.ErrUnauthorized):
			verr = domain.NewValidationError("form", service.MsgInvalidCredentials)
		default:
			handleError(w, r, "login user", err)
			return
		}
		h.renderForm(w, r, http.StatusUnprocessableEntity, func(nav view.Nav) templ.Component {
			return view.LoginPage(nav, view.FormFromError(values, verr))
		})
		return
	}

	rs := requestSessionFrom(ctx)
	token, sess, err := h.sessions.Login(ctx, rs.sess, user)
	if err != nil {
		handleError(w, r, "start session", err)
		return
	}
	rs.token, rs.sess = token, sess
	h.cookie.set(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleSignupPage renders the signup form.
// GET /signup
func (h *AuthHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, func(nav view.Nav) templ.Component {
		return view.SignupPage(nav, view.Form{})
	})
}

// HandleSignup creates an account.
// POST /signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	in := service.SignupInput{
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}
	if _, err := h.auth.Signup(r.Context(), in); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			h.renderForm(w, r, http.StatusUnprocessableEntity, func(nav view.Nav) templ.Component {
				return view.SignupPage(nav, view.FormFromError(map[string]string{"email": in.Email}, verr))
			})
			return
		}
		handleError(w, r, "signup user", err)
		return
	}

	h.flash(r, flashSignedUp)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleLogout destroys the session and clears the cookie.
// POST /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r.Context(), SessionFromContext(r.Context())); err != nil {
		slog.ErrorContext(r.Context(), "destroy session", "error", err)
	}
	h.cookie.clear(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleResetPage renders the reset request form.
// GET /reset
func (h *AuthHandler) HandleResetPage(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, func(nav view.Nav) templ.Component {
		return view.ResetPage(nav, view.Form{})
	})
}

// HandleReset issues a reset token and mails the link.
// POST /reset
func (h *AuthHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	err := h.auth.RequestReset(r.Context(), email, h.baseURL)

	var verr *domain.ValidationError
	switch {
	case err == nil:
		h.flash(r, flashResetSent)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.As(err, &verr):
		h.renderForm(w, r, http.StatusUnprocessableEntity, func(nav view.Nav) templ.Component {
			return view.ResetPage(nav, view.FormFromError(map[string]string{"email": email}, verr))
		})
	case errors.Is(err, domain.ErrNotFound):
		h.flash(r, service.MsgUnknownResetEmail)
		http.Redirect(w, r, "/reset", http.StatusSeeOther)
	default:
		handleError(w, r, "request password reset", err)
	}
}

// HandleNewPasswordPage renders the new-password form for a live token.
// GET /reset/{token}
func (h *AuthHandler) HandleNewPasswordPage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if _, err := h.auth.ValidateResetToken(r.Context(), token); err != nil {
		if errors.Is(err, domain.ErrTokenInvalidOrExpired) {
			h.flash(r, service.MsgInvalidResetToken)
			http.Redirect(w, r, "/reset", http.StatusSeeOther)
			return
		}
		handleError(w, r, "validate reset token", err)
		return
	}
	h.renderForm(w, r, http.StatusOK, func(nav view.Nav) templ.Component {
		return view.NewPasswordPage(nav, token, view.Form{})
	})
}

// HandleNewPassword consumes the reset token.
// POST /new-password
func (h *AuthHandler) HandleNewPassword(w http.ResponseWriter, r *http.Request) {
	token := r.PostFormValue("passwordToken")
	err := h.auth.ConsumeReset(r.Context(), token, r.PostFormValue("password"), r.PostFormValue("confirmPassword"))

	var verr *domain.ValidationError
	switch {
	case err == nil:
		h.flash(r, flashPasswordSet)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case errors.As(err, &verr):
		h.renderForm(w, r, http.StatusUnprocessableEntity, func(nav view.Nav) templ.Component {
			return view.NewPasswordPage(nav, token, view.FormFromError(nil, verr))
		})
	case errors.Is(err, domain.ErrTokenInvalidOrExpired):
		h.flash(r, service.MsgInvalidResetToken)
		http.Redirect(w, r, "/reset", http.StatusSeeOther)
	default:
		handleError(w, r, "consume password reset", err)
	}
}
