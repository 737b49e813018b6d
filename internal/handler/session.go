package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"github.com/msomdec/shopfront/internal/domain"
	"github.com/msomdec/shopfront/internal/service"
	"github.com/msomdec/shopfront/internal/view"
)

type contextKey string

const sessionContextKey contextKey = "session"

// requestSession is the session attached to one request. Handlers may fill
// it in when they start a session lazily.
type requestSession struct {
	token string
	sess  *domain.Session
}

func withRequestSession(r *http.Request, rs *requestSession) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionContextKey, rs))
}

func requestSessionFrom(ctx context.Context) *requestSession {
	if rs, ok := ctx.Value(sessionContextKey).(*requestSession); ok {
		return rs
	}
	return &requestSession{}
}

// SessionFromContext returns the session attached to the request, or nil.
func SessionFromContext(ctx context.Context) *domain.Session {
	return requestSessionFrom(ctx).sess
}

// identity returns the logged-in user ID, or uuid.Nil.
func identity(ctx context.Context) uuid.UUID {
	return SessionFromContext(ctx).UserID()
}

// sessionCookie writes the cookie that carries the raw session token. It
// has no expiry of its own; the server-side record decides when it dies.
type sessionCookie struct {
	name   string
	secure bool
}

func (c sessionCookie) read(r *http.Request) string {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (c sessionCookie) set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c sessionCookie) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// pages builds the page chrome shared by every HTML handler.
type pages struct {
	sessions *service.SessionService
	cookie   sessionCookie
}

// nav returns the chrome for a page that carries a form. An anonymous
// visitor gets a session here so the form has a CSRF token to submit.
func (p *pages) nav(w http.ResponseWriter, r *http.Request) (view.Nav, error) {
	ctx := r.Context()
	rs := requestSessionFrom(ctx)
	if rs.sess == nil {
		if err := p.start(w, r, rs); err != nil {
			return view.Nav{}, err
		}
	}
	if _, err := p.sessions.EnsureCSRF(ctx, rs.sess); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return view.Nav{}, err
		}
		// Destroyed during this request; carry on with a fresh one.
		if err := p.start(w, r, rs); err != nil {
			return view.Nav{}, err
		}
	}
	nav := navFromContext(ctx)
	nav.Flash = p.sessions.PopFlash(ctx, rs.sess)
	return nav, nil
}

// start gives the request a new anonymous session and sets its cookie.
func (p *pages) start(w http.ResponseWriter, r *http.Request, rs *requestSession) error {
	token, sess, err := p.sessions.Start(r.Context())
	if err != nil {
		return err
	}
	p.cookie.set(w, token)
	rs.token, rs.sess = token, sess
	return nil
}

// renderForm renders a page that carries a form.
func (p *pages) renderForm(w http.ResponseWriter, r *http.Request, status int, build func(view.Nav) templ.Component) {
	nav, err := p.nav(w, r)
	if err != nil {
		handleError(w, r, "build page", err)
		return
	}
	render(w, r, status, build(nav))
}

// optionalNav returns the chrome without starting a session.
func (p *pages) optionalNav(r *http.Request) view.Nav {
	ctx := r.Context()
	nav := navFromContext(ctx)
	if sess := SessionFromContext(ctx); sess != nil {
		nav.Flash = p.sessions.PopFlash(ctx, sess)
	}
	return nav
}

func (p *pages) flash(r *http.Request, msg string) {
	sess := SessionFromContext(r.Context())
	if sess == nil {
		return
	}
	err := p.sessions.SetFlash(r.Context(), sess, msg)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Destroyed by a password reset or logout; the message is dropped.
		requestSessionFrom(r.Context()).sess = nil
	case err != nil:
		slog.WarnContext(r.Context(), "failed to set flash", "error", err)
	}
}

func navFromContext(ctx context.Context) view.Nav {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return view.Nav{}
	}
	nav := view.Nav{LoggedIn: sess.IsLoggedIn, CSRF: sess.CSRFToken}
	if sess.User != nil {
		nav.Email = sess.User.Email
	}
	return nav
}
