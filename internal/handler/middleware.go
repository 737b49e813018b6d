package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/msomdec/shopfront/internal/domain"
	"github.com/msomdec/shopfront/internal/service"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling file parts to disk.
const multipartMemory = 8 << 20

// LoadSession attaches the session named by the bearer token or the session
// cookie. Requests without a live session, or whose bound user no longer
// exists, continue anonymously.
func LoadSession(sessions *service.SessionService, tokens *service.TokenIssuer, users domain.UserRepository, cookieName string) func(http.Handler) http.Handler {
	cookie := sessionCookie{name: cookieName}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rs := &requestSession{}

			token := cookie.read(r)
			if bearer, ok := bearerToken(r); ok {
				token = ""
				if sid, err := tokens.Parse(bearer); err == nil {
					token = sid
				}
			}

			if token != "" {
				sess, err := sessions.Resolve(r.Context(), token)
				switch {
				case err == nil:
					if identityExists(r, users, sess) {
						rs.token, rs.sess = token, sess
					}
				case !errors.Is(err, domain.ErrNotFound):
					slog.WarnContext(r.Context(), "failed to resolve session", "error", err)
				}
			}

			next.ServeHTTP(w, withRequestSession(r, rs))
		})
	}
}

// identityExists reports whether a logged-in session still has a user
// record behind it. Anonymous sessions always pass.
func identityExists(r *http.Request, users domain.UserRepository, sess *domain.Session) bool {
	if !sess.IsLoggedIn {
		return true
	}
	_, err := users.GetByID(r.Context(), sess.UserID())
	if err == nil {
		return true
	}
	if !errors.Is(err, domain.ErrNotFound) {
		slog.WarnContext(r.Context(), "failed to look up session user", "error", err)
	}
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// RequireAuth redirects requests without a logged-in session to /login.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		if sess == nil || !sess.IsLoggedIn {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CSRF rejects state-changing requests whose token does not match the
// session's. The token is read from the _csrf form field, the X-CSRF-Token
// header or the _csrf query parameter, in that order.
func CSRF(sessions *service.SessionService, maxBody int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				next.ServeHTTP(w, r)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
			// net/http only cleans up the form of the request it created, and
			// this one is a WithContext copy, so spilled parts are removed here.
			defer func() {
				if r.MultipartForm != nil {
					_ = r.MultipartForm.RemoveAll()
				}
			}()
			if err := parseBody(r); err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					renderError(w, r, http.StatusRequestEntityTooLarge, msgTooLarge)
					return
				}
				renderError(w, r, http.StatusBadRequest, msgBadRequest)
				return
			}

			if err := sessions.ValidateCSRF(SessionFromContext(r.Context()), csrfToken(r)); err != nil {
				slog.WarnContext(r.Context(), "csrf check failed", "method", r.Method, "path", r.URL.Path)
				renderError(w, r, http.StatusForbidden, msgInvalidCSRF)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseBody(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return r.ParseMultipartForm(multipartMemory)
	case "application/x-www-form-urlencoded":
		return r.ParseForm()
	}
	return nil
}

func csrfToken(r *http.Request) string {
	if v := r.PostForm.Get("_csrf"); v != "" {
		return v
	}
	if v := r.Header.Get("X-CSRF-Token"); v != "" {
		return v
	}
	return r.URL.Query().Get("_csrf")
}

// RateLimit answers 429 once a client IP exhausts its budget.
func RateLimit(limiter *service.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				w.Header().Set("Retry-After", "60")
				renderError(w, r, http.StatusTooManyRequests, msgTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SecurityHeaders sets the headers every response carries.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
		h.Set("Content-Security-Policy", "default-src 'self'; "+
			"script-src 'self' 'unsafe-eval' https://cdn.jsdelivr.net; "+
			"style-src 'self' 'unsafe-inline'; img-src 'self' data:; "+
			"object-src 'none'; base-uri 'self'; form-action 'self'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		slog.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}
