package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/msomdec/shopfront/internal/domain"
	"github.com/msomdec/shopfront/internal/service"
)

// Services are the collaborators the routes call into.
type Services struct {
	Auth     *service.AuthService
	Sessions *service.SessionService
	Users    domain.UserRepository
	Tokens   *service.TokenIssuer
	Products *service.ProductService
	Limiter  *service.RateLimiter
	DB       domain.Database
}

// Options tune the HTTP surface.
type Options struct {
	CookieName     string
	CookieSecure   bool
	BaseURL        string
	TrustProxy     bool
	MaxUploadBytes int64
}

// NewRouter builds the application's handler tree.
func NewRouter(svc Services, opts Options) http.Handler {
	p := &pages{
		sessions: svc.Sessions,
		cookie:   sessionCookie{name: opts.CookieName, secure: opts.CookieSecure},
	}
	home := &HomeHandler{pages: p}
	auth := NewAuthHandler(svc.Auth, p, opts.BaseURL)
	products := NewProductHandler(svc.Products, p, opts.MaxUploadBytes)
	images := NewImageHandler(svc.Products)
	api := NewAPIHandler(svc.Tokens)
	health := NewHealthHandler(svc.DB)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(SecurityHeaders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		renderError(w, r, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		renderError(w, r, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/healthz", health.HandleHealthz)
	r.Get("/uploads/*", images.HandleServe)

	r.Group(func(r chi.Router) {
		r.Use(LoadSession(svc.Sessions, svc.Tokens, svc.Users, opts.CookieName))
		// Multipart overhead on top of the image itself.
		r.Use(CSRF(svc.Sessions, opts.MaxUploadBytes+1<<20))

		r.Get("/", home.HandleHome)
		r.Get("/login", auth.HandleLoginPage)
		r.Get("/signup", auth.HandleSignupPage)
		r.Get("/reset", auth.HandleResetPage)
		r.Get("/reset/{token}", auth.HandleNewPasswordPage)
		r.Post("/logout", auth.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(RateLimit(svc.Limiter))
			r.Post("/login", auth.HandleLogin)
			r.Post("/signup", auth.HandleSignup)
			r.Post("/reset", auth.HandleReset)
			r.Post("/new-password", auth.HandleNewPassword)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAuth)
			r.Get("/products", products.HandleList)
			r.Get("/add-product", products.HandleAddPage)
			r.Post("/add-product", products.HandleAdd)
			r.Get("/edit-product/{id}", products.HandleEditPage)
			r.Post("/edit-product", products.HandleEdit)
			r.Post("/delete-product", products.HandleDeleteForm)
			r.Delete("/products/{id}", products.HandleDelete)
		})

		r.With(RequireAuth).Post("/api/session/token", api.HandleSessionToken)
	})

	return r
}
