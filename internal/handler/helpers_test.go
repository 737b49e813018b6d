package handler_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/msomdec/shopfront/internal/domain"
	"github.com/msomdec/shopfront/internal/handler"
	"github.com/msomdec/shopfront/internal/repository/sqlite"
	"github.com/msomdec/shopfront/internal/service"
)

const testSecret = "test-secret-for-handler-tests-0123456789"

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

type recordingMailer struct {
	mu   sync.Mutex
	sent []domain.Message
}

func (m *recordingMailer) Send(_ context.Context, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type testApp struct {
	srv      *httptest.Server
	db       *sqlite.DB
	sessions *service.SessionService
	mailer   *recordingMailer
}

type appOption func(*handler.Services)

func withLimiter(l *service.RateLimiter) appOption {
	return func(s *handler.Services) { s.Limiter = l }
}

func newTestApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mailer := &recordingMailer{}
	sessions := service.NewSessionService(db.Sessions(), time.Hour, time.Minute)
	// Use cost 4 for fast tests.
	auth, err := service.NewAuthService(db.Users(), service.NewPasswordHasher(4), sessions, mailer)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	svc := handler.Services{
		Auth:     auth,
		Sessions: sessions,
		Users:    db.Users(),
		Tokens:   service.NewTokenIssuer(testSecret),
		Products: service.NewProductService(db.Products(), db.FileStore(), service.NewGuard(db.Products())),
		Limiter:  service.NewRateLimiter(1000, 1000),
		DB:       db,
	}
	for _, opt := range opts {
		opt(&svc)
	}

	srv := httptest.NewServer(handler.NewRouter(svc, handler.Options{
		CookieName:     "shop_session",
		BaseURL:        "http://shop.test",
		MaxUploadBytes: 1 << 20,
	}))
	t.Cleanup(srv.Close)

	return &testApp{srv: srv, db: db, sessions: sessions, mailer: mailer}
}

// newClient returns a client with its own cookie jar that does not follow
// redirects.
func (a *testApp) newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

var csrfInput = regexp.MustCompile(`name="_csrf" value="([^"]+)"`)

// csrf loads a form page and returns the token it embeds.
func (a *testApp) csrf(t *testing.T, c *http.Client, path string) string {
	t.Helper()
	resp, body := a.get(t, c, path)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: expected 200, got %d", path, resp.StatusCode)
	}
	m := csrfInput.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("GET %s: no csrf token in page", path)
	}
	return m[1]
}

func (a *testApp) get(t *testing.T, c *http.Client, path string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(a.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (a *testApp) postForm(t *testing.T, c *http.Client, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := c.PostForm(a.srv.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (a *testApp) postMultipart(t *testing.T, c *http.Client, path string, fields map[string]string, image []byte) (*http.Response, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="product.png"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		part.Write(image)
	}
	mw.Close()

	resp, err := c.Post(a.srv.URL+path, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (a *testApp) do(t *testing.T, c *http.Client, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

// signupAndLogin registers email with password abc12 and logs the client in.
func (a *testApp) signupAndLogin(t *testing.T, c *http.Client, email string) {
	t.Helper()
	token := a.csrf(t, c, "/signup")
	resp, body := a.postForm(t, c, "/signup", url.Values{
		"_csrf": {token}, "email": {email}, "password": {"abc12"}, "confirmPassword": {"abc12"},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("signup: expected 303, got %d: %s", resp.StatusCode, body)
	}

	token = a.csrf(t, c, "/login")
	resp, body = a.postForm(t, c, "/login", url.Values{
		"_csrf": {token}, "email": {email}, "password": {"abc12"},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("login: expected 303, got %d: %s", resp.StatusCode, body)
	}
}

func (a *testApp) sessionCookie(t *testing.T, c *http.Client) string {
	t.Helper()
	u, _ := url.Parse(a.srv.URL)
	for _, cookie := range c.Jar.Cookies(u) {
		if cookie.Name == "shop_session" {
			return cookie.Value
		}
	}
	t.Fatal("no session cookie")
	return ""
}

// addProduct creates a product through the form and returns its ID.
func (a *testApp) addProduct(t *testing.T, c *http.Client, title string) string {
	t.Helper()
	token := a.csrf(t, c, "/admin/add-product")
	resp, body := a.postMultipart(t, c, "/admin/add-product", map[string]string{
		"_csrf": token, "title": title, "price": "12.50", "description": "A fine product.",
	}, pngBytes)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("add product: expected 303, got %d: %s", resp.StatusCode, body)
	}

	_, page := a.get(t, c, "/admin/products")
	m := regexp.MustCompile(`id="product-([0-9a-f-]{36})"`).FindAllStringSubmatch(page, -1)
	if len(m) == 0 {
		t.Fatal("no product on the admin page")
	}
	// Newest first.
	return m[0][1]
}
