package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/msomdec/shopfront/internal/domain"
	"github.com/msomdec/shopfront/internal/service"
)

func TestIntegration_SignupLoginLogout(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)

	app.signupAndLogin(t, c, "a@b.com")

	resp, body := app.get(t, c, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("home: expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Signed in as a@b.com") {
		t.Fatal("expected home page to show the logged-in user")
	}

	sess, err := app.sessions.Resolve(t.Context(), app.sessionCookie(t, c))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !sess.IsLoggedIn || sess.User.Email != "a@b.com" {
		t.Fatalf("expected logged-in session, got %+v", sess)
	}

	oldCookie := app.sessionCookie(t, c)
	token := app.csrf(t, c, "/admin/products")
	resp, _ = app.postForm(t, c, "/logout", url.Values{"_csrf": {token}})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("logout: expected 303 to /, got %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	// Replaying the old cookie must not authenticate.
	replay := app.newClient(t)
	req, _ := http.NewRequest(http.MethodGet, app.srv.URL+"/admin/products", nil)
	req.AddCookie(&http.Cookie{Name: "shop_session", Value: oldCookie})
	resp, _ = app.do(t, replay, req)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("replayed cookie: expected 303 to /login, got %d", resp.StatusCode)
	}
}

func TestIntegration_LoginRotatesSessionCookie(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)

	token := app.csrf(t, c, "/signup")
	app.postForm(t, c, "/signup", url.Values{
		"_csrf": {token}, "email": {"a@b.com"}, "password": {"abc12"}, "confirmPassword": {"abc12"},
	})
	before := app.sessionCookie(t, c)

	token = app.csrf(t, c, "/login")
	resp, _ := app.postForm(t, c, "/login", url.Values{"_csrf": {token}, "email": {"a@b.com"}, "password": {"abc12"}})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("login: expected 303 to /, got %d", resp.StatusCode)
	}
	if after := app.sessionCookie(t, c); after == before {
		t.Fatal("expected a new session cookie after login")
	}
}

func TestIntegration_LoginWrongPassword(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	app.signupAndLogin(t, c, "a@b.com")

	other := app.newClient(t)
	token := app.csrf(t, other, "/login")
	resp, body := app.postForm(t, other, "/login", url.Values{"_csrf": {token}, "email": {"a@b.com"}, "password": {"wrong1"}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, service.MsgInvalidCredentials) {
		t.Fatal("expected invalid credentials message")
	}
}

func TestIntegration_SignupValidation(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)

	token := app.csrf(t, c, "/signup")
	resp, body := app.postForm(t, c, "/signup", url.Values{
		"_csrf": {token}, "email": {"a@b.com"}, "password": {"abc12"}, "confirmPassword": {"abc13"},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Passwords have to match!") {
		t.Fatal("expected mismatch message")
	}
	if !strings.Contains(body, `value="a@b.com"`) {
		t.Fatal("expected email to be kept in the form")
	}
}

func TestIntegration_CSRFRequired(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	app.signupAndLogin(t, c, "a@b.com")

	resp, body := app.postForm(t, c, "/logout", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("missing token: expected 403, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Invalid CSRF token") {
		t.Fatal("expected CSRF message")
	}

	token := app.csrf(t, c, "/admin/products")
	resp, _ = app.postForm(t, c, "/logout", url.Values{"_csrf": {token + "x"}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong token: expected 403, got %d", resp.StatusCode)
	}

	// A token from another session is rejected.
	other := app.newClient(t)
	foreign := app.csrf(t, other, "/login")
	resp, _ = app.postForm(t, c, "/logout", url.Values{"_csrf": {foreign}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign token: expected 403, got %d", resp.StatusCode)
	}

	// Header carriage works.
	req, _ := http.NewRequest(http.MethodPost, app.srv.URL+"/logout", nil)
	req.Header.Set("X-CSRF-Token", token)
	resp, _ = app.do(t, c, req)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("header token: expected 303, got %d", resp.StatusCode)
	}
}

func TestIntegration_CSRFQueryCarriage(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	app.signupAndLogin(t, c, "a@b.com")

	token := app.csrf(t, c, "/admin/products")
	resp, _ := app.postForm(t, c, "/logout?_csrf="+url.QueryEscape(token), nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("query token: expected 303, got %d", resp.StatusCode)
	}
}

func TestIntegration_AdminRequiresLogin(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)

	for _, path := range []string{"/admin/products", "/admin/add-product"} {
		resp, _ := app.get(t, c, path)
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
			t.Fatalf("GET %s: expected 303 to /login, got %d", path, resp.StatusCode)
		}
	}
}

func TestIntegration_ProductLifecycle(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	app.signupAndLogin(t, c, "seller@example.com")

	id := app.addProduct(t, c, "Red Scarf")

	_, page := app.get(t, c, "/admin/products")
	if !strings.Contains(page, "Red Scarf") || !strings.Contains(page, "12.50") {
		t.Fatal("expected product on the admin page")
	}

	resp, body := app.get(t, c, "/admin/edit-product/"+id)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `value="Red Scarf"`) {
		t.Fatalf("edit page: got %d", resp.StatusCode)
	}

	token := app.csrf(t, c, "/admin/edit-product/"+id)
	resp, body = app.postMultipart(t, c, "/admin/edit-product", map[string]string{
		"_csrf": token, "productId": id, "title": "Blue Scarf", "price": "3", "description": "Now in blue.",
	}, nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("edit: expected 303, got %d: %s", resp.StatusCode, body)
	}
	_, page = app.get(t, c, "/admin/products")
	if !strings.Contains(page, "Blue Scarf") || !strings.Contains(page, "3.00") {
		t.Fatal("expected updated product")
	}

	token = app.csrf(t, c, "/admin/products")
	resp, _ = app.postForm(t, c, "/admin/delete-product", url.Values{"_csrf": {token}, "productId": {id}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("delete: expected 303, got %d", resp.StatusCode)
	}
	_, page = app.get(t, c, "/admin/products")
	if strings.Contains(page, "product-"+id) {
		t.Fatal("expected product to be gone")
	}
}

func TestIntegration_AddProductShortTitle(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	app.signupAndLogin(t, c, "seller@example.com")

	token := app.csrf(t, c, "/admin/add-product")
	resp, body := app.postMultipart(t, c, "/admin/add-product", map[string]string{
		"_csrf": token, "title": "AB", "price": "12.50", "description": "A fine product.",
	}, pngBytes)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, service.MsgTitle) {
		t.Fatal("expected title rule in the response")
	}

	var n int
	if err := app.db.SqlDB.QueryRow("SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		t.Fatalf("count products: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no products, got %d", n)
	}
}

func TestIntegration_NonOwnerGetsNotFound(t *testing.T) {
	app := newTestApp(t)
	owner := app.newClient(t)
	app.signupAndLogin(t, owner, "owner@example.com")
	id := app.addProduct(t, owner, "Red Scarf")

	intruder := app.newClient(t)
	app.signupAndLogin(t, intruder, "intruder@example.com")

	resp, _ := app.get(t, intruder, "/admin/edit-product/"+id)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("edit page: expected 404, got %d", resp.StatusCode)
	}
	missing, _ := app.get(t, intruder, "/admin/edit-product/0192f0c1-0000-7000-8000-000000000000")
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing product: expected 404, got %d", missing.StatusCode)
	}

	token := app.csrf(t, intruder, "/admin/products")
	resp, _ = app.postMultipart(t, intruder, "/admin/edit-product", map[string]string{
		"_csrf": token, "productId": id, "title": "Stolen", "price": "1", "description": "Not mine.",
	}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("edit: expected 404, got %d", resp.StatusCode)
	}
	resp, _ = app.postForm(t, intruder, "/admin/delete-product", url.Values{"_csrf": {token}, "productId": {id}})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("delete: expected 404, got %d", resp.StatusCode)
	}

	_, page := app.get(t, owner, "/admin/products")
	if !strings.Contains(page, "Red Scarf") {
		t.Fatal("owner's product must be untouched")
	}
}

func TestIntegration_DeleteProductDatastar(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	app.signupAndLogin(t, c, "seller@example.com")
	id := app.addProduct(t, c, "Red Scarf")
	token := app.csrf(t, c, "/admin/products")

	req, _ := http.NewRequest(http.MethodDelete, app.srv.URL+"/admin/products/"+id, nil)
	req.Header.Set("X-CSRF-Token", token)
	req.Header.Set("Datastar-Request", "true")
	resp, body := app.do(t, c, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("expected SSE, got %s", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(body, "product-"+id) {
		t.Fatalf("expected removal of #product-%s, got %s", id, body)
	}
}

func TestIntegration_DeleteProductJSON(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	app.signupAndLogin(t, c, "seller@example.com")
	id := app.addProduct(t, c, "Red Scarf")
	token := app.csrf(t, c, "/admin/products")

	req, _ := http.NewRequest(http.MethodDelete, app.srv.URL+"/admin/products/"+id, nil)
	req.Header.Set("X-CSRF-Token", token)
	resp, body := app.do(t, c, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var msg map[string]string
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg["message"] != "success!" {
		t.Fatalf("unexpected body %s", body)
	}

	resp, _ = app.do(t, c, req.Clone(req.Context()))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestIntegration_UploadsServed(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	app.signupAndLogin(t, c, "seller@example.com")
	app.addProduct(t, c, "Red Scarf")

	var key string
	if err := app.db.SqlDB.QueryRow("SELECT image_key FROM products").Scan(&key); err != nil {
		t.Fatalf("select image key: %v", err)
	}

	anon := app.newClient(t)
	resp, body := app.get(t, anon, "/uploads/"+key)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "image/png" || len(body) != len(pngBytes) {
		t.Fatalf("unexpected image %s (%d bytes)", resp.Header.Get("Content-Type"), len(body))
	}

	resp, _ = app.get(t, anon, "/uploads/products/missing.png")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing image: expected 404, got %d", resp.StatusCode)
	}
}

func TestIntegration_PasswordReset(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	app.signupAndLogin(t, c, "a@b.com")

	anon := app.newClient(t)
	token := app.csrf(t, anon, "/reset")
	resp, _ := app.postForm(t, anon, "/reset", url.Values{"_csrf": {token}, "email": {"a@b.com"}})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("reset: expected 303 to /, got %d", resp.StatusCode)
	}

	msg := app.mailer.sent[len(app.mailer.sent)-1]
	_, link, ok := strings.Cut(msg.Text, "http://shop.test")
	if !ok {
		t.Fatalf("no link in %q", msg.Text)
	}
	link, _, _ = strings.Cut(link, "\n")

	resp, body := app.get(t, anon, link)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("new password page: expected 200, got %d", resp.StatusCode)
	}
	resetToken := strings.TrimPrefix(link, "/reset/")
	if !strings.Contains(body, resetToken) {
		t.Fatal("expected token in the form")
	}

	token = app.csrf(t, anon, link)
	resp, _ = app.postForm(t, anon, "/new-password", url.Values{
		"_csrf": {token}, "passwordToken": {resetToken}, "password": {"newpass1"}, "confirmPassword": {"newpass1"},
	})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("new password: expected 303 to /login, got %d", resp.StatusCode)
	}

	// The link is single-use.
	resp, _ = app.get(t, anon, link)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/reset" {
		t.Fatalf("reused link: expected 303 to /reset, got %d", resp.StatusCode)
	}
	_, body = app.get(t, anon, "/reset")
	if !strings.Contains(body, service.MsgInvalidResetToken) {
		t.Fatal("expected invalid link flash")
	}

	// Resetting destroyed the existing session.
	resp, _ = app.get(t, c, "/admin/products")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("old session: expected redirect, got %d", resp.StatusCode)
	}
}

func TestIntegration_PasswordResetWhileLoggedIn(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	app.signupAndLogin(t, c, "a@b.com")
	oldCookie := app.sessionCookie(t, c)

	token := app.csrf(t, c, "/reset")
	resp, _ := app.postForm(t, c, "/reset", url.Values{"_csrf": {token}, "email": {"a@b.com"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("reset: expected 303, got %d", resp.StatusCode)
	}
	msg := app.mailer.sent[len(app.mailer.sent)-1]
	_, link, _ := strings.Cut(msg.Text, "http://shop.test")
	link, _, _ = strings.Cut(link, "\n")

	token = app.csrf(t, c, link)
	resp, _ = app.postForm(t, c, "/new-password", url.Values{
		"_csrf": {token}, "passwordToken": {strings.TrimPrefix(link, "/reset/")},
		"password": {"newpass1"}, "confirmPassword": {"newpass1"},
	})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("new password: expected 303 to /login, got %d", resp.StatusCode)
	}

	// The flash written after the reset must not have revived the session.
	if _, err := app.sessions.Resolve(t.Context(), oldCookie); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected session destroyed by reset, got %v", err)
	}
	resp, _ = app.get(t, c, "/admin/products")
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("old cookie: expected 303 to /login, got %d", resp.StatusCode)
	}
}

func TestIntegration_BearerToken(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	app.signupAndLogin(t, c, "a@b.com")

	token := app.csrf(t, c, "/admin/products")
	req, _ := http.NewRequest(http.MethodPost, app.srv.URL+"/api/session/token", nil)
	req.Header.Set("X-CSRF-Token", token)
	resp, body := app.do(t, c, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["token"] == "" || out["csrfToken"] != token {
		t.Fatalf("unexpected body %s", body)
	}

	api := &http.Client{CheckRedirect: c.CheckRedirect}
	req, _ = http.NewRequest(http.MethodGet, app.srv.URL+"/admin/products", nil)
	req.Header.Set("Authorization", "Bearer "+out["token"])
	resp, _ = app.do(t, api, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bearer request: expected 200, got %d", resp.StatusCode)
	}

	// Logging out kills the JWT too.
	app.postForm(t, c, "/logout", url.Values{"_csrf": {token}})
	resp, _ = app.do(t, api, req.Clone(req.Context()))
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("bearer after logout: expected 303, got %d", resp.StatusCode)
	}
}

func TestIntegration_LoginRateLimited(t *testing.T) {
	app := newTestApp(t, withLimiter(service.NewRateLimiter(1, 2)))
	c := app.newClient(t)

	token := app.csrf(t, c, "/login")
	form := url.Values{"_csrf": {token}, "email": {"a@b.com"}, "password": {"wrong1"}}
	for i := range 2 {
		resp, _ := app.postForm(t, c, "/login", form)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("attempt %d: expected 422, got %d", i+1, resp.StatusCode)
		}
	}
	resp, _ := app.postForm(t, c, "/login", form)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
}

func TestIntegration_NotFoundPage(t *testing.T) {
	app := newTestApp(t)
	resp, body := app.get(t, app.newClient(t), "/nonexistent")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Page Not Found!") {
		t.Fatal("expected not found page")
	}
}
