package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/msomdec/shopfront/internal/domain"
	"github.com/msomdec/shopfront/internal/repository/sqlite"
	"github.com/msomdec/shopfront/internal/service"
)

const testSecret = "test-secret-key-for-unit-tests-0123456789"

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	jpegBytes = append([]byte("\xff\xd8\xff\xe0"), make([]byte, 32)...)
	gifBytes  = append([]byte("GIF89a"), make([]byte, 32)...)
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// recordingMailer keeps every message instead of sending it.
type recordingMailer struct {
	mu   sync.Mutex
	sent []domain.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last(t *testing.T) domain.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("expected a message to be sent")
	}
	return m.sent[len(m.sent)-1]
}

type testEnv struct {
	db       *sqlite.DB
	auth     *service.AuthService
	sessions *service.SessionService
	products *service.ProductService
	files    domain.FileStore
	mailer   *recordingMailer
}

func newTestEnv(t *testing.T, opts ...service.AuthOption) *testEnv {
	t.Helper()
	db := newTestDB(t)
	mailer := &recordingMailer{}
	sessions := service.NewSessionService(db.Sessions(), time.Hour, time.Minute)
	// Use cost 4 for fast tests.
	auth, err := service.NewAuthService(db.Users(), service.NewPasswordHasher(4), sessions, mailer, opts...)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	files := db.FileStore()
	products := service.NewProductService(db.Products(), files, service.NewGuard(db.Products()))
	return &testEnv{db: db, auth: auth, sessions: sessions, products: products, files: files, mailer: mailer}
}

func (e *testEnv) signup(t *testing.T, email string) *domain.User {
	t.Helper()
	user, err := e.auth.Signup(context.Background(), service.SignupInput{
		Email: email, Password: "abc12", ConfirmPassword: "abc12",
	})
	if err != nil {
		t.Fatalf("Signup(%s): %v", email, err)
	}
	return user
}

// faultyFileStore wraps a FileStore and fails selected operations.
type faultyFileStore struct {
	domain.FileStore
	saveErr   error
	deleteErr error
	deleted   []string
}

var errDiskGone = errors.New("disk gone")

func (f *faultyFileStore) Save(ctx context.Context, key, contentType string, data []byte) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.FileStore.Save(ctx, key, contentType, data)
}

func (f *faultyFileStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.FileStore.Delete(ctx, key)
}

// faultyProducts wraps a ProductRepository and fails writes on demand.
type faultyProducts struct {
	domain.ProductRepository
	createErr error
	updateErr error
}

func (f *faultyProducts) Create(ctx context.Context, p *domain.Product) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.ProductRepository.Create(ctx, p)
}

func (f *faultyProducts) Update(ctx context.Context, p *domain.Product) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.ProductRepository.Update(ctx, p)
}
