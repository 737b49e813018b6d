package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/msomdec/shopfront/internal/config"
	"github.com/msomdec/shopfront/internal/domain"
	"github.com/msomdec/shopfront/internal/mail"
	"github.com/msomdec/shopfront/internal/storage/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DatabaseDriver: "sqlite",
		DatabasePath:   filepath.Join(dir, "shop.db"),
		SessionStore:   "database",
		FileStore:      "disk",
		UploadDir:      filepath.Join(dir, "uploads"),
		MailDriver:     "log",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen_SQLiteWithDiskStore(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, testConfig(t), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.DB.Ping(ctx))
	assert.IsType(t, &disk.Store{}, b.Files)
	assert.IsType(t, &mail.LogMailer{}, b.Mailer)

	user := &domain.User{Email: "a@example.com", PasswordHash: "x"}
	require.NoError(t, b.Users.Create(ctx, user))
	got, err := b.Users.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestOpen_DatabaseFileStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.FileStore = "database"

	b, err := Open(ctx, cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.Files.Save(ctx, "products/a.png", "image/png", []byte("png")))
	data, ct, err := b.Files.Get(ctx, "products/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
	assert.Equal(t, "image/png", ct)
}

func TestOpen_RejectsUnknownBackends(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"database driver", func(c *config.Config) { c.DatabaseDriver = "oracle" }},
		{"session store", func(c *config.Config) { c.SessionStore = "memcached" }},
		{"file store", func(c *config.Config) { c.FileStore = "ftp" }},
		{"mail driver", func(c *config.Config) { c.MailDriver = "pigeon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			b, err := Open(context.Background(), cfg, discardLogger())
			require.Error(t, err)
			assert.Nil(t, b)
		})
	}
}

func TestBackend_CloseIsIdempotent(t *testing.T) {
	b, err := Open(context.Background(), testConfig(t), discardLogger())
	require.NoError(t, err)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}
