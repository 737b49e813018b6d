// Package app opens the storage backends, session store, file store and
// mailer selected by configuration. The server and the admin CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/msomdec/shopfront/internal/config"
	"github.com/msomdec/shopfront/internal/domain"
	"github.com/msomdec/shopfront/internal/mail"
	"github.com/msomdec/shopfront/internal/repository/mongostore"
	"github.com/msomdec/shopfront/internal/repository/postgres"
	"github.com/msomdec/shopfront/internal/repository/redisstore"
	"github.com/msomdec/shopfront/internal/repository/sqlite"
	"github.com/msomdec/shopfront/internal/storage/disk"
	"github.com/msomdec/shopfront/internal/storage/s3"
)

// database is what both SQL backends provide.
type database interface {
	domain.Database
	Close() error
	Users() domain.UserRepository
	Products() domain.ProductRepository
	Sessions() domain.SessionStore
	FileStore() domain.FileStore
}

// Backend bundles the opened stores. Close releases them in reverse order.
type Backend struct {
	DB       domain.Database
	Users    domain.UserRepository
	Products domain.ProductRepository
	Sessions domain.SessionStore
	Files    domain.FileStore
	Mailer   domain.Mailer

	closers []func() error
}

// Open connects every backend named in cfg and applies database migrations.
// On error, anything already opened is closed again.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (b *Backend, err error) {
	b = &Backend{}
	defer func() {
		if err != nil {
			_ = b.Close()
			b = nil
		}
	}()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, db.Close)
	if err := db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations applied", "driver", cfg.DatabaseDriver)

	b.DB = db
	b.Users = db.Users()
	b.Products = db.Products()

	if b.Sessions, err = b.openSessionStore(ctx, cfg, db, logger); err != nil {
		return nil, err
	}
	if b.Files, err = openFileStore(ctx, cfg, db); err != nil {
		return nil, err
	}
	if b.Mailer, err = openMailer(cfg, logger); err != nil {
		return nil, err
	}
	return b, nil
}

// Close releases every opened backend.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

func openDatabase(ctx context.Context, cfg *config.Config) (database, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	case "sqlite":
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
}

func (b *Backend) openSessionStore(ctx context.Context, cfg *config.Config, db database, logger *slog.Logger) (domain.SessionStore, error) {
	switch cfg.SessionStore {
	case "redis":
		client, err := redisstore.Connect(ctx, cfg.RedisURL, logger)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		return redisstore.NewSessionStore(client), nil
	case "mongo":
		client, err := mongostore.Connect(ctx, cfg.MongoURI, logger)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() error {
			return client.Disconnect(context.Background())
		})
		return mongostore.NewSessionStore(ctx, client.Database(cfg.MongoDatabase))
	case "database":
		return db.Sessions(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

func openFileStore(ctx context.Context, cfg *config.Config, db database) (domain.FileStore, error) {
	switch cfg.FileStore {
	case "disk":
		return disk.New(cfg.UploadDir)
	case "s3":
		return s3.New(ctx, s3.Config{
			Bucket:         cfg.S3.Bucket,
			Region:         cfg.S3.Region,
			AccessKeyID:    cfg.S3.AccessKeyID,
			SecretKey:      cfg.S3.SecretKey,
			Endpoint:       cfg.S3.Endpoint,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		}, nil)
	case "database":
		return db.FileStore(), nil
	default:
		return nil, fmt.Errorf("unknown file store %q", cfg.FileStore)
	}
}

func openMailer(cfg *config.Config, logger *slog.Logger) (domain.Mailer, error) {
	switch cfg.MailDriver {
	case "smtp":
		return mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			TLSMode:  cfg.SMTP.TLSMode,
			From:     cfg.MailFrom,
			ReplyTo:  cfg.MailReplyTo,
		})
	case "postmark":
		return mail.NewPostmarkMailer(mail.PostmarkConfig{
			ServerToken:  cfg.Postmark.ServerToken,
			AccountToken: cfg.Postmark.AccountToken,
			From:         cfg.MailFrom,
			ReplyTo:      cfg.MailReplyTo,
		})
	case "log":
		return mail.NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.MailDriver)
	}
}
