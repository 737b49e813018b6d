// Command shopctl runs administrative tasks against the configured shop
// backends: creating accounts, revoking a user's sessions and purging expired
// sessions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/msomdec/shopfront/internal/app"
	"github.com/msomdec/shopfront/internal/config"
	"github.com/msomdec/shopfront/internal/domain"
	"github.com/msomdec/shopfront/internal/service"
	"golang.org/x/term"
)

// Test seams.
var (
	readPassword = term.ReadPassword
	loadConfig   = config.Load
)

const usage = `usage: shopctl <command> [flags]

commands:
  create-user      -email <address>   create an account, prompting for the password
  revoke-sessions  -email <address>   log a user out everywhere
  purge-sessions                      delete expired sessions
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "shopctl:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	var cmd func(context.Context, *app.Backend, *config.Config, []string, io.Writer) error
	switch args[0] {
	case "create-user":
		cmd = createUser
	case "revoke-sessions":
		cmd = revokeSessions
	case "purge-sessions":
		cmd = purgeSessions
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return errUsage
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	backend, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	return cmd(ctx, backend, cfg, args[1:], stdout)
}

func emailFlag(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	email := fs.String("email", "", "account email address")
	if err := fs.Parse(args); err != nil {
		return "", errUsage
	}
	if strings.TrimSpace(*email) == "" {
		return "", fmt.Errorf("%s: -email is required", name)
	}
	return *email, nil
}

func promptPassword(w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

func createUser(ctx context.Context, b *app.Backend, cfg *config.Config, args []string, out io.Writer) error {
	email, err := emailFlag("create-user", args)
	if err != nil {
		return err
	}
	password, err := promptPassword(out, "Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword(out, "Confirm password: ")
	if err != nil {
		return err
	}

	sessions := service.NewSessionService(b.Sessions, cfg.SessionTTL, cfg.SessionTouchInterval)
	auth, err := service.NewAuthService(b.Users, service.NewPasswordHasher(cfg.BcryptCost), sessions, b.Mailer)
	if err != nil {
		return err
	}
	user, err := auth.Signup(ctx, service.SignupInput{Email: email, Password: password, ConfirmPassword: confirm})
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("create-user: %s", verr.Error())
		}
		return err
	}
	fmt.Fprintf(out, "created user %s (%s)\n", user.Email, user.ID)
	return nil
}

func revokeSessions(ctx context.Context, b *app.Backend, cfg *config.Config, args []string, out io.Writer) error {
	email, err := emailFlag("revoke-sessions", args)
	if err != nil {
		return err
	}
	user, err := b.Users.GetByEmail(ctx, service.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("revoke-sessions: no user with email %s", email)
		}
		return err
	}
	sessions := service.NewSessionService(b.Sessions, cfg.SessionTTL, cfg.SessionTouchInterval)
	if err := sessions.DestroyUser(ctx, user.ID); err != nil {
		return err
	}
	fmt.Fprintf(out, "revoked sessions for %s\n", user.Email)
	return nil
}

func purgeSessions(ctx context.Context, b *app.Backend, cfg *config.Config, _ []string, out io.Writer) error {
	sessions := service.NewSessionService(b.Sessions, cfg.SessionTTL, cfg.SessionTouchInterval)
	n, err := sessions.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "purged %d expired sessions\n", n)
	return nil
}
