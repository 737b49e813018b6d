package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/msomdec/shopfront/internal/domain"
	"github.com/msomdec/shopfront/internal/mail"
)

// ResetTokenTTL is how long a password-reset link stays valid.
const ResetTokenTTL = time.Hour

// Messages shown to users. Handlers render them verbatim.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgDuplicateEmail     = "Email already registered, please choose another one."
	MsgUnknownResetEmail  = "No account with that email found."
	MsgInvalidResetToken  = "This reset link is invalid or has expired."
)

// AuthService handles signup, login and password recovery.
type AuthService struct {
	users         domain.UserRepository
	hasher        *PasswordHasher
	sessions      *SessionService
	mailer        domain.Mailer
	revealUnknown bool
	now           func() time.Time

	// dummyHash is compared against when the email is unknown so both
	// login failure paths cost one bcrypt comparison.
	dummyHash string
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithRevealUnknownEmail makes RequestReset report unknown addresses with
// domain.ErrNotFound instead of answering uniformly.
func WithRevealUnknownEmail(reveal bool) AuthOption {
	return func(s *AuthService) { s.revealUnknown = reveal }
}

// NewAuthService creates a new AuthService.
func NewAuthService(users domain.UserRepository, hasher *PasswordHasher, sessions *SessionService, mailer domain.Mailer, opts ...AuthOption) (*AuthService, error) {
	dummy, err := hasher.Hash("dummypassword0")
	if err != nil {
		return nil, err
	}
	s := &AuthService{
		users:     users,
		hasher:    hasher,
		sessions:  sessions,
		mailer:    mailer,
		now:       time.Now,
		dummyHash: dummy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SignupInput is the submitted signup form.
type SignupInput struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// Signup validates the form, creates the user and sends the welcome mail.
// Mail failure is logged and does not fail the signup.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	email := NormalizeEmail(in.Email)
	verr := &domain.ValidationError{}

	if !ValidEmail(email) {
		verr.Add("email", "Please enter a valid email")
	} else if _, err := s.users.GetByEmail(ctx, email); err == nil {
		verr.Add("email", MsgDuplicateEmail)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("look up email: %w", err)
	}
	if msg := passwordProblem(in.Password); msg != "" {
		verr.Add("password", msg)
	}
	if in.ConfirmPassword != in.Password {
		verr.Add("confirmPassword", "Passwords have to match!")
	}
	if !verr.Empty() {
		return nil, verr
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, domain.NewValidationError("email", MsgDuplicateEmail)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.mailer.Send(ctx, mail.Welcome(user.Email)); err != nil {
		slog.ErrorContext(ctx, "failed to send welcome mail", "user_id", user.ID, "error", err)
	}
	return user, nil
}

// Login checks the credentials. Unknown email and wrong password both return
// domain.ErrUnauthorized; malformed input returns a ValidationError.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = NormalizeEmail(email)
	verr := &domain.ValidationError{}
	if !ValidEmail(email) {
		verr.Add("email", "Please enter a valid email!")
	}
	if msg := passwordProblem(password); msg != "" {
		verr.Add("password", msg)
	}
	if !verr.Empty() {
		return nil, verr
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, domain.ErrUnauthorized
	}
	return user, nil
}

// RequestReset issues a one-hour reset token for email and mails the link
// <baseURL>/reset/<token>. Unknown addresses are a silent no-op unless the
// service was built WithRevealUnknownEmail, in which case ErrNotFound is
// returned. Mail failure is logged only.
func (s *AuthService) RequestReset(ctx context.Context, email, baseURL string) error {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return domain.NewValidationError("email", "Please enter a valid email")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if s.revealUnknown {
				return domain.ErrNotFound
			}
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, user.ID, token, s.now().Add(ResetTokenTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := strings.TrimRight(baseURL, "/") + "/reset/" + token
	if err := s.mailer.Send(ctx, mail.PasswordReset(user.Email, link)); err != nil {
		slog.ErrorContext(ctx, "failed to send reset mail", "user_id", user.ID, "error", err)
	}
	return nil
}

// ValidateResetToken returns the user holding a live token. Malformed,
// unknown and expired tokens all yield domain.ErrTokenInvalidOrExpired.
func (s *AuthService) ValidateResetToken(ctx context.Context, token string) (*domain.User, error) {
	if !resetTokenHex.MatchString(token) {
		return nil, domain.ErrTokenInvalidOrExpired
	}
	user, err := s.users.GetByResetToken(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTokenInvalidOrExpired
		}
		return nil, fmt.Errorf("get user by reset token: %w", err)
	}
	return user, nil
}

// ConsumeReset sets a new password using token. The token is cleared in the
// same statement that replaces the hash, so it works at most once. Every
// session of the user is destroyed afterwards.
func (s *AuthService) ConsumeReset(ctx context.Context, token, password, confirm string) error {
	verr := &domain.ValidationError{}
	if msg := passwordProblem(password); msg != "" {
		verr.Add("password", msg)
	}
	if confirm != password {
		verr.Add("confirmPassword", "Passwords have to match!")
	}
	if !verr.Empty() {
		return verr
	}

	user, err := s.ValidateResetToken(ctx, token)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.users.ConsumeResetToken(ctx, user.ID, token, hash, s.now()); err != nil {
		return err
	}

	if err := s.sessions.DestroyUser(ctx, user.ID); err != nil {
		slog.ErrorContext(ctx, "failed to destroy sessions after reset", "user_id", user.ID, "error", err)
	}
	return nil
}
