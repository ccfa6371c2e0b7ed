package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mouldconnect/apiserver/internal/notify"
	"github.com/mouldconnect/apiserver/internal/otp"
	"github.com/mouldconnect/apiserver/internal/store"
	"github.com/mouldconnect/apiserver/types"
)

const (
	userCodeCounter = "userId"

	msgUsernameTaken   = "Username already exists"
	msgEmailTaken      = "User Email already exists"
	msgMobileTaken     = "Mobile number already exists"
	msgInvalidInput    = "Invalid input"
	msgUserNotFound    = "User not found."
	msgAlreadyVerified = "Email already verified."
	msgInvalidOTP      = "Invalid OTP."
	msgOTPExpired      = "OTP has expired. Please request a new one."
	msgLoginRequired   = "Email and password are required"
	msgBadCredentials  = "Invalid email or password"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	FindConflicting(ctx context.Context, username, email, mobile string) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	SetOTP(ctx context.Context, id int, otp string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, id int, otp string) error
	UpdateDetails(ctx context.Context, id int, name, mobile string) (types.User, error)
}

// CounterRepository hands out monotonic sequence values.
type CounterRepository interface {
	Next(ctx context.Context, key string) (int64, error)
}

// PasswordHasher hashes and verifies account secrets.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// OTPIssuer generates verification codes.
type OTPIssuer interface {
	Issue(now time.Time) (otp.Code, error)
}

// TokenIssuer signs bearer tokens.
type TokenIssuer interface {
	Issue(userID int, email string) (string, error)
}

// EventPublisher emits account events without reporting failure.
type EventPublisher interface {
	Publish(ctx context.Context, event types.AccountEvent)
}

// AuthDeps bundles the collaborators of AuthService.
type AuthDeps struct {
	Users    UserRepository
	Counters CounterRepository
	Hasher   PasswordHasher
	OTPs     OTPIssuer
	Tokens   TokenIssuer
	Notifier notify.Notifier
	Events   EventPublisher
	Logger   *slog.Logger
}

// AuthOptions tunes registration behaviour.
type AuthOptions struct {
	UserCodePrefix string
	// IssueTokenOnRegister returns a token from Register before the email
	// address is verified.
	IssueTokenOnRegister bool
}

// AuthService implements registration, email verification and login.
type AuthService struct {
	deps AuthDeps
	opts AuthOptions
	now  func() time.Time
}

func NewAuthService(deps AuthDeps, opts AuthOptions) *AuthService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.UserCodePrefix == "" {
		opts.UserCodePrefix = "MC"
	}
	return &AuthService{deps: deps, opts: opts, now: time.Now}
}

// SetClock replaces the time source used for OTP expiry.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

type RegisterInput struct {
	Username string
	Email    string
	Name     string
	Password string
	Mobile   string
}

type RegisterResult struct {
	User  types.User
	Token string
}

type VerifyResult struct {
	User  types.User
	Token string
}

type LoginResult struct {
	User  types.User
	Token string
}

// credentials carries the secret part of a user write. A nil secret leaves
// the stored hash untouched; only a new secret is hashed.
type credentials struct {
	secret *string
}

func (c credentials) apply(hasher PasswordHasher, user *types.User) error {
	if c.secret == nil {
		return nil
	}
	hash, err := hasher.Hash(*c.secret)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	return nil
}

// NormalizeEmail is applied before every write and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified account and mails its OTP.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Mobile = strings.TrimSpace(in.Mobile)
	if in.Username == "" || in.Email == "" || in.Name == "" || in.Password == "" || in.Mobile == "" {
		return RegisterResult{}, invalid(msgFieldsRequired)
	}

	existing, err := s.deps.Users.FindConflicting(ctx, in.Username, in.Email, in.Mobile)
	if err != nil {
		return RegisterResult{}, err
	}
	if err := duplicateOf(existing, in); err != nil {
		return RegisterResult{}, err
	}

	if err := firstViolation(validateRegistration(in)); err != nil {
		return RegisterResult{}, err
	}

	now := s.now()
	seq, err := s.deps.Counters.Next(ctx, userCodeCounter)
	if err != nil {
		return RegisterResult{}, err
	}

	code, err := s.deps.OTPs.Issue(now)
	if err != nil {
		return RegisterResult{}, err
	}

	user := types.User{
		UserCode:     fmt.Sprintf("%s-%d%d", s.opts.UserCodePrefix, now.Year(), seq),
		Username:     in.Username,
		Email:        in.Email,
		Name:         in.Name,
		Mobile:       in.Mobile,
		OTP:          &code.Value,
		OTPExpiresAt: &code.ExpiresAt,
	}
	if err := (credentials{secret: &in.Password}).apply(s.deps.Hasher, &user); err != nil {
		return RegisterResult{}, err
	}

	user, err = s.deps.Users.Create(ctx, user)
	if err != nil {
		return RegisterResult{}, storeError(err)
	}

	if err := s.sendOTP(ctx, user.Email, code, false); err != nil {
		return RegisterResult{}, err
	}

	s.publish(ctx, types.EventUserRegistered, user)
	s.deps.Logger.InfoContext(ctx, "user registered",
		slog.Int("user_id", user.ID), slog.String("user_code", user.UserCode))

	result := RegisterResult{User: user}
	if s.opts.IssueTokenOnRegister {
		result.Token, err = s.deps.Tokens.Issue(user.ID, user.Email)
		if err != nil {
			return RegisterResult{}, err
		}
	}
	return result, nil
}

// ResendOTP replaces the outstanding code of an unverified user.
func (s *AuthService) ResendOTP(ctx context.Context, userID int) error {
	user, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return lookupError(err)
	}
	if user.EmailVerified {
		return conflict(msgAlreadyVerified)
	}

	code, err := s.deps.OTPs.Issue(s.now())
	if err != nil {
		return err
	}
	if err := s.deps.Users.SetOTP(ctx, user.ID, code.Value, code.ExpiresAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Verified between the read and the write.
			return conflict(msgAlreadyVerified)
		}
		return err
	}

	return s.sendOTP(ctx, user.Email, code, true)
}

// VerifyOTP confirms the email address and logs the user in.
func (s *AuthService) VerifyOTP(ctx context.Context, userID int, code string) (VerifyResult, error) {
	user, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return VerifyResult{}, lookupError(err)
	}
	if user.EmailVerified {
		return VerifyResult{}, conflict(msgAlreadyVerified)
	}
	if user.OTP == nil || *user.OTP != code {
		return VerifyResult{}, invalid(msgInvalidOTP)
	}
	if user.OTPExpiresAt == nil || s.now().After(*user.OTPExpiresAt) {
		return VerifyResult{}, conflict(msgOTPExpired)
	}

	if err := s.deps.Users.MarkVerified(ctx, user.ID, code); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return VerifyResult{}, err
		}
		// A concurrent verify or resend got there first.
		current, reloadErr := s.deps.Users.GetByID(ctx, user.ID)
		if reloadErr != nil {
			return VerifyResult{}, lookupError(reloadErr)
		}
		if current.EmailVerified {
			return VerifyResult{}, conflict(msgAlreadyVerified)
		}
		return VerifyResult{}, invalid(msgInvalidOTP)
	}
	user.EmailVerified = true
	user.OTP = nil
	user.OTPExpiresAt = nil

	token, err := s.deps.Tokens.Issue(user.ID, user.Email)
	if err != nil {
		return VerifyResult{}, err
	}

	s.publish(ctx, types.EventUserVerified, user)
	return VerifyResult{User: user, Token: token}, nil
}

// Login checks credentials of a verified user. Unverified users are turned
// away before the password is evaluated.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, invalid(msgLoginRequired)
	}

	user, err := s.deps.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, unauthenticated(msgBadCredentials)
		}
		return LoginResult{}, err
	}
	if !user.EmailVerified {
		return LoginResult{}, &UnverifiedError{UserID: user.ID}
	}

	ok, err := s.deps.Hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("verify password for user %d: %w", user.ID, err)
	}
	if !ok {
		return LoginResult{}, unauthenticated(msgBadCredentials)
	}

	token, err := s.deps.Tokens.Issue(user.ID, user.Email)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: user, Token: token}, nil
}

func (s *AuthService) sendOTP(ctx context.Context, to string, code otp.Code, resend bool) error {
	subject, body, err := notify.OTPMessage(code.Value, int(otp.TTL/time.Minute), resend)
	if err != nil {
		return err
	}
	if err := s.deps.Notifier.Send(ctx, to, subject, body); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	return nil
}

func (s *AuthService) publish(ctx context.Context, eventType string, user types.User) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.Publish(ctx, types.AccountEvent{
		Type:     eventType,
		UserID:   user.ID,
		UserCode: user.UserCode,
		Email:    user.Email,
		At:       s.now().UTC(),
	})
}

// duplicateOf reports the first colliding field, checked in the order
// username, email, mobile.
func duplicateOf(existing []types.User, in RegisterInput) error {
	for _, u := range existing {
		if u.Username == in.Username {
			return invalid(msgUsernameTaken)
		}
	}
	for _, u := range existing {
		if u.Email == in.Email {
			return invalid(msgEmailTaken)
		}
	}
	for _, u := range existing {
		if u.Mobile == in.Mobile {
			return invalid(msgMobileTaken)
		}
	}
	return nil
}

// storeError maps write failures onto validation errors. A unique index hit
// here means a concurrent request won the race past the duplicate lookup.
func storeError(err error) error {
	var dup *store.DuplicateError
	if errors.As(err, &dup) {
		switch dup.Field {
		case "username":
			return invalid(msgUsernameTaken)
		case "email":
			return invalid(msgEmailTaken)
		case "mobile":
			return invalid(msgMobileTaken)
		}
		return err
	}
	if errors.Is(err, store.ErrInvalidInput) {
		return invalid(msgInvalidInput)
	}
	return err
}

func lookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(msgUserNotFound)
	}
	return err
}
