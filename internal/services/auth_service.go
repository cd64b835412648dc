package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"expenzoo/internal/amqp"
	"expenzoo/internal/auth"
	"expenzoo/internal/storage"
)

var ErrInvalidOTP = errors.New("invalid or expired OTP")

// AuthRepository is the storage the login flow needs.
type AuthRepository interface {
	FindUserByEmail(ctx context.Context, email string) (*storage.User, error)
	CreateUser(ctx context.Context, u storage.User) error
	ReplaceOTP(ctx context.Context, otp storage.OTP) error
	LatestOTP(ctx context.Context, email string) (*storage.OTP, error)
	IncrementOTPAttempts(ctx context.Context, id string) (int, error)
	ConsumeOTP(ctx context.Context, id string) (bool, error)
	DeleteOTPs(ctx context.Context, email string) error
}

// Notifier hands a fresh code to the delivery channel.
type Notifier interface {
	PublishOTP(ctx context.Context, msg *amqp.OTPDeliveryMessage) error
}

type AuthConfig struct {
	OTPTTL      time.Duration
	MaxAttempts int
}

type AuthService struct {
	repo     AuthRepository
	tokens   *auth.TokenService
	notifier Notifier
	cfg      AuthConfig
	now      func() time.Time
}

// NewAuthService wires the login flow. A nil notifier logs codes instead of
// publishing them.
func NewAuthService(repo AuthRepository, tokens *auth.TokenService, notifier Notifier, cfg AuthConfig) *AuthService {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &AuthService{repo: repo, tokens: tokens, notifier: notifier, cfg: cfg, now: time.Now}
}

type otpRequest struct {
	Email string `validate:"required,email"`
}

type otpVerification struct {
	Email string `validate:"required"`
	Code  string `validate:"required"`
}

// LoginResult is returned by a successful verification.
type LoginResult struct {
	Token string
	User  storage.User
}

// RequestOTP issues a fresh code for email, replacing any earlier one.
func (s *AuthService) RequestOTP(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if err := validateStruct(otpRequest{Email: email}); err != nil {
		return "", err
	}

	code, err := auth.GenerateCode()
	if err != nil {
		return "", err
	}
	hash, err := auth.HashCode(code)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	otp := storage.OTP{
		ID:        uuid.NewString(),
		Email:     email,
		CodeHash:  hash,
		ExpiresAt: now.Add(s.cfg.OTPTTL),
		CreatedAt: now,
	}
	if err := s.repo.ReplaceOTP(ctx, otp); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	if s.notifier == nil {
		slog.InfoContext(ctx, "OTP generated without a delivery channel", "email", email, "code", code)
		return email, nil
	}
	if err := s.notifier.PublishOTP(ctx, amqp.NewOTPDeliveryMessage(email, code, otp.ExpiresAt)); err != nil {
		return "", fmt.Errorf("send otp: %w", err)
	}
	return email, nil
}

// VerifyOTP consumes a live matching code and returns a token for the user,
// creating the user on first login.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*LoginResult, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if err := validateStruct(otpVerification{Email: email, Code: code}); err != nil {
		return nil, &ValidationError{Message: "Please provide email and OTP"}
	}

	otp, err := s.repo.LatestOTP(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidOTP
	}
	if err != nil {
		return nil, fmt.Errorf("load otp: %w", err)
	}
	if !s.now().Before(otp.ExpiresAt) || otp.Attempts >= s.cfg.MaxAttempts {
		return nil, ErrInvalidOTP
	}

	if !auth.CheckCode(otp.CodeHash, code) {
		attempts, err := s.repo.IncrementOTPAttempts(ctx, otp.ID)
		if err != nil {
			return nil, fmt.Errorf("count attempt: %w", err)
		}
		if attempts >= s.cfg.MaxAttempts {
			slog.WarnContext(ctx, "OTP burned after too many attempts", "email", email)
			if err := s.repo.DeleteOTPs(ctx, email); err != nil {
				return nil, fmt.Errorf("burn otp: %w", err)
			}
		}
		return nil, ErrInvalidOTP
	}

	consumed, err := s.repo.ConsumeOTP(ctx, otp.ID)
	if err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	if !consumed {
		return nil, ErrInvalidOTP
	}

	user, err := s.findOrCreateUser(ctx, email)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "User logged in", "user_id", user.ID)
	return &LoginResult{Token: token, User: *user}, nil
}

func (s *AuthService) findOrCreateUser(ctx context.Context, email string) (*storage.User, error) {
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	name, _, _ := strings.Cut(email, "@")
	u := storage.User{ID: uuid.NewString(), Name: name, Email: email, CreatedAt: s.now().UTC()}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
