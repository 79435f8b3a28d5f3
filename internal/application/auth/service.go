package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/agrismart-api/internal/domain"
	"github.com/agrismart-api/internal/pkg/clock"
	"github.com/agrismart-api/internal/pkg/id"
	"github.com/agrismart-api/internal/pkg/logging"
	"github.com/agrismart-api/internal/pkg/metrics"
	"github.com/agrismart-api/internal/pkg/otpcode"
)

// OTP flows, used as the metrics label for issued codes.
const (
	flowRegister = "register"
	flowLogin    = "login"
)

const tempIDPrefix = "tmp_"

// OTPSentMessage is the acknowledgment returned once a code has been issued.
const OTPSentMessage = "OTP sent successfully"

type RegisterRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Phone    string  `json:"phone" validate:"required,e164"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Language string  `json:"language" validate:"omitempty,min=2,max=5"`
}

type RequestOTPRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
	OTP   string `json:"otp" validate:"required,numeric"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RegisterResult acknowledges that a code was issued for a pending account.
type RegisterResult struct {
	UserTempID string
	Message    string
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
	RequestOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (*domain.User, *domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
	InvalidateOTP(ctx context.Context, phone string) error
}

type OTPStore interface {
	Store(ctx context.Context, phone, code string, ttl time.Duration) error
	Verify(ctx context.Context, phone, code string) (bool, error)
	Clear(ctx context.Context, phone string) error
}

type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, p domain.Profile) error
	SetActive(ctx context.Context, userID string, active bool) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

type TokenProvider interface {
	IssuePair(subject, phone string) (*domain.TokenPair, error)
	Verify(token string, expected domain.TokenType) (*domain.TokenClaims, error)
}

type service struct {
	otp       OTPStore
	users     UserStore
	sms       SMSSender
	tokens    TokenProvider
	clock     clock.Clock
	otpLength int
	otpTTL    time.Duration
	appName   string
}

type ServiceDeps struct {
	OTPStore  OTPStore
	UserRepo  UserStore
	SMSSender SMSSender
	Tokens    TokenProvider
	Clock     clock.Clock
	OTPLength int
	OTPTTL    time.Duration
	AppName   string
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		otp:       deps.OTPStore,
		users:     deps.UserRepo,
		sms:       deps.SMSSender,
		tokens:    deps.Tokens,
		clock:     deps.Clock,
		otpLength: deps.OTPLength,
		otpTTL:    deps.OTPTTL,
		appName:   deps.AppName,
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.otpLength == 0 {
		s.otpLength = domain.DefaultOTPLength
	}
	if s.otpTTL == 0 {
		s.otpTTL = 5 * time.Minute
	}
	return s
}

// Register creates an inactive account for the phone, or refreshes the
// profile of one that never completed verification, then issues a code.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	lang := req.Language
	if lang == "" {
		lang = domain.DefaultLanguage
	}
	profile := domain.Profile{Name: req.Name, Email: req.Email, Language: lang}

	u, err := s.users.GetByPhone(ctx, req.Phone)
	switch {
	case err == nil && u.IsActive:
		return nil, fmt.Errorf("phone already registered: %w", domain.ErrUserConflict)
	case err == nil:
		if err := s.users.UpdateProfile(ctx, u.UserID, profile); err != nil {
			return nil, fmt.Errorf("update pending user: %w", err)
		}
	case errors.Is(err, domain.ErrNotFound):
		now := s.clock.Now()
		u = &domain.User{
			UserID:    id.NewAt(now),
			Name:      profile.Name,
			Phone:     req.Phone,
			Email:     profile.Email,
			Language:  profile.Language,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.users.Create(ctx, u); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, fmt.Errorf("phone already registered: %w", domain.ErrUserConflict)
			}
			return nil, fmt.Errorf("create user: %w", err)
		}
	default:
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.issueOTP(ctx, req.Phone, flowRegister); err != nil {
		return nil, err
	}
	return &RegisterResult{UserTempID: tempID(u.UserID), Message: OTPSentMessage}, nil
}

func (s *service) RequestOTP(ctx context.Context, phone string) error {
	return s.issueOTP(ctx, phone, flowLogin)
}

// VerifyOTP consumes the code before looking up the account: a correct code
// for an unregistered phone is still spent.
func (s *service) VerifyOTP(ctx context.Context, phone, code string) (*domain.User, *domain.TokenPair, error) {
	ok, err := s.otp.Verify(ctx, phone, code)
	if err != nil {
		metrics.OTPVerifications.WithLabelValues(metrics.ResultError).Inc()
		return nil, nil, fmt.Errorf("verify otp: %w", err)
	}
	if !ok {
		metrics.OTPVerifications.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, nil, domain.ErrInvalidOTP
	}
	metrics.OTPVerifications.WithLabelValues(metrics.ResultSuccess).Inc()

	u, err := s.users.GetByPhone(ctx, phone)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, fmt.Errorf("register first: %w", domain.ErrUserNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive {
		if err := s.users.SetActive(ctx, u.UserID, true); err != nil {
			return nil, nil, fmt.Errorf("activate user: %w", err)
		}
		u.IsActive = true
		u.UpdatedAt = s.clock.Now()
		slog.Info("user activated", "user_id", u.UserID)
	}

	pair, err := s.tokens.IssuePair(u.UserID, u.Phone)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// not revoked and stays valid until its own expiry.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	u, err := s.activeUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	return s.tokens.IssuePair(u.UserID, u.Phone)
}

func (s *service) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.activeUser(ctx, userID)
}

func (s *service) InvalidateOTP(ctx context.Context, phone string) error {
	if err := s.otp.Clear(ctx, phone); err != nil {
		return fmt.Errorf("clear otp: %w", err)
	}
	return nil
}

func (s *service) activeUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("user %s inactive: %w", userID, domain.ErrUserNotFound)
	}
	return u, nil
}

// issueOTP stores a fresh code for phone and hands it to the SMS gateway. A
// stored code counts as issued; delivery failures are only logged.
func (s *service) issueOTP(ctx context.Context, phone, flow string) error {
	code, err := otpcode.Generate(s.otpLength)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := s.otp.Store(ctx, phone, code, s.otpTTL); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	metrics.OTPIssued.WithLabelValues(flow).Inc()

	if err := s.sms.SendSMS(ctx, phone, s.smsBody(code)); err != nil {
		metrics.OTPDeliveryFailures.Inc()
		slog.Warn("otp delivery failed", "phone", logging.MaskPhone(phone), "flow", flow, "err", err)
	}
	return nil
}

func (s *service) smsBody(code string) string {
	return fmt.Sprintf("Your %s OTP is: %s. Valid for %d minutes.", s.appName, code, ttlMinutes(s.otpTTL))
}

func ttlMinutes(ttl time.Duration) int {
	return int(math.Ceil(ttl.Minutes()))
}

func tempID(userID string) string {
	if len(userID) > 8 {
		userID = userID[:8]
	}
	return tempIDPrefix + userID
}
