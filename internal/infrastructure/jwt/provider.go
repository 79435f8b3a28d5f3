package jwtinfra

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agrismart-api/internal/config"
	"github.com/agrismart-api/internal/domain"
	"github.com/agrismart-api/internal/pkg/clock"
	"github.com/agrismart-api/internal/pkg/metrics"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the JWT payload fields.
type Claims struct {
	Phone     string           `json:"phone,omitempty"`
	TokenType domain.TokenType `json:"type"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HMAC JWTs. Access and refresh tokens share the
// key and algorithm and differ only in lifetime and the "type" claim.
type Provider struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clock.Clock
}

func NewProvider(cfg *config.Config, clk clock.Clock) (*Provider, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	method, ok := jwt.GetSigningMethod(cfg.JWTAlgorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.JWTAlgorithm)
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Provider{
		secret:     []byte(cfg.JWTSecret),
		method:     method,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		clock:      clk,
	}, nil
}

// Issue signs a token of the given type for subject, valid for ttl.
func (p *Provider) Issue(subject, phone string, typ domain.TokenType, ttl time.Duration) (string, error) {
	now := p.clock.Now()
	claims := Claims{
		Phone:     phone,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(p.method, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	metrics.TokensIssued.WithLabelValues(string(typ)).Inc()
	return signed, nil
}

// IssuePair mints a fresh access and refresh token for subject.
func (p *Provider) IssuePair(subject, phone string) (*domain.TokenPair, error) {
	access, err := p.Issue(subject, phone, domain.TokenTypeAccess, p.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := p.Issue(subject, phone, domain.TokenTypeRefresh, p.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature, algorithm, expiry and declared type. Every failure
// is reported as domain.ErrInvalidToken; the reason is only logged.
func (p *Provider) Verify(tokenStr string, expected domain.TokenType) (*domain.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.clock.Now),
	)
	if err != nil {
		return nil, reject(expected, err.Error())
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, reject(expected, "invalid claims")
	}
	now := p.clock.Now()
	if !claims.ExpiresAt.Time.After(now) {
		return nil, reject(expected, "expired")
	}
	if claims.TokenType != expected {
		return nil, reject(expected, "type mismatch")
	}
	if claims.Subject == "" {
		return nil, reject(expected, "missing subject")
	}
	out := &domain.TokenClaims{
		Subject:   claims.Subject,
		Phone:     claims.Phone,
		TokenType: claims.TokenType,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

func reject(expected domain.TokenType, reason string) error {
	slog.Debug("token rejected", "expected_type", expected, "reason", reason)
	return domain.ErrInvalidToken
}
