package auth

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/agrismart-api/internal/config"
	"github.com/agrismart-api/internal/domain"
	jwtinfra "github.com/agrismart-api/internal/infrastructure/jwt"
	"github.com/agrismart-api/internal/infrastructure/memory"
	"github.com/agrismart-api/internal/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codeInBody = regexp.MustCompile(`OTP is: ([0-9]+)\.`)

// outbox records every SMS body by phone.
type outbox struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (o *outbox) SendSMS(_ context.Context, phone, msg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sent == nil {
		o.sent = make(map[string][]string)
	}
	o.sent[phone] = append(o.sent[phone], msg)
	return nil
}

func (o *outbox) lastCode(t *testing.T, phone string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	msgs := o.sent[phone]
	require.NotEmpty(t, msgs, "no sms sent to %s", phone)
	m := codeInBody.FindStringSubmatch(msgs[len(msgs)-1])
	require.Len(t, m, 2)
	return m[1]
}

type harness struct {
	svc    Service
	users  *memory.UserRepo
	tokens *jwtinfra.Provider
	sms    *outbox
	clock  *clock.Manual
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewManual(testEpoch)
	tokens, err := jwtinfra.NewProvider(&config.Config{
		JWTSecret:       "0123456789abcdef0123456789abcdef",
		JWTAlgorithm:    "HS256",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}, clk)
	require.NoError(t, err)

	h := &harness{
		users:  memory.NewUserRepo(),
		tokens: tokens,
		sms:    &outbox{},
		clock:  clk,
	}
	h.svc = NewService(ServiceDeps{
		OTPStore:  memory.NewOTPStore(clk),
		UserRepo:  h.users,
		SMSSender: h.sms,
		Tokens:    tokens,
		Clock:     clk,
		OTPLength: 6,
		OTPTTL:    5 * time.Minute,
		AppName:   "AgriSmart",
	})
	return h
}

func (h *harness) registerAndVerify(t *testing.T, phone string) (*domain.User, *domain.TokenPair) {
	t.Helper()
	ctx := context.Background()
	_, err := h.svc.Register(ctx, RegisterRequest{Name: "Asha", Phone: phone})
	require.NoError(t, err)
	u, pair, err := h.svc.VerifyOTP(ctx, phone, h.sms.lastCode(t, phone))
	require.NoError(t, err)
	return u, pair
}

func TestFlow_RequestOTPIsSingleUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	phone := "+10000000001"
	h.registerAndVerify(t, phone)

	require.NoError(t, h.svc.RequestOTP(ctx, phone))
	code := h.sms.lastCode(t, phone)
	assert.Regexp(t, `^[0-9]{6}$`, code)

	_, _, err := h.svc.VerifyOTP(ctx, phone, code)
	require.NoError(t, err)
	_, _, err = h.svc.VerifyOTP(ctx, phone, code)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
}

func TestFlow_RegisterActivatesAndBindsSubject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	phone := "+10000000002"

	res, err := h.svc.Register(ctx, RegisterRequest{Name: "Ravi", Phone: phone})
	require.NoError(t, err)
	pending, err := h.users.GetByPhone(ctx, phone)
	require.NoError(t, err)
	assert.False(t, pending.IsActive)
	assert.Equal(t, "tmp_"+pending.UserID[:8], res.UserTempID)

	u, pair, err := h.svc.VerifyOTP(ctx, phone, h.sms.lastCode(t, phone))
	require.NoError(t, err)
	assert.True(t, u.IsActive)

	stored, err := h.users.Get(ctx, pending.UserID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)

	claims, err := h.tokens.Verify(pair.AccessToken, domain.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, pending.UserID, claims.Subject)
	assert.Equal(t, phone, claims.Phone)
}

func TestFlow_RegisterAgainAfterActivationConflicts(t *testing.T) {
	h := newHarness(t)
	h.registerAndVerify(t, "+10000000003")

	_, err := h.svc.Register(context.Background(), RegisterRequest{Name: "Other", Phone: "+10000000003"})
	assert.ErrorIs(t, err, domain.ErrUserConflict)
}

func TestFlow_VerifyWithoutRegistration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.svc.RequestOTP(ctx, "+10000000004"))
	_, _, err := h.svc.VerifyOTP(ctx, "+10000000004", h.sms.lastCode(t, "+10000000004"))
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestFlow_RefreshRejectsAccessToken(t *testing.T) {
	h := newHarness(t)
	_, pair := h.registerAndVerify(t, "+10000000005")

	_, err := h.svc.Refresh(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestFlow_RefreshRotatesWithoutRevoking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, first := h.registerAndVerify(t, "+10000000006")

	h.clock.Advance(time.Minute)
	second, err := h.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The earlier refresh token is still honoured until it expires.
	_, err = h.svc.Refresh(ctx, first.RefreshToken)
	assert.NoError(t, err)

	h.clock.Advance(7*24*time.Hour - 30*time.Second)
	_, err = h.svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	_, err = h.svc.Refresh(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestFlow_ExpiredCodeThenFreshCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	phone := "+10000000007"
	_, err := h.svc.Register(ctx, RegisterRequest{Name: "Asha", Phone: phone})
	require.NoError(t, err)
	stale := h.sms.lastCode(t, phone)

	h.clock.Advance(5*time.Minute + time.Second)
	_, _, err = h.svc.VerifyOTP(ctx, phone, stale)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)

	require.NoError(t, h.svc.RequestOTP(ctx, phone))
	_, _, err = h.svc.VerifyOTP(ctx, phone, h.sms.lastCode(t, phone))
	assert.NoError(t, err)
}

func TestFlow_InvalidateOTP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.svc.RequestOTP(ctx, "+10000000008"))
	code := h.sms.lastCode(t, "+10000000008")
	require.NoError(t, h.svc.InvalidateOTP(ctx, "+10000000008"))

	_, _, err := h.svc.VerifyOTP(ctx, "+10000000008", code)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
}
