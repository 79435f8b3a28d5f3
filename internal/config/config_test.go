package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		JWTSecret:       strings.Repeat("s", minJWTSecretLen),
		JWTAlgorithm:    "HS256",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		OTPLength:       6,
		OTPTTL:          5 * time.Minute,
		OTPStore:        BackendMemory,
		UserStore:       BackendMemory,
		SMSProvider:     SMSProviderLog,
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OTP_TTL", "")
	t.Setenv("ACCESS_TOKEN_TTL", "")
	cfg := Load()
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 6, cfg.OTPLength)
	assert.Equal(t, "HS256", cfg.JWTAlgorithm)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("OTP_TTL", "90s")
	t.Setenv("OTP_LENGTH", "8")
	t.Setenv("OTP_STORE", "redis")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	cfg := Load()
	assert.Equal(t, 90*time.Second, cfg.OTPTTL)
	assert.Equal(t, 8, cfg.OTPLength)
	assert.Equal(t, BackendRedis, cfg.OTPStore)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_MalformedDurationFallsBack(t *testing.T) {
	t.Setenv("REFRESH_TOKEN_TTL", "a week")
	assert.Equal(t, 7*24*time.Hour, Load().RefreshTokenTTL)
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"short secret":         func(c *Config) { c.JWTSecret = "short" },
		"asymmetric algorithm": func(c *Config) { c.JWTAlgorithm = "RS256" },
		"none algorithm":       func(c *Config) { c.JWTAlgorithm = "none" },
		"zero otp ttl":         func(c *Config) { c.OTPTTL = 0 },
		"otp length":           func(c *Config) { c.OTPLength = 2 },
		"otp store":            func(c *Config) { c.OTPStore = "sqlite" },
		"user store":           func(c *Config) { c.UserStore = "redis" },
		"postgres without url": func(c *Config) { c.UserStore = BackendPostgres },
		"twilio without creds": func(c *Config) { c.SMSProvider = SMSProviderTwilio },
		"sms provider":         func(c *Config) { c.SMSProvider = "pigeon" },
		"trusted proxy":        func(c *Config) { c.TrustedProxies = []string{"10.0.0.0/33"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoad_TrustedProxies(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "")
	assert.Empty(t, Load().TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,192.0.2.10 ")
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, Load().TrustedProxies)
}

func TestTrustedProxyPrefixes(t *testing.T) {
	c := validConfig()
	c.TrustedProxies = []string{"10.1.2.3/8", "192.0.2.10", "2001:db8::/32"}
	prefixes, err := c.TrustedProxyPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 3)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.0.2.10/32", prefixes[1].String())
	assert.Equal(t, "2001:db8::/32", prefixes[2].String())

	c.TrustedProxies = []string{"proxy.internal"}
	_, err = c.TrustedProxyPrefixes()
	assert.Error(t, err)
}
