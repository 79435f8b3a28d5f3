package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/agrismart-api/internal/domain"
	"github.com/agrismart-api/internal/pkg/clock"
	"github.com/agrismart-api/internal/pkg/otpcode"
	goredis "github.com/redis/go-redis/v9"
)

const defaultOTPPrefix = "agrismart:otp:"

// Keys outlive the logical expiry by this much so that an expired record is
// still seen, and removed, by the next Verify.
const expiryGrace = time.Minute

// Returns {status, hash}. 0 absent, 1 expired, 2 locked out, 3 attempt counted.
var checkScript = goredis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local max_attempts = tonumber(ARGV[2])

local rec = redis.call("HMGET", key, "hash", "expires_at", "attempts")
if not rec[1] then
  return {0, ""}
end
if now_ms > tonumber(rec[2]) then
  redis.call("DEL", key)
  return {1, ""}
end
if tonumber(rec[3]) >= max_attempts then
  redis.call("DEL", key)
  return {2, ""}
end
redis.call("HINCRBY", key, "attempts", 1)
return {3, rec[1]}
`)

var consumeScript = goredis.NewScript(`
if redis.call("HGET", KEYS[1], "hash") == ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 1
end
return 0
`)

const (
	statusAbsent int64 = iota
	statusExpired
	statusLocked
	statusCounted
)

// OTPStore keeps OTP records as Redis hashes. Attempt counting and deletion
// run inside Lua scripts, so concurrent verifiers across replicas see one
// linear history per phone.
type OTPStore struct {
	client *goredis.Client
	prefix string
	clock  clock.Clock
}

func NewOTPStore(client *goredis.Client, prefix string, clk clock.Clock) *OTPStore {
	if prefix == "" {
		prefix = defaultOTPPrefix
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &OTPStore{client: client, prefix: prefix, clock: clk}
}

func (s *OTPStore) key(phone string) string {
	return s.prefix + phone
}

func (s *OTPStore) Store(ctx context.Context, phone, code string, ttl time.Duration) error {
	hash, err := otpcode.Hash(code)
	if err != nil {
		return err
	}
	key := s.key(phone)
	expiresAt := s.clock.Now().Add(ttl).UnixMilli()
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "hash", hash, "expires_at", expiresAt, "attempts", 0)
		pipe.PExpire(ctx, key, ttl+expiryGrace)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store otp: %w", err)
	}
	return nil
}

func (s *OTPStore) Verify(ctx context.Context, phone, code string) (bool, error) {
	key := s.key(phone)
	res, err := checkScript.Run(ctx, s.client, []string{key},
		s.clock.Now().UnixMilli(), domain.MaxOTPAttempts).Result()
	if err != nil {
		return false, fmt.Errorf("redis check otp: %w", err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return false, fmt.Errorf("redis check otp: unexpected response %T", res)
	}
	status, ok := vals[0].(int64)
	if !ok {
		return false, fmt.Errorf("redis check otp: unexpected status %T", vals[0])
	}
	if status != statusCounted {
		return false, nil
	}
	hash, _ := vals[1].(string)
	if !otpcode.Matches(hash, code) {
		return false, nil
	}

	// A Store that landed after the check replaced the hash; the old code
	// no longer counts.
	n, err := consumeScript.Run(ctx, s.client, []string{key}, hash).Int64()
	if err != nil {
		return false, fmt.Errorf("redis consume otp: %w", err)
	}
	return n == 1, nil
}

func (s *OTPStore) Clear(ctx context.Context, phone string) error {
	if err := s.client.Del(ctx, s.key(phone)).Err(); err != nil {
		return fmt.Errorf("redis clear otp: %w", err)
	}
	return nil
}
