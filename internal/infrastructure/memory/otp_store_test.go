package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agrismart-api/internal/domain"
	"github.com/agrismart-api/internal/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phone = "+10000000001"

func newStore() (*OTPStore, *clock.Manual) {
	clk := clock.NewManual(time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC))
	return NewOTPStore(clk), clk
}

func TestVerify_SingleUse(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, phone, "123456", time.Minute))

	ok, err := s.Verify(ctx, phone, "123456")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Verify(ctx, phone, "123456")
	require.NoError(t, err)
	assert.False(t, ok)

	_, live := s.get(phone)
	assert.False(t, live)
}

func TestVerify_Absent(t *testing.T) {
	s, _ := newStore()
	ok, err := s.Verify(context.Background(), "+19999999999", "123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_LockoutAfterMaxAttempts(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, phone, "123456", time.Minute))

	for i := 1; i <= domain.MaxOTPAttempts; i++ {
		ok, err := s.Verify(ctx, phone, "000000")
		require.NoError(t, err)
		assert.False(t, ok)
		rec, live := s.get(phone)
		require.True(t, live)
		assert.Equal(t, i, rec.Attempts)
	}

	ok, err := s.Verify(ctx, phone, "123456")
	require.NoError(t, err)
	assert.False(t, ok, "sixth call must fail even with the right code")
	_, live := s.get(phone)
	assert.False(t, live)
}

func TestVerify_SuccessOnLastAllowedAttempt(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, phone, "123456", time.Minute))

	for i := 0; i < domain.MaxOTPAttempts-1; i++ {
		ok, _ := s.Verify(ctx, phone, "000000")
		require.False(t, ok)
	}
	ok, err := s.Verify(ctx, phone, "123456")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_ExpiredRecordIsDeleted(t *testing.T) {
	s, clk := newStore()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, phone, "123456", time.Minute))

	clk.Advance(time.Minute) // now == expires_at is still valid
	_, live := s.get(phone)
	require.True(t, live)

	clk.Advance(time.Millisecond)
	ok, err := s.Verify(ctx, phone, "123456")
	require.NoError(t, err)
	assert.False(t, ok)
	_, live = s.get(phone)
	assert.False(t, live)

	require.NoError(t, s.Store(ctx, phone, "654321", time.Minute))
	ok, err = s.Verify(ctx, phone, "654321")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_AtExpiryInstantStillMatches(t *testing.T) {
	s, clk := newStore()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, phone, "123456", time.Minute))
	clk.Advance(time.Minute)
	ok, err := s.Verify(ctx, phone, "123456")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_OverwriteResetsAttempts(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, phone, "111111", time.Minute))
	for i := 0; i < 3; i++ {
		_, _ = s.Verify(ctx, phone, "000000")
	}

	require.NoError(t, s.Store(ctx, phone, "222222", time.Minute))
	rec, live := s.get(phone)
	require.True(t, live)
	assert.Equal(t, 0, rec.Attempts)

	ok, _ := s.Verify(ctx, phone, "111111")
	assert.False(t, ok, "superseded code must not match")
	ok, _ = s.Verify(ctx, phone, "222222")
	assert.True(t, ok)
}

func TestStore_DoesNotKeepPlaintext(t *testing.T) {
	s, _ := newStore()
	require.NoError(t, s.Store(context.Background(), phone, "123456", time.Minute))
	rec, _ := s.get(phone)
	assert.NotEqual(t, "123456", rec.CodeHash)
	assert.NotContains(t, rec.CodeHash, "123456")
}

func TestClear_Idempotent(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, phone, "123456", time.Minute))
	require.NoError(t, s.Clear(ctx, phone))
	require.NoError(t, s.Clear(ctx, phone))

	ok, err := s.Verify(ctx, phone, "123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_ConcurrentCallsConsumeOnce(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, phone, "123456", time.Minute))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Verify(ctx, phone, "123456"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Zero(t, s.verify.size())
}

func TestVerify_ConcurrentWrongGuessesCapped(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, phone, "123456", time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 3*domain.MaxOTPAttempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Verify(ctx, phone, "999999")
		}()
	}
	wg.Wait()

	_, live := s.get(phone)
	assert.False(t, live, "record must be locked out and deleted")
	ok, _ := s.Verify(ctx, phone, "123456")
	assert.False(t, ok)
}

func TestVerify_PhonesAreIndependent(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, "+10000000001", "111111", time.Minute))
	require.NoError(t, s.Store(ctx, "+10000000002", "222222", time.Minute))

	ok, _ := s.Verify(ctx, "+10000000001", "222222")
	assert.False(t, ok)
	ok, _ = s.Verify(ctx, "+10000000002", "222222")
	assert.True(t, ok)
	ok, _ = s.Verify(ctx, "+10000000001", "111111")
	assert.True(t, ok)
}
