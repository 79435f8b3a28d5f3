package memory

import (
	"context"
	"sync"
	"time"

	"github.com/agrismart-api/internal/domain"
	"github.com/agrismart-api/internal/pkg/clock"
	"github.com/agrismart-api/internal/pkg/otpcode"
)

// OTPStore keeps one OTP record per phone in process memory.
//
// Verify calls for the same phone are serialized by a per-phone lock. Store
// only takes the map lock, so a new code may replace a record while a
// verification is in flight; that verification then cannot consume the new
// record.
type OTPStore struct {
	mu      sync.Mutex
	records map[string]*domain.OTPRecord
	verify  *keyedMutex
	clock   clock.Clock
}

func NewOTPStore(clk clock.Clock) *OTPStore {
	if clk == nil {
		clk = clock.System{}
	}
	return &OTPStore{
		records: make(map[string]*domain.OTPRecord),
		verify:  newKeyedMutex(),
		clock:   clk,
	}
}

func (s *OTPStore) Store(_ context.Context, phone, code string, ttl time.Duration) error {
	hash, err := otpcode.Hash(code)
	if err != nil {
		return err
	}
	rec := &domain.OTPRecord{
		Phone:     phone,
		CodeHash:  hash,
		ExpiresAt: s.clock.Now().Add(ttl),
	}
	s.mu.Lock()
	s.records[phone] = rec
	s.mu.Unlock()
	return nil
}

func (s *OTPStore) Verify(_ context.Context, phone, code string) (bool, error) {
	unlock := s.verify.Lock(phone)
	defer unlock()

	s.mu.Lock()
	rec, ok := s.records[phone]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	if rec.Expired(s.clock.Now()) || rec.Attempts >= domain.MaxOTPAttempts {
		delete(s.records, phone)
		s.mu.Unlock()
		return false, nil
	}
	rec.Attempts++
	hash := rec.CodeHash
	s.mu.Unlock()

	if !otpcode.Matches(hash, code) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[phone] != rec {
		return false, nil
	}
	delete(s.records, phone)
	return true, nil
}

func (s *OTPStore) Clear(_ context.Context, phone string) error {
	s.mu.Lock()
	delete(s.records, phone)
	s.mu.Unlock()
	return nil
}

// get returns a copy of the live record for phone, if any.
func (s *OTPStore) get(phone string) (domain.OTPRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[phone]
	if !ok {
		return domain.OTPRecord{}, false
	}
	return *rec, true
}
