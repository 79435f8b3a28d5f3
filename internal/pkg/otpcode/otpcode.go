// Package otpcode generates one-time numeric codes and the hashes they are
// stored under.
package otpcode

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const hashCost = bcrypt.DefaultCost

// Generate returns exactly length decimal digits drawn from crypto/rand.
// Leading zeros are kept.
func Generate(length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("otp length must be positive, got %d", length)
	}
	max := big.NewInt(10)
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		b[i] = byte('0' + n.Int64())
	}
	return string(b), nil
}

// Hash returns the bcrypt hash a code is stored under.
func Hash(code string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(code), hashCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}
	return string(h), nil
}

// Matches reports whether code hashes to hash. The comparison does not
// short-circuit on the first differing byte.
func Matches(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
