package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// SessionTokenSize is the number of random bytes behind a session token.
const SessionTokenSize = 32

// Bounds on one-time code length.
const (
	MinCodeDigits = 4
	MaxCodeDigits = 10
)

// ErrCodeDigits is returned by NewOTP for lengths outside
// [MinCodeDigits, MaxCodeDigits].
var ErrCodeDigits = errors.New("one-time code length out of range")

// NewSessionToken returns SessionTokenSize random bytes encoded as unpadded
// base64url.
func NewSessionToken() (string, error) {
	var raw [SessionTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashToken returns the hex SHA-256 of a secret. Stores key records by this
// value so the plaintext never reaches Redis.
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// NewOTP draws a uniform number in [0, 10^digits) and zero-pads it, so
// codes with leading zeros are as likely as any other.
func NewOTP(digits int) (string, error) {
	if digits < MinCodeDigits || digits > MaxCodeDigits {
		return "", fmt.Errorf("%w: %d", ErrCodeDigits, digits)
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("one-time code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
