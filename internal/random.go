package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	// ResetCodeDigits is the fixed length of a password reset code.
	ResetCodeDigits = 6
	// ResetSaltSize is the per-record salt length in bytes.
	ResetSaltSize = 16
)

var resetCodeSpace = big.NewInt(1_000_000)

// NewResetCode returns a uniformly distributed code in 000000..999999.
func NewResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, resetCodeSpace)
	if err != nil {
		return "", err
	}

	code := fmt.Sprintf("%06d", n.Int64())
	if len(code) != ResetCodeDigits {
		return "", errors.New("invalid reset code generation length")
	}
	return code, nil
}

func NewResetSalt() ([ResetSaltSize]byte, error) {
	var salt [ResetSaltSize]byte
	_, err := rand.Read(salt[:])
	return salt, err
}

// HashResetCode computes SHA-256(code || salt).
func HashResetCode(code string, salt [ResetSaltSize]byte) [32]byte {
	buf := make([]byte, 0, len(code)+len(salt))
	buf = append(buf, code...)
	buf = append(buf, salt[:]...)
	return sha256.Sum256(buf)
}

// IsResetCode reports whether code is exactly six ASCII digits.
func IsResetCode(code string) bool {
	if len(code) != ResetCodeDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// NormalizeIdentifier trims surrounding whitespace and lowercases the
// identifier. Every lookup, vault key and limiter key uses this form.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
