package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// MaxOTPAttempts bounds verification attempts per token, per spec.md §3's
// OTPToken invariant (attempts >= 5 fails verification even with a correct code).
const MaxOTPAttempts = 5

// GenerateOTPCode returns a random 6-digit numeric code, zero-padded.
func GenerateOTPCode() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating otp code: %w", err)
	}
	n := (uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])) % 1_000_000
	return fmt.Sprintf("%06d", n), nil
}

// GenerateOTPSalt returns a random hex-encoded salt for hashing an OTP code.
func GenerateOTPSalt() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating otp salt: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// HashOTPCode derives a verification hash from salt + code via HMAC-SHA256,
// so the code itself is never stored.
func HashOTPCode(salt, code string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	_, _ = mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyOTPCode compares a candidate code against the stored hash in
// constant time.
func VerifyOTPCode(salt, storedHash, candidate string) bool {
	candidateHash := HashOTPCode(salt, candidate)
	return subtle.ConstantTimeCompare([]byte(candidateHash), []byte(storedHash)) == 1
}
