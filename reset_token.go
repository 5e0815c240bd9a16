package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ResetTokenTTL is how long a password reset token stays redeemable.
const ResetTokenTTL = 10 * time.Minute

const resetTokenBytes = 32

// GenerateResetToken produces a one-time reset token. The plaintext goes
// to the user over the notification channel; only the hash is ever stored.
func GenerateResetToken() (plaintext, hash string, err error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset token")
	}

	plaintext = hex.EncodeToString(buf)
	return plaintext, HashResetToken(plaintext), nil
}

// HashResetToken maps a plaintext reset token to its storage form.
// Redemption hashes the presented token the same way and compares.
func HashResetToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
