// Package crypto seals and verifies password-reset tokens. A token carries
// the user id and its issue time, encrypted with AES-GCM under a key
// derived from the application secret, so it proves possession of the
// reset link without any server-side state.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidToken = errors.New("invalid reset token")
	ErrExpiredToken = errors.New("reset token expired")
)

// DeriveKey stretches the secret into a 32-byte AES key.
// Argon2id parameters: 1 pass, 64MB memory, 4 threads.
func DeriveKey(secret string, salt []byte) []byte {
	return argon2.IDKey([]byte(secret), salt, 1, 64*1024, 4, 32)
}

func resetKey(secret string) []byte {
	salt := sha256.Sum256([]byte(secret + "reset"))
	return DeriveKey(secret, salt[:])
}

// SignResetToken issues a URL-safe token for the user.
func SignResetToken(secret string, userID int) (string, error) {
	return signResetTokenAt(secret, userID, time.Now())
}

func signResetTokenAt(secret string, userID int, issued time.Time) (string, error) {
	block, err := aes.NewCipher(resetKey(secret))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	payload := fmt.Sprintf("%d:%d", userID, issued.Unix())
	sealed := gcm.Seal(nonce, nonce, []byte(payload), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// VerifyResetToken opens a token and returns the user id it was issued
// for. Tokens older than maxAge, tampered with, or sealed under a
// different secret all fail.
func VerifyResetToken(secret, token string, maxAge time.Duration) (int, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, ErrInvalidToken
	}

	block, err := aes.NewCipher(resetKey(secret))
	if err != nil {
		return 0, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return 0, err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return 0, ErrInvalidToken
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	payload, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return 0, ErrInvalidToken
	}

	var userID int
	var issuedUnix int64
	if _, err := fmt.Sscanf(string(payload), "%d:%d", &userID, &issuedUnix); err != nil || userID <= 0 {
		return 0, ErrInvalidToken
	}

	if time.Since(time.Unix(issuedUnix, 0)) > maxAge {
		return 0, ErrExpiredToken
	}
	return userID, nil
}
