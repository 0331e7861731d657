package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	cipherSalt       = "oauth-service-token-salt"
	cipherIterations = 10000
	minKeyLength     = 16
)

// TokenCipher encrypts provider tokens at rest with AES-256-GCM.
// The key is derived from a passphrase with PBKDF2-SHA256.
type TokenCipher struct {
	aead cipher.AEAD
}

func NewTokenCipher(passphrase string) (*TokenCipher, error) {
	if len(passphrase) < minKeyLength {
		return nil, fmt.Errorf("token encryption key must be at least %d characters", minKeyLength)
	}
	key := pbkdf2.Key([]byte(passphrase), []byte(cipherSalt), cipherIterations, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &TokenCipher{aead: aead}, nil
}

// Seal returns base64(nonce || ciphertext).
func (c *TokenCipher) Seal(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *TokenCipher) Open(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	n := c.aead.NonceSize()
	if len(data) < n {
		return "", errors.New("ciphertext too short")
	}
	plain, err := c.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plain), nil
}
