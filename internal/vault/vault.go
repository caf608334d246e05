// Package vault encrypts per-tenant provider API keys at rest.
//
// Serialized form is hex(iv):hex(authTag):hex(ciphertext) with a 16-byte IV
// and 16-byte tag, AES-256-GCM.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/seoinsight/seoinsight/internal/apperrors"
)

const (
	KeySize = 32
	IVSize  = 16
	TagSize = 16
)

// Vault holds the process-wide key. It is safe for concurrent use.
type Vault struct {
	aead cipher.AEAD
}

// New builds a vault from a 64-character hex key. An absent or malformed key
// is a ConfigurationError.
func New(hexKey string) (*Vault, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, apperrors.Configuration("encryption key is not set", nil)
	}
	if len(hexKey) != KeySize*2 {
		return nil, apperrors.Configuration(fmt.Sprintf("encryption key must be %d hex characters", KeySize*2), nil)
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, apperrors.Configuration("encryption key is not valid hex", nil)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.Configuration("create AES cipher", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, apperrors.Configuration("create GCM", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random IV.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("plaintext must not be empty")
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	// Seal returns ciphertext || tag.
	sealed := v.aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt opens a serialized secret. Every malformed input or tag mismatch is
// a DecryptionError; partial plaintext is never returned.
func (v *Vault) Decrypt(serialized string) (string, error) {
	if serialized == "" {
		return "", apperrors.Decryption("encrypted value is empty", nil)
	}

	parts := strings.Split(serialized, ":")
	if len(parts) != 3 {
		return "", apperrors.Decryption("encrypted value must have 3 segments", nil)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != IVSize {
		return "", apperrors.Decryption("invalid iv segment", nil)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != TagSize {
		return "", apperrors.Decryption("invalid auth tag segment", nil)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", apperrors.Decryption("invalid ciphertext segment", nil)
	}

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := v.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", apperrors.Decryption("authentication failed", err)
	}
	return string(plaintext), nil
}

// GenerateKey returns a fresh random key in the hex form New expects.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
