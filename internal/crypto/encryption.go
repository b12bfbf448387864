// Package crypto seals configuration secrets and stored tokens with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// SecretPrefix marks an encrypted value inside a config file.
const SecretPrefix = "enc:"

var (
	ErrNoMasterKey = errors.New("encrypted value found but no master key is set")
	ErrShortData   = errors.New("ciphertext too short")
)

// GenerateMasterKey returns a new random 256-bit key, base64-encoded.
func GenerateMasterKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate master key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func newGCM(masterKey string) (cipher.AEAD, error) {
	key, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode master key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts data; the nonce is prepended to the result.
func Seal(data []byte, masterKey string) ([]byte, error) {
	gcm, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

// Open reverses Seal.
func Open(sealed []byte, masterKey string) ([]byte, error) {
	gcm, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, ErrShortData
	}
	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plain, nil
}

// EncryptSecret returns "enc:<base64>" for a non-empty plaintext.
func EncryptSecret(plaintext, masterKey string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	sealed, err := Seal([]byte(plaintext), masterKey)
	if err != nil {
		return "", err
	}
	return SecretPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// IsEncrypted reports whether v carries the secret prefix.
func IsEncrypted(v string) bool {
	return strings.HasPrefix(v, SecretPrefix)
}

// ResolveSecret decrypts v when it carries the secret prefix and returns it
// unchanged otherwise.
func ResolveSecret(v, masterKey string) (string, error) {
	if !IsEncrypted(v) {
		return v, nil
	}
	if masterKey == "" {
		return "", ErrNoMasterKey
	}
	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(v, SecretPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode secret: %w", err)
	}
	plain, err := Open(sealed, masterKey)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
