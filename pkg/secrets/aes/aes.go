// Package aes provides the authenticated symmetric cipher used to protect
// secret values at rest. AES-256-GCM with a per-call random nonce.
package aes

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
)

const (
	// KeySize is the required key length in bytes (AES-256).
	KeySize = 32

	// nonceSize is the GCM nonce length in bytes.
	nonceSize = 12

	// tagSize is the GCM authentication tag length in bytes.
	tagSize = 16

	// KeyEnvVar is the environment variable holding the base64-encoded
	// process-wide encryption key.
	KeyEnvVar = "CATALYST_SECRETS_ENCRYPTION_KEY"
)

// EncryptedValue is the output of Encrypt. The three fields are opaque and
// meaningless without the process-wide key.
type EncryptedValue struct {
	Ciphertext []byte
	IV         []byte
	AuthTag    []byte
}

// Cipher encrypts and decrypts secret values with a fixed key.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a raw 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// NewCipherFromEnv loads the base64-encoded key from KeyEnvVar. A missing or
// malformed key is a startup error; callers are expected to treat it as fatal.
func NewCipherFromEnv() (*Cipher, error) {
	encoded := os.Getenv(KeyEnvVar)
	if encoded == "" {
		return nil, fmt.Errorf("%s is not set", KeyEnvVar)
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid base64: %w", KeyEnvVar, err)
	}

	return NewCipher(key)
}

// Encrypt encrypts plaintext with a fresh random nonce. Two calls with the
// same plaintext yield different ciphertexts; callers must not compare
// ciphertexts for equality.
func (c *Cipher) Encrypt(plaintext string) (EncryptedValue, error) {
	iv := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return EncryptedValue{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the authentication tag to the ciphertext; split it off so
	// the stored record carries the tag explicitly.
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	boundary := len(sealed) - tagSize

	return EncryptedValue{
		Ciphertext: sealed[:boundary],
		IV:         iv,
		AuthTag:    sealed[boundary:],
	}, nil
}

// Decrypt recovers the plaintext. It fails with a decryption error if the
// authentication tag does not verify or if the inputs are malformed; it never
// returns partial plaintext.
func (c *Cipher) Decrypt(value EncryptedValue) (string, error) {
	if len(value.IV) != nonceSize {
		return "", errors.NewDecryptionError(
			fmt.Sprintf("invalid IV length %d", len(value.IV)), nil)
	}
	if len(value.AuthTag) != tagSize {
		return "", errors.NewDecryptionError(
			fmt.Sprintf("invalid auth tag length %d", len(value.AuthTag)), nil)
	}

	sealed := make([]byte, 0, len(value.Ciphertext)+tagSize)
	sealed = append(sealed, value.Ciphertext...)
	sealed = append(sealed, value.AuthTag...)

	plaintext, err := c.aead.Open(nil, value.IV, sealed, nil)
	if err != nil {
		return "", errors.NewDecryptionError("ciphertext failed authentication", err)
	}

	return string(plaintext), nil
}
