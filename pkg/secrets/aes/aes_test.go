package aes

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	c, err := NewCipher(key)
	require.NoError(t, err)
	return c
}

func TestNewCipherRejectsBadKeyLength(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 16, 31, 33, 64} {
		_, err := NewCipher(make([]byte, size))
		assert.Error(t, err, "key size %d should be rejected", size)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()
	c := testCipher(t)

	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "empty string", plaintext: ""},
		{name: "simple value", plaintext: "super-secret-api-key"},
		{name: "non-ascii", plaintext: "pässwörd-日本語-🔑"},
		{name: "multiline", plaintext: "-----BEGIN KEY-----\nabc\n-----END KEY-----"},
		{name: "null bytes", plaintext: string([]byte{0, 1, 2, 0})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			value, err := c.Encrypt(tt.plaintext)
			require.NoError(t, err)
			assert.Len(t, value.IV, 12)
			assert.Len(t, value.AuthTag, 16)

			decrypted, err := c.Decrypt(value)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, decrypted)
		})
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	t.Parallel()
	c := testCipher(t)

	first, err := c.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := c.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.False(t, bytes.Equal(first.IV, second.IV), "IVs must differ between calls")
	assert.False(t, bytes.Equal(first.Ciphertext, second.Ciphertext), "ciphertexts must differ between calls")
}

func TestDecryptDetectsTampering(t *testing.T) {
	t.Parallel()
	c := testCipher(t)

	original, err := c.Encrypt("tamper target")
	require.NoError(t, err)

	flipByte := func(src []byte, i int) []byte {
		out := make([]byte, len(src))
		copy(out, src)
		out[i] ^= 0xff
		return out
	}

	for i := range original.Ciphertext {
		tampered := original
		tampered.Ciphertext = flipByte(original.Ciphertext, i)
		_, err := c.Decrypt(tampered)
		require.Error(t, err, "flipped ciphertext byte %d must not decrypt", i)
		assert.True(t, errors.IsDecryption(err))
	}

	for i := range original.AuthTag {
		tampered := original
		tampered.AuthTag = flipByte(original.AuthTag, i)
		_, err := c.Decrypt(tampered)
		require.Error(t, err, "flipped auth tag byte %d must not decrypt", i)
		assert.True(t, errors.IsDecryption(err))
	}
}

func TestDecryptRejectsMalformedInputs(t *testing.T) {
	t.Parallel()
	c := testCipher(t)

	value, err := c.Encrypt("well formed")
	require.NoError(t, err)

	short := value
	short.IV = value.IV[:4]
	_, err = c.Decrypt(short)
	assert.True(t, errors.IsDecryption(err))

	noTag := value
	noTag.AuthTag = nil
	_, err = c.Decrypt(noTag)
	assert.True(t, errors.IsDecryption(err))
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	t.Parallel()

	value, err := testCipher(t).Encrypt("keyed to someone else")
	require.NoError(t, err)

	_, err = testCipher(t).Decrypt(value)
	require.Error(t, err)
	assert.True(t, errors.IsDecryption(err))
}

func TestNewCipherFromEnv(t *testing.T) {
	t.Run("missing key is an error", func(t *testing.T) {
		t.Setenv(KeyEnvVar, "")
		_, err := NewCipherFromEnv()
		assert.Error(t, err)
	})

	t.Run("invalid base64 is an error", func(t *testing.T) {
		t.Setenv(KeyEnvVar, "not-base64!!!")
		_, err := NewCipherFromEnv()
		assert.Error(t, err)
	})

	t.Run("valid key", func(t *testing.T) {
		t.Setenv(KeyEnvVar, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")
		c, err := NewCipherFromEnv()
		require.NoError(t, err)

		value, err := c.Encrypt("from env key")
		require.NoError(t, err)
		decrypted, err := c.Decrypt(value)
		require.NoError(t, err)
		assert.Equal(t, "from env key", decrypted)
	})
}
