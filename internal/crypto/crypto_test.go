package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenCipherRoundTrip(t *testing.T) {
	c := NewTokenCipher("test-encryption-secret")

	encrypted, err := c.Encrypt("ya29.access-token-value")
	require.NoError(t, err)
	require.NotEmpty(t, encrypted)

	plaintext, err := c.Decrypt(encrypted)
	require.NoError(t, err)
	require.Equal(t, "ya29.access-token-value", plaintext)
}

func TestTokenCipherNonceIsRandom(t *testing.T) {
	c := NewTokenCipher("test-encryption-secret")

	first, err := c.Encrypt("same-plaintext")
	require.NoError(t, err)
	second, err := c.Encrypt("same-plaintext")
	require.NoError(t, err)

	require.NotEqual(t, first, second, "two encryptions of the same plaintext must differ by nonce")
}

func TestTokenCipherWrongKeyFails(t *testing.T) {
	encrypted, err := NewTokenCipher("secret-a").Encrypt("payload")
	require.NoError(t, err)

	_, err = NewTokenCipher("secret-b").Decrypt(encrypted)
	require.Error(t, err)
}

func TestTokenCipherRejectsTruncatedCiphertext(t *testing.T) {
	c := NewTokenCipher("test-encryption-secret")
	_, err := c.Decrypt("dG9vLXNob3J0")
	require.Error(t, err)
}
