package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "chatvault/pkg/domain-errors"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := New(testKey(t))
	require.NoError(t, err)

	for _, plaintext := range []string{"hello", "", "emoji 🎉 and ünïcode", "a longer message with\nnewlines and spaces"} {
		token, err := c.Encrypt(plaintext)
		require.NoError(t, err)

		got, err := c.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	c, err := New(testKey(t))
	require.NoError(t, err)

	a, err := c.Encrypt("same message")
	require.NoError(t, err)
	b, err := c.Encrypt("same message")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "two encryptions of the same plaintext must differ")
}

func TestNewRejectsWrongKeyLength(t *testing.T) {
	for _, size := range []int{0, 16, 24, 31, 33, 64} {
		_, err := New(make([]byte, size))
		require.Error(t, err, "key size %d", size)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeKeyConfig))
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	c, err := New(testKey(t))
	require.NoError(t, err)

	token, err := c.Encrypt("original")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(token)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = c.Decrypt(tampered)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
}

func TestDecryptWithWrongKey(t *testing.T) {
	c1, err := New(testKey(t))
	require.NoError(t, err)
	c2, err := New(testKey(t))
	require.NoError(t, err)

	token, err := c1.Encrypt("secret")
	require.NoError(t, err)

	_, err = c2.Decrypt(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
}

func TestDecryptMalformedEnvelope(t *testing.T) {
	c, err := New(testKey(t))
	require.NoError(t, err)

	t.Run("not base64", func(t *testing.T) {
		_, err := c.Decrypt("%%% not base64 %%%")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
	})

	t.Run("too short", func(t *testing.T) {
		_, err := c.Decrypt(base64.StdEncoding.EncodeToString([]byte{1, 2, 3}))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
	})

	t.Run("unknown version", func(t *testing.T) {
		token, err := c.Encrypt("x")
		require.NoError(t, err)
		raw, err := base64.StdEncoding.DecodeString(token)
		require.NoError(t, err)
		raw[0] = 9
		_, err = c.Decrypt(base64.StdEncoding.EncodeToString(raw))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeKeyConfig))
	})
}
