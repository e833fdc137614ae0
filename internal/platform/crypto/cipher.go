// Package crypto implements the reversible content cipher: AES-256-GCM
// with a fresh random nonce per call and a version-tagged envelope so the
// key can be rotated later without rewriting history.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	dErrors "chatvault/pkg/domain-errors"
)

// keyVersion tags every envelope. Version 1 is AES-256-GCM with a
// 12-byte nonce. A future key rotation bumps this byte and keeps old
// ciphertexts decryptable.
const keyVersion byte = 1

// Cipher encrypts and decrypts message payloads and the raw user ID kept
// for the consent audit trail. The key is fixed at construction.
type Cipher struct {
	aead cipher.AEAD
}

// New builds a Cipher from a 256-bit key. Any other key length is a
// configuration error.
func New(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, dErrors.New(dErrors.CodeKeyConfig, "encryption key must be exactly 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeKeyConfig, "initialize cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeKeyConfig, "initialize gcm mode")
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns a base64 envelope of
// version || nonce || ciphertext+tag.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "generate nonce")
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	envelope := make([]byte, 0, 1+len(nonce)+len(sealed))
	envelope = append(envelope, keyVersion)
	envelope = append(envelope, nonce...)
	envelope = append(envelope, sealed...)

	return base64.StdEncoding.EncodeToString(envelope), nil
}

// Decrypt opens a base64 envelope produced by Encrypt. Tampered
// ciphertext, a truncated envelope, or a mismatched key all surface as
// integrity errors; nothing is ever "repaired".
func (c *Cipher) Decrypt(token string) (string, error) {
	envelope, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeIntegrity, "ciphertext is not valid base64")
	}
	if len(envelope) < 1+c.aead.NonceSize() {
		return "", dErrors.New(dErrors.CodeIntegrity, "ciphertext envelope too short")
	}
	if envelope[0] != keyVersion {
		return "", dErrors.New(dErrors.CodeKeyConfig, "unknown key version")
	}

	nonce := envelope[1 : 1+c.aead.NonceSize()]
	sealed := envelope[1+c.aead.NonceSize():]

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeIntegrity, "authentication tag mismatch")
	}
	return string(plaintext), nil
}
