package authcore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
)

// Confirmed TOTP secrets are stored as "nonce:tag:ciphertext" in hex. The
// layout is a persisted format: changing it invalidates every enrolled
// account, so both halves below must stay in sync with existing rows.

const gcmTagSize = 16

// sealSecret encrypts plaintext with AES-256-GCM under key, using a fresh
// random nonce per call.
func sealSecret(key, plaintext []byte) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	if len(sealed) < gcmTagSize {
		return "", errors.New("sealed payload shorter than tag")
	}
	ciphertext := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ciphertext), nil
}

// openSecret decrypts a sealed secret produced by sealSecret.
func openSecret(key []byte, encoded string) ([]byte, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return nil, errors.New("invalid sealed secret layout")
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, errors.New("invalid sealed secret nonce")
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != gcmTagSize {
		return nil, errors.New("invalid sealed secret tag")
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, errors.New("invalid sealed secret ciphertext")
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errors.New("invalid sealed secret nonce size")
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	return aead.Open(nil, nonce, sealed, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
