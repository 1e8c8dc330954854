package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

const (
	tokenSecretSize   = 32
	securityStampSize = 16
	// Backup codes use an unambiguous uppercase alphabet (no 0/O, 1/I).
	backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NewTokenSecret returns a high-entropy single-use token secret.
func NewTokenSecret() ([tokenSecretSize]byte, error) {
	var secret [tokenSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// EncodeToken renders a token secret as the opaque plaintext handed to the
// caller. base64url, no padding, compact.
func EncodeToken(secret [tokenSecretSize]byte) string {
	return base64.RawURLEncoding.EncodeToString(secret[:])
}

// DecodeToken parses a token plaintext back into its raw secret.
func DecodeToken(token string) ([tokenSecretSize]byte, error) {
	var secret [tokenSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return secret, err
	}
	if len(raw) != tokenSecretSize {
		return secret, errors.New("invalid token size")
	}

	copy(secret[:], raw)
	return secret, nil
}

// HashTokenSecret is the one-way hash persisted in place of the plaintext.
func HashTokenSecret(secret [tokenSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// HashToken hashes a token plaintext for lookup. Returns false when the
// input is not a well-formed token, which callers treat as not found.
func HashToken(token string) ([32]byte, bool) {
	secret, err := DecodeToken(token)
	if err != nil {
		return [32]byte{}, false
	}
	return HashTokenSecret(secret), true
}

// NewSecurityStamp returns a fresh opaque per-user stamp. Stamps are only
// ever compared for equality, so collisions across users are harmless.
func NewSecurityStamp() (string, error) {
	var raw [securityStampSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewBackupCode generates a random backup code of the given length from the
// backup-code alphabet.
func NewBackupCode(length int) (string, error) {
	if length < 8 || length > 32 {
		return "", errors.New("invalid backup code length")
	}

	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(length)
	for _, v := range raw {
		b.WriteByte(backupCodeAlphabet[int(v)%len(backupCodeAlphabet)])
	}
	return b.String(), nil
}

// FormatBackupCode groups a canonical code into dash-separated blocks of
// four for display.
func FormatBackupCode(code string) string {
	var b strings.Builder
	for i := 0; i < len(code); i += 4 {
		if i > 0 {
			b.WriteByte('-')
		}
		end := i + 4
		if end > len(code) {
			end = len(code)
		}
		b.WriteString(code[i:end])
	}
	return b.String()
}

// CanonicalizeBackupCode strips separators and uppercases user input before
// hashing.
func CanonicalizeBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}

// BackupCodeHash binds the code hash to the owning user so identical codes
// issued to different users never share a stored hash.
func BackupCodeHash(userID, canonicalCode string) [32]byte {
	return sha256.Sum256([]byte(userID + ":" + canonicalCode))
}

// LooksLikeBackupCode reports whether input plausibly is a backup code
// rather than a 6-digit TOTP code, after canonicalization.
func LooksLikeBackupCode(input string, length int) bool {
	canonical := CanonicalizeBackupCode(input)
	if len(canonical) != length {
		return false
	}
	for i := 0; i < len(canonical); i++ {
		if !strings.ContainsRune(backupCodeAlphabet, rune(canonical[i])) {
			return false
		}
	}
	return true
}
