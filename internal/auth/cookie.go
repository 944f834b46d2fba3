package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	cookieKeyInfoConstant          = "billdesk session cookie v1"
	minimumSecretBytesConstant     = 16
	shortSecretMessageConstant     = "session secret must be at least 16 bytes"
	malformedCookieMessageConstant = "malformed session cookie"
)

// ErrMalformedCookie indicates a cookie value that fails to decode or authenticate.
var ErrMalformedCookie = errors.New(malformedCookieMessageConstant)

// CookieSealer encrypts and authenticates cookie values with a key derived from the session secret.
type CookieSealer struct {
	aeadKey []byte
}

// NewCookieSealer derives the sealing key from secret with HKDF-SHA256.
func NewCookieSealer(secret string) (*CookieSealer, error) {
	if len(secret) < minimumSecretBytesConstant {
		return nil, errors.New(shortSecretMessageConstant)
	}
	derivedKey := make([]byte, chacha20poly1305.KeySize)
	if _, readError := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(cookieKeyInfoConstant)), derivedKey); readError != nil {
		return nil, readError
	}
	return &CookieSealer{aeadKey: derivedKey}, nil
}

// Seal returns the URL-safe encoding of nonce || ciphertext for value.
func (sealer *CookieSealer) Seal(value string) (string, error) {
	aead, aeadError := chacha20poly1305.New(sealer.aeadKey)
	if aeadError != nil {
		return "", aeadError
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, readError := rand.Read(nonce); readError != nil {
		return "", readError
	}
	sealed := aead.Seal(nonce, nonce, []byte(value), []byte(cookieKeyInfoConstant))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open authenticates and decrypts a value produced by Seal.
func (sealer *CookieSealer) Open(sealedValue string) (string, error) {
	sealed, decodeError := base64.RawURLEncoding.DecodeString(sealedValue)
	if decodeError != nil || len(sealed) <= chacha20poly1305.NonceSize {
		return "", ErrMalformedCookie
	}
	aead, aeadError := chacha20poly1305.New(sealer.aeadKey)
	if aeadError != nil {
		return "", aeadError
	}
	nonce, ciphertext := sealed[:chacha20poly1305.NonceSize], sealed[chacha20poly1305.NonceSize:]
	plaintext, openError := aead.Open(nil, nonce, ciphertext, []byte(cookieKeyInfoConstant))
	if openError != nil {
		return "", ErrMalformedCookie
	}
	return string(plaintext), nil
}
