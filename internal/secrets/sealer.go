// Package secrets seals provider credentials before they reach the session store.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealedPrefix = "v1:"

var ErrOpen = errors.New("secrets: cannot open sealed value")

// Sealer encrypts short strings with XChaCha20-Poly1305.
type Sealer struct {
	key []byte
}

// New takes a hex encoded 32-byte key. When it is empty the key is derived
// from fallback (the JWT secret) with HKDF.
func New(hexKey, fallback string) (*Sealer, error) {
	if hexKey = strings.TrimSpace(hexKey); hexKey != "" {
		key, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("secrets: decode key: %w", err)
		}
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("secrets: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
		}
		return &Sealer{key: key}, nil
	}
	if fallback == "" {
		return nil, errors.New("secrets: no key material")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(fallback), nil, []byte("nutribot credentials"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return &Sealer{key: key}, nil
}

func (s *Sealer) Seal(plain string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := aead.Seal(nonce, nonce, []byte(plain), nil)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal. The empty string opens to the empty string.
func (s *Sealer) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", ErrOpen
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return "", ErrOpen
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(b) < aead.NonceSize() {
		return "", ErrOpen
	}
	plain, err := aead.Open(nil, b[:aead.NonceSize()], b[aead.NonceSize():], nil)
	if err != nil {
		return "", ErrOpen
	}
	return string(plain), nil
}
