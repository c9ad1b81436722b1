// Package secrets seals small strings (wallet mnemonics) before they are
// written to the document store. The sealed form is base64 so it stores as a
// plain text column.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

var ErrDecrypt = errors.New("secrets: decryption failed")

type Box struct {
	key [32]byte
}

// NewBox derives the sealing key from the configured secret. Short secrets
// are zero-padded; this is a dev convenience matching how the demo runs on
// LocalNet, real deployments must supply a full 32-byte key.
func NewBox(secret string) *Box {
	var key [32]byte
	copy(key[:], secret)
	return &Box{key: key}
}

func (b *Box) Seal(plaintext string) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *Box) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("secrets: decode: %w", err)
	}
	if len(raw) < 24 {
		return "", ErrDecrypt
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plaintext, ok := secretbox.Open(nil, raw[24:], &nonce, &b.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
