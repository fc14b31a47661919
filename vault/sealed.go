package vault

import (
	"crypto/rand"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"

	errs "github.com/attachly/go-attach-client/internal/errors"
)

const (
	saltSize  = 16
	nonceSize = 24
)

// SealedCodec encrypts the cached secret with a key derived from a
// device passphrase. Payload layout: base64(salt || nonce || box).
// The salt is fresh per Encode, so two saves of the same secret never
// produce the same payload.
type SealedCodec struct {
	passphrase []byte
}

// NewSealedCodec creates a codec sealed with the given passphrase.
func NewSealedCodec(passphrase string) *SealedCodec {
	return &SealedCodec{passphrase: []byte(passphrase)}
}

func (c *SealedCodec) Encode(secret string) (string, error) {
	raw := make([]byte, saltSize+nonceSize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", errs.Wrapf(err, "vault.SealedCodec random")
	}
	var salt [saltSize]byte
	var nonce [nonceSize]byte
	copy(salt[:], raw[:saltSize])
	copy(nonce[:], raw[saltSize:])

	key, err := c.deriveKey(salt[:])
	if err != nil {
		return "", err
	}

	payload := make([]byte, 0, saltSize+nonceSize+len(secret)+secretbox.Overhead)
	payload = append(payload, salt[:]...)
	payload = append(payload, nonce[:]...)
	payload = secretbox.Seal(payload, []byte(secret), &nonce, key)
	return base64.StdEncoding.EncodeToString(payload), nil
}

func (c *SealedCodec) Decode(stored string) (string, error) {
	payload, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", errs.Wrapf(errs.ErrSealedPayload, "vault.SealedCodec base64")
	}
	if len(payload) < saltSize+nonceSize+secretbox.Overhead {
		return "", errs.ErrSealedPayload
	}

	var nonce [nonceSize]byte
	copy(nonce[:], payload[saltSize:saltSize+nonceSize])

	key, err := c.deriveKey(payload[:saltSize])
	if err != nil {
		return "", err
	}

	plain, ok := secretbox.Open(nil, payload[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return "", errs.ErrSealedPayload
	}
	return string(plain), nil
}

func (c *SealedCodec) deriveKey(salt []byte) (*[32]byte, error) {
	derived, err := scrypt.Key(c.passphrase, salt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, errs.Wrapf(err, "vault.SealedCodec derive key")
	}
	var key [32]byte
	copy(key[:], derived)
	return &key, nil
}

var _ Codec = (*SealedCodec)(nil)
