package aicq

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// Private room bodies travel as base64(ephemeral_pk[32] | nonce[12] |
// ciphertext+tag). The key is HKDF-SHA256 over the X25519 shared secret,
// salted with both public keys.
const (
	dmProtocol      = "aicq-dm-v1"
	ephemeralPKSize = 32
	dmNonceSize     = chacha20poly1305.NonceSize
	dmKeySize       = chacha20poly1305.KeySize
	minWireLen      = ephemeralPKSize + dmNonceSize + chacha20poly1305.Overhead
)

var (
	ErrInvalidKey = errors.New("invalid public key")
	ErrDecrypt    = errors.New("decryption failed")
)

// ParsePublicKey decodes a base64 Ed25519 public key.
func ParsePublicKey(b64 string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: length %d, expected %d", ErrInvalidKey, len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

func montgomeryPublic(pub ed25519.PublicKey) ([]byte, error) {
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return p.BytesMontgomery(), nil
}

func montgomeryPrivate(priv ed25519.PrivateKey) []byte {
	h := sha512.Sum512(priv.Seed())
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	return h[:32]
}

func dmKey(shared, ephemeralPK, recipientPK []byte) ([]byte, error) {
	salt := append(append(make([]byte, 0, 64), ephemeralPK...), recipientPK...)
	key := make([]byte, dmKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt, []byte(dmProtocol)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// EncryptDM seals plaintext for the owner of recipient.
func EncryptDM(plaintext string, recipient ed25519.PublicKey) (string, error) {
	recipientX, err := montgomeryPublic(recipient)
	if err != nil {
		return "", err
	}

	ephPriv := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(ephPriv); err != nil {
		return "", err
	}
	ephPub, err := curve25519.X25519(ephPriv, curve25519.Basepoint)
	if err != nil {
		return "", err
	}
	shared, err := curve25519.X25519(ephPriv, recipientX)
	if err != nil {
		return "", err
	}

	key, err := dmKey(shared, ephPub, recipientX)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", err
	}

	wire := make([]byte, ephemeralPKSize+dmNonceSize, minWireLen+len(plaintext))
	copy(wire, ephPub)
	nonce := wire[ephemeralPKSize:]
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	wire = aead.Seal(wire, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(wire), nil
}

// DecryptDM opens a body sealed for priv's owner.
func DecryptDM(body string, priv ed25519.PrivateKey) (string, error) {
	wire, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(wire) < minWireLen {
		return "", fmt.Errorf("%w: %d bytes, minimum %d", ErrDecrypt, len(wire), minWireLen)
	}

	ephPub := wire[:ephemeralPKSize]
	nonce := wire[ephemeralPKSize : ephemeralPKSize+dmNonceSize]
	sealed := wire[ephemeralPKSize+dmNonceSize:]

	ownPriv := montgomeryPrivate(priv)
	ownPub, err := curve25519.X25519(ownPriv, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	shared, err := curve25519.X25519(ownPriv, ephPub)
	if err != nil {
		return "", fmt.Errorf("%w: invalid ephemeral key", ErrDecrypt)
	}

	key, err := dmKey(shared, ephPub, ownPub)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", err
	}
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: wrong key or tampered body", ErrDecrypt)
	}
	return string(plaintext), nil
}
