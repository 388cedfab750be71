// Package crypto verifies the Ed25519 signatures on pushed events.
package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrInvalidPublicKey = errors.New("invalid Ed25519 public key")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnknownSigner    = errors.New("unknown signer")
)

// ValidatePublicKey decodes a base64 Ed25519 public key.
func ValidatePublicKey(pubkeyB64 string) (ed25519.PublicKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(pubkeyB64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 encoding", ErrInvalidPublicKey)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidPublicKey, ed25519.PublicKeySize, len(decoded))
	}
	return ed25519.PublicKey(decoded), nil
}

// VerifySignature checks a base64 signature over signedData.
func VerifySignature(pubkey ed25519.PublicKey, signedData []byte, signatureB64 string) error {
	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("%w: invalid base64 encoding", ErrInvalidSignature)
	}
	if !ed25519.Verify(pubkey, signedData, signature) {
		return ErrInvalidSignature
	}
	return nil
}

// BodyHash is the hex SHA-256 of a request body.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// SignaturePayload is the canonical signed string:
// sha256hex(body)|nonce|unix_ms
func SignaturePayload(bodyHash, nonce string, timestampMs int64) []byte {
	return []byte(bodyHash + "|" + nonce + "|" + strconv.FormatInt(timestampMs, 10))
}

// Keyring holds the public keys of the agents allowed to sign requests.
type Keyring map[string]ed25519.PublicKey

// NewKeyring decodes id → base64 key pairs. One bad key fails the whole
// ring.
func NewKeyring(keys map[string]string) (Keyring, error) {
	ring := make(Keyring, len(keys))
	for id, raw := range keys {
		pub, err := ValidatePublicKey(raw)
		if err != nil {
			return nil, fmt.Errorf("key for %s: %w", id, err)
		}
		ring[id] = pub
	}
	return ring, nil
}

// Verify checks that signatureB64 is signerID's signature over the
// request described by bodyHash, nonce and timestampMs.
func (k Keyring) Verify(signerID, bodyHash, nonce string, timestampMs int64, signatureB64 string) error {
	pub, ok := k[signerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSigner, signerID)
	}
	return VerifySignature(pub, SignaturePayload(bodyHash, nonce, timestampMs), signatureB64)
}
