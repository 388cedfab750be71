package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSigner(t *testing.T) (ed25519.PrivateKey, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return priv, base64.StdEncoding.EncodeToString(pub)
}

func sign(priv ed25519.PrivateKey, body []byte, nonce string, ts int64) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, SignaturePayload(BodyHash(body), nonce, ts)))
}

func TestKeyringVerify(t *testing.T) {
	priv, pub := newSigner(t)
	ring, err := NewKeyring(map[string]string{"relay": pub})
	require.NoError(t, err)

	body := []byte(`{"room_id":"r"}`)
	sig := sign(priv, body, "nonce-1", 1700000000000)

	assert.NoError(t, ring.Verify("relay", BodyHash(body), "nonce-1", 1700000000000, sig))
	assert.ErrorIs(t, ring.Verify("relay", BodyHash([]byte("{}")), "nonce-1", 1700000000000, sig), ErrInvalidSignature)
	assert.ErrorIs(t, ring.Verify("relay", BodyHash(body), "nonce-2", 1700000000000, sig), ErrInvalidSignature)
	assert.ErrorIs(t, ring.Verify("someone", BodyHash(body), "nonce-1", 1700000000000, sig), ErrUnknownSigner)
	assert.ErrorIs(t, ring.Verify("relay", BodyHash(body), "nonce-1", 1700000000000, "%%%"), ErrInvalidSignature)
}

func TestNewKeyringRejectsBadKey(t *testing.T) {
	_, err := NewKeyring(map[string]string{"relay": "not-base64!"})
	assert.ErrorIs(t, err, ErrInvalidPublicKey)

	_, err = NewKeyring(map[string]string{"relay": base64.StdEncoding.EncodeToString([]byte("short"))})
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

func TestSignaturePayloadFormat(t *testing.T) {
	assert.Equal(t, "abc|n|42", string(SignaturePayload("abc", "n", 42)))
}
