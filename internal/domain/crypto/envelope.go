// Package crypto implements the Crypto Envelope component (spec §4.A):
// AES-GCM sealing/opening of message payloads with base64url framing.
// The package is pure — it never performs I/O.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"time"

	apperrors "github.com/cipherroom/gateway/pkg/errors"
)

// KeySize is the required length, in bytes, of a room symmetric key.
const KeySize = 32

// NonceSize is the required length, in bytes, of a GCM nonce.
const NonceSize = 12

// Envelope is the on-disk/on-wire representation of a sealed payload:
// base64url-encoded ciphertext and nonce (spec §3, §6).
type Envelope struct {
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
}

// Payload is the plaintext structure sealed inside an Envelope.
type Payload struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Seal encrypts payload under key, generating a fresh random nonce.
// Returns canonically-padded base64url fields.
func Seal(payload Payload, key [KeySize]byte) (Envelope, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, apperrors.NewInternalErrorWithCause("marshal payload", err)
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return Envelope{}, apperrors.NewInternalErrorWithCause("init cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Envelope{}, apperrors.NewInternalErrorWithCause("init gcm", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, apperrors.NewInternalErrorWithCause("generate nonce", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	return Envelope{
		Ciphertext: base64.URLEncoding.EncodeToString(ciphertext),
		Nonce:      base64.URLEncoding.EncodeToString(nonce),
	}, nil
}

// Open decrypts env under key, returning the original Payload.
//
// Failure modes map directly onto spec §4.A: malformed base64 yields
// BadEnvelope, a valid-looking ciphertext that fails AEAD authentication
// yields Tamper, and a nonce that doesn't decode to exactly NonceSize
// bytes yields BadEnvelope before decryption is even attempted.
func Open(env Envelope, key [KeySize]byte) (Payload, error) {
	ciphertext, err := decodeBase64Tolerant(env.Ciphertext)
	if err != nil {
		return Payload{}, apperrors.NewBadEnvelopeError("malformed ciphertext encoding")
	}
	nonce, err := decodeBase64Tolerant(env.Nonce)
	if err != nil {
		return Payload{}, apperrors.NewBadEnvelopeError("malformed nonce encoding")
	}
	if len(nonce) != NonceSize {
		return Payload{}, apperrors.NewBadEnvelopeError("nonce must decode to 12 bytes")
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return Payload{}, apperrors.NewInternalErrorWithCause("init cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Payload{}, apperrors.NewInternalErrorWithCause("init gcm", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Payload{}, apperrors.NewTamperError("envelope authentication failed")
	}

	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return Payload{}, apperrors.NewBadEnvelopeError("decrypted payload is not valid JSON")
	}
	return payload, nil
}

// decodeBase64Tolerant accepts both padded and unpadded base64url, and
// tolerates embedded whitespace (spec §8 boundary behavior), rejecting only
// a genuinely corrupted tail.
func decodeBase64Tolerant(s string) ([]byte, error) {
	cleaned := stripWhitespace(s)
	if b, err := base64.URLEncoding.DecodeString(cleaned); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(cleaned)
}

func stripWhitespace(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

// IsLegacyPlaintext reports whether raw is a row that predates the
// envelope format: anything that is not a JSON object carrying exactly
// the "ciphertext" and "nonce" keys is treated as legacy plaintext and
// returned verbatim on read (spec §4.A, Open Question #1 in SPEC_FULL.md).
func IsLegacyPlaintext(raw []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return true
	}
	_, hasCiphertext := probe["ciphertext"]
	_, hasNonce := probe["nonce"]
	return !(hasCiphertext && hasNonce && len(probe) == 2)
}
