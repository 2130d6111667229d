package http

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// verifyHMACSHA256 checks a hex-encoded HMAC-SHA256 signature (the shape
// used by Calendly and most generic webhook senders) in constant time.
func verifyHMACSHA256(signature, secret string, body []byte) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// verifyHubSignatureSHA1 checks an `X-Hub-Signature: sha1=<hex>` header
// (the shape WhatsApp/Meta webhooks use) in constant time.
func verifyHubSignatureSHA1(header, secret string, body []byte) bool {
	if header == "" || secret == "" {
		return false
	}
	const prefix = "sha1="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	provided := strings.TrimPrefix(header, prefix)

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(provided), []byte(expected))
}
