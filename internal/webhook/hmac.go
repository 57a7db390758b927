package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrUnauthorized is returned for every signature failure. Callers never
// learn which check failed.
var ErrUnauthorized = errors.New("unauthorized")

// signaturePrefix is accepted in front of the hex digest (GitHub style).
const signaturePrefix = "sha256="

// Verify checks signature against HMAC-SHA256(secret, body) in constant time.
//
// Supported formats:
//   - "<hex>" (plain hex, either case)
//   - "sha256=<hex>"
//
// An empty secret never verifies.
func Verify(body []byte, signature, secret string) error {
	if secret == "" || signature == "" {
		return ErrUnauthorized
	}

	actualMAC, err := parseSignature(signature)
	if err != nil {
		return ErrUnauthorized
	}

	if subtle.ConstantTimeCompare(computeMAC(body, secret), actualMAC) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Sign returns the lowercase hex HMAC-SHA256 of body, the value senders put
// in the signature header.
func Sign(body []byte, secret string) string {
	return hex.EncodeToString(computeMAC(body, secret))
}

func computeMAC(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func parseSignature(signature string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), signaturePrefix))
}
