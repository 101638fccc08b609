package gateway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

const authScheme = "V2-HMAC-SHA256"

// ExtractSignature pulls the hex signature out of an Authorization header of
// the form "V2-HMAC-SHA256, Signature: <64 hex chars>". Returns "" when the
// header does not conform.
func ExtractSignature(authorization string) string {
	if authorization == "" || !strings.Contains(authorization, authScheme) {
		return ""
	}
	idx := strings.Index(authorization, "Signature:")
	if idx < 0 {
		return ""
	}
	sig := strings.TrimSpace(authorization[idx+len("Signature:"):])
	if len(sig) != 64 {
		return ""
	}
	for _, c := range sig {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return ""
		}
	}
	return sig
}

// VerifyWebhookSignature recomputes HMAC-SHA256(secret, login + xDate +
// compactJSON(rawBody)) and compares in constant time. The compaction
// preserves the key order the event was received with, which is why the raw
// bytes are compacted instead of re-marshalling a parsed map.
func VerifyWebhookSignature(secret, login, xDate string, rawBody []byte, signature string) bool {
	if secret == "" || login == "" {
		return false
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, rawBody); err != nil {
		return false
	}

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(login + xDate))
	h.Write(compact.Bytes())
	expected := hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
