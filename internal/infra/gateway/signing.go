package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// xDateLayout is ISO-8601 with milliseconds and a literal Z; Vita rejects
// offsets in the +00:00 form.
const xDateLayout = "2006-01-02T15:04:05.000Z"

// FormatXDate renders t as the X-Date header value.
func FormatXDate(t time.Time) string {
	return t.UTC().Format(xDateLayout)
}

// bodyDigest builds the request-body digest of the outbound signing scheme:
// keys sorted alphabetically, each key immediately followed by its value,
// no separators. {"amount":400,"currency":"USD"} -> "amount400currencyUSD".
//
// This intentionally differs from the inbound webhook canonicalization
// (compact JSON, received key order); Vita specifies the two schemes
// independently.
func bodyDigest(body map[string]any) string {
	if len(body) == 0 {
		return ""
	}
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for _, k := range keys {
		out += k + fmt.Sprintf("%v", body[k])
	}
	return out
}

// Sign computes the hex HMAC-SHA256 over login + xDate + bodyDigest(body).
// The secret is keyed as a UTF-8 string, never decoded from hex.
func Sign(secret, login, xDate string, body map[string]any) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(login + xDate + bodyDigest(body)))
	return hex.EncodeToString(h.Sum(nil))
}
