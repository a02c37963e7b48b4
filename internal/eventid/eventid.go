// Package eventid computes the deterministic 256-bit hash that makes raw
// rows idempotent across runs.
package eventid

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Compute returns the hex-encoded SHA-256 of the tuple
// (source, providerName, venueTxId, transactionTypeHint, sourceAddress),
// each field trimmed of surrounding whitespace and the fields joined with
// the 0x1f unit separator. Fields are not escaped, so a field that itself
// contains 0x1f can make two distinct tuples hash alike.
func Compute(source, providerName, venueTxID, transactionTypeHint, sourceAddress string) string {
	h := sha256.New()
	fields := []string{source, providerName, venueTxID, transactionTypeHint, sourceAddress}
	for i, f := range fields {
		if i > 0 {
			h.Write([]byte{0x1f}) // unit separator, never user-supplied
		}
		h.Write([]byte(strings.TrimSpace(f)))
	}
	return hex.EncodeToString(h.Sum(nil))
}
