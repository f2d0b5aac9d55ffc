package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// RedactChargeID returns a short deterministic digest of a payment charge
// id. Raw charge ids never go to logs; the digest still lets log lines be
// correlated with the audit trail.
func RedactChargeID(chargeID string) string {
	if chargeID == "" {
		return ""
	}
	h := sha256.Sum256([]byte(chargeID))
	return hex.EncodeToString(h[:8])
}
