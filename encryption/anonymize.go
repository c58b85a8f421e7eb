package encryption

import (
	"crypto/sha256"
	"encoding/hex"
)

// anonymizedTokenLength length of the redaction token in hex characters
const anonymizedTokenLength = 16

/*
Anonymize irreversibly redact an identifying string

Deterministic, which keeps retention-expiry backfills idempotent and allows
dedup checks against already redacted data. There is no reverse operation.

	@param text string - the identifying value
	@returns fixed-length redaction token; empty input is returned unchanged
*/
func Anonymize(text string) string {
	if text == "" {
		return text
	}
	digest := sha256.Sum256([]byte(text))
	return hex.EncodeToString(digest[:])[:anonymizedTokenLength]
}
