// ABOUTME: Short, non-reversible credential fingerprints for logs and audit rows
// ABOUTME: Uses BLAKE2b so raw API keys never leave the request path

package credential

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// fingerprintLen is the number of hex characters kept from the digest.
const fingerprintLen = 12

// Fingerprint returns a short stable identifier for a credential.
// An empty credential yields an empty fingerprint.
func Fingerprint(value string) string {
	if value == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
