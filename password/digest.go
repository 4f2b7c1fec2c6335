// Package password implements the credential digest used for at-rest
// password storage: a deterministic one-way SHA-256 digest of the raw UTF-8
// password bytes, compared exact-match and case-sensitively.
package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Digest returns the lowercase hex SHA-256 digest of password. The digest is
// deterministic: the same input always produces the same output, which lets
// lookups and comparisons work without per-record salts.
func Digest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether password digests to encodedDigest. The comparison
// is constant-time over the digest bytes.
func Verify(password, encodedDigest string) bool {
	digest := Digest(password)
	if len(digest) != len(encodedDigest) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(digest), []byte(encodedDigest)) == 1
}
