package password

import (
	"crypto/subtle"
	"strings"
)

// IsHashed reports whether the stored credential is a PHC-format Argon2id
// hash as opposed to a legacy plaintext value.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, "$"+algorithmID+"$")
}

// VerifyLegacy compares a submitted password against a stored plaintext
// credential in constant time. Only meaningful while migration mode is on;
// the engine re-hashes immediately after a successful match.
func VerifyLegacy(password, stored string) bool {
	if stored == "" || IsHashed(stored) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(stored)) == 1
}
