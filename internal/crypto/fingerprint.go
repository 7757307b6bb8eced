package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	domaintypes "ledgerlink/internal/domain/types"
)

// KeyHash is the SHA-256 digest of the algorithm byte followed by the raw key.
// It is the key reference carried in InitiatorHandshake.
func KeyHash(pub domaintypes.PublicKey) []byte {
	h := sha256.New()
	h.Write([]byte{byte(pub.Algorithm)})
	h.Write(pub.Raw)
	return h.Sum(nil)
}

// Fingerprint returns a short hex fingerprint of a public key.
//
// It truncates KeyHash to 10 bytes (20 hex chars) in groups of four.
func Fingerprint(pub domaintypes.PublicKey) domaintypes.Fingerprint {
	s := hex.EncodeToString(KeyHash(pub)[:10])
	var b strings.Builder
	for i := 0; i < len(s); i += 4 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(s[i : i+4])
	}
	return domaintypes.Fingerprint(b.String())
}
