package types

import (
	"fmt"
	"strings"
)

// Scheme selects the key-agreement algorithm used for ephemeral keys.
type Scheme uint8

const (
	SchemeX25519 Scheme = iota + 1
	SchemeP256
	SchemeP384
)

var schemeNames = map[Scheme]string{
	SchemeX25519: "x25519",
	SchemeP256:   "p256",
	SchemeP384:   "p384",
}

// String returns the lower-case scheme name.
func (s Scheme) String() string {
	if n, ok := schemeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("scheme(%d)", uint8(s))
}

// Valid reports whether s is a known scheme.
func (s Scheme) Valid() bool {
	_, ok := schemeNames[s]
	return ok
}

// ParseScheme maps a scheme name back to its value.
func ParseScheme(name string) (Scheme, error) {
	for s, n := range schemeNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown key agreement scheme %q", name)
}

// Mode is the protection applied to application payloads once a session is ready.
type Mode uint8

const (
	// ModeAuthenticationOnly sends payloads in the clear with an HMAC tag.
	ModeAuthenticationOnly Mode = iota + 1
	// ModeAuthenticatedEncryption seals payloads with ChaCha20-Poly1305.
	ModeAuthenticatedEncryption
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeAuthenticationOnly:
		return "authentication-only"
	case ModeAuthenticatedEncryption:
		return "authenticated-encryption"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode maps a mode name back to its value.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "authentication-only", "auth":
		return ModeAuthenticationOnly, nil
	case "authenticated-encryption", "aead":
		return ModeAuthenticatedEncryption, nil
	}
	return 0, fmt.Errorf("unknown protocol mode %q", name)
}

// SignatureAlgorithm identifies how a stable identity key signs.
type SignatureAlgorithm uint8

const (
	SignatureEd25519 SignatureAlgorithm = iota + 1
	SignatureECDSAP256SHA256
)

// String returns the algorithm name.
func (a SignatureAlgorithm) String() string {
	switch a {
	case SignatureEd25519:
		return "ed25519"
	case SignatureECDSAP256SHA256:
		return "ecdsa-p256-sha256"
	default:
		return fmt.Sprintf("signature(%d)", uint8(a))
	}
}

// ParseSignatureAlgorithm maps an algorithm name back to its value.
func ParseSignatureAlgorithm(name string) (SignatureAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ed25519":
		return SignatureEd25519, nil
	case "ecdsa-p256-sha256", "ecdsa", "p256":
		return SignatureECDSAP256SHA256, nil
	}
	return 0, fmt.Errorf("unknown signature algorithm %q", name)
}

// PublicKey is a stable identity verification key. Raw holds the 32-byte
// Ed25519 key or the 65-byte uncompressed P-256 point.
type PublicKey struct {
	Algorithm SignatureAlgorithm `json:"algorithm" cbor:"algorithm"`
	Raw       []byte             `json:"raw" cbor:"raw"`
}

// IsZero reports whether the key is unset.
func (k PublicKey) IsZero() bool { return k.Algorithm == 0 && len(k.Raw) == 0 }

// EphemeralKeyPair is a one-shot key-agreement pair. Private must be wiped
// once the negotiation that owns it completes or fails.
type EphemeralKeyPair struct {
	Scheme  Scheme
	Private []byte
	Public  []byte
}
