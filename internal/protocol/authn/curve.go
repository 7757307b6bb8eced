package authn

import (
	"bytes"
	"crypto/ecdh"
	"fmt"

	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"
	"golang.org/x/crypto/curve25519"

	"ledgerlink/internal/crypto"
	domaintypes "ledgerlink/internal/domain/types"
)

// montgomeryA is the A coefficient of Curve25519, v^2 = u^3 + A*u^2 + u.
const montgomeryA = 486662

// lowOrderScalar is any clamped scalar. Clamping makes it a multiple of the
// cofactor, so multiplying a point of small order by it yields the identity,
// which X25519 reports as an error.
var lowOrderScalar = []byte{
	0x48, 0x6c, 0x65, 0x64, 0x67, 0x65, 0x72, 0x6c,
	0x69, 0x6e, 0x6b, 0x20, 0x63, 0x68, 0x65, 0x63,
	0x6b, 0x20, 0x73, 0x63, 0x61, 0x6c, 0x61, 0x72,
	0x20, 0x66, 0x6f, 0x72, 0x20, 0x78, 0x32, 0x35,
}

// ValidateEphemeralKey checks that raw is a usable public key for scheme:
// on the curve, canonically encoded, not the point at infinity and, for
// X25519, not of small order.
func ValidateEphemeralKey(scheme domaintypes.Scheme, raw []byte) error {
	switch scheme {
	case domaintypes.SchemeX25519:
		return validateX25519(raw)
	case domaintypes.SchemeP256:
		return validateNIST(ecdh.P256(), raw)
	case domaintypes.SchemeP384:
		return validateNIST(ecdh.P384(), raw)
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedScheme, scheme)
	}
}

// ValidateIdentityKey applies the same checks to a stable identity key.
func ValidateIdentityKey(key domaintypes.PublicKey) error {
	switch key.Algorithm {
	case domaintypes.SignatureEd25519:
		if len(key.Raw) != 32 {
			return fmt.Errorf("%w: ed25519 key is %d bytes", ErrInvalidCurvePoint, len(key.Raw))
		}
		p, err := new(edwards25519.Point).SetBytes(key.Raw)
		if err != nil {
			return fmt.Errorf("%w: ed25519 key not on curve", ErrInvalidCurvePoint)
		}
		if new(edwards25519.Point).MultByCofactor(p).Equal(edwards25519.NewIdentityPoint()) == 1 {
			return fmt.Errorf("%w: ed25519 key has small order", ErrInvalidCurvePoint)
		}
		return nil
	case domaintypes.SignatureECDSAP256SHA256:
		if _, err := crypto.ECDSAPublicKey(key.Raw); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCurvePoint, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: signature algorithm %v", ErrUnsupportedScheme, key.Algorithm)
	}
}

func validateX25519(raw []byte) error {
	if len(raw) != curve25519.PointSize {
		return fmt.Errorf("%w: x25519 key is %d bytes", ErrInvalidCurvePoint, len(raw))
	}
	u, err := new(field.Element).SetBytes(raw)
	if err != nil || !bytes.Equal(u.Bytes(), raw) {
		return fmt.Errorf("%w: non-canonical x25519 coordinate", ErrInvalidCurvePoint)
	}

	// u is on the curve (not its twist) iff u^3 + A*u^2 + u is a square.
	rhs := new(field.Element).Square(u)
	rhs.Add(rhs, new(field.Element).Mult32(u, montgomeryA))
	rhs.Add(rhs, new(field.Element).One())
	rhs.Multiply(rhs, u)
	if _, wasSquare := new(field.Element).SqrtRatio(rhs, new(field.Element).One()); wasSquare != 1 {
		return fmt.Errorf("%w: x25519 coordinate not on curve", ErrInvalidCurvePoint)
	}

	if _, err := curve25519.X25519(lowOrderScalar, raw); err != nil {
		return fmt.Errorf("%w: x25519 point has small order", ErrInvalidCurvePoint)
	}
	return nil
}

func validateNIST(curve ecdh.Curve, raw []byte) error {
	if len(raw) == 0 || raw[0] != 0x04 {
		return fmt.Errorf("%w: %v key must be an uncompressed point", ErrInvalidCurvePoint, curve)
	}
	if _, err := curve.NewPublicKey(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCurvePoint, err)
	}
	return nil
}
