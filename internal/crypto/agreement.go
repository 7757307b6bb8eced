package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"

	domaintypes "ledgerlink/internal/domain/types"
)

// ErrUnsupportedScheme is returned for key-agreement schemes this build lacks.
var ErrUnsupportedScheme = errors.New("unsupported key agreement scheme")

// GenerateEphemeral returns a fresh key-agreement pair for scheme.
// X25519 private keys are clamped per RFC 7748; NIST public keys use the
// uncompressed point encoding.
func GenerateEphemeral(scheme domaintypes.Scheme) (domaintypes.EphemeralKeyPair, error) {
	switch scheme {
	case domaintypes.SchemeX25519:
		priv := make([]byte, curve25519.ScalarSize)
		if _, err := rand.Read(priv); err != nil {
			return domaintypes.EphemeralKeyPair{}, err
		}
		clamp(priv)
		pub, err := curve25519.X25519(priv, curve25519.Basepoint)
		if err != nil {
			Wipe(priv)
			return domaintypes.EphemeralKeyPair{}, err
		}
		return domaintypes.EphemeralKeyPair{Scheme: scheme, Private: priv, Public: pub}, nil
	case domaintypes.SchemeP256, domaintypes.SchemeP384:
		curve, _ := nistCurve(scheme)
		key, err := curve.GenerateKey(rand.Reader)
		if err != nil {
			return domaintypes.EphemeralKeyPair{}, err
		}
		return domaintypes.EphemeralKeyPair{
			Scheme:  scheme,
			Private: key.Bytes(),
			Public:  key.PublicKey().Bytes(),
		}, nil
	default:
		return domaintypes.EphemeralKeyPair{}, fmt.Errorf("%w: %v", ErrUnsupportedScheme, scheme)
	}
}

// SharedSecret computes the Diffie-Hellman secret between priv and peerPub.
// An all-zero X25519 output is reported as an error.
func SharedSecret(scheme domaintypes.Scheme, priv, peerPub []byte) ([]byte, error) {
	switch scheme {
	case domaintypes.SchemeX25519:
		return curve25519.X25519(priv, peerPub)
	case domaintypes.SchemeP256, domaintypes.SchemeP384:
		curve, _ := nistCurve(scheme)
		sk, err := curve.NewPrivateKey(priv)
		if err != nil {
			return nil, err
		}
		pk, err := curve.NewPublicKey(peerPub)
		if err != nil {
			return nil, err
		}
		return sk.ECDH(pk)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedScheme, scheme)
	}
}

func nistCurve(scheme domaintypes.Scheme) (ecdh.Curve, bool) {
	switch scheme {
	case domaintypes.SchemeP256:
		return ecdh.P256(), true
	case domaintypes.SchemeP384:
		return ecdh.P384(), true
	}
	return nil, false
}

func clamp(k []byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}
