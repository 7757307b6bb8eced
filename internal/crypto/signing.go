package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	domaintypes "ledgerlink/internal/domain/types"
)

var (
	// ErrUnsupportedAlgorithm is returned for unknown signature algorithms.
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")
	// ErrInvalidSigningKey is returned when private key material is malformed.
	ErrInvalidSigningKey = errors.New("invalid signing key")
)

// GenerateSigningKey returns a new identity key pair for alg.
//
// Ed25519 keys use the standard 32-byte public and 64-byte private encodings.
// ECDSA P-256 public keys are 65-byte uncompressed points and private keys
// the 32-byte big-endian scalar.
func GenerateSigningKey(alg domaintypes.SignatureAlgorithm) (pub, priv []byte, err error) {
	switch alg {
	case domaintypes.SignatureEd25519:
		pk, sk, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		return pk, sk, nil
	case domaintypes.SignatureECDSAP256SHA256:
		sk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		ek, err := sk.ECDH()
		if err != nil {
			return nil, nil, err
		}
		return ek.PublicKey().Bytes(), ek.Bytes(), nil
	default:
		return nil, nil, fmt.Errorf("%w: %v", ErrUnsupportedAlgorithm, alg)
	}
}

// Sign signs data with priv. ECDSA signatures are ASN.1 encoded over SHA-256.
func Sign(alg domaintypes.SignatureAlgorithm, priv, data []byte) ([]byte, error) {
	switch alg {
	case domaintypes.SignatureEd25519:
		if len(priv) != ed25519.PrivateKeySize {
			return nil, ErrInvalidSigningKey
		}
		return ed25519.Sign(ed25519.PrivateKey(priv), data), nil
	case domaintypes.SignatureECDSAP256SHA256:
		sk, err := ecdsaPrivateKey(priv)
		if err != nil {
			return nil, err
		}
		digest := sha256.Sum256(data)
		return ecdsa.SignASN1(rand.Reader, sk, digest[:])
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAlgorithm, alg)
	}
}

// Verify reports whether sig is a valid signature over data by key. Malformed
// keys verify nothing.
func Verify(key domaintypes.PublicKey, data, sig []byte) bool {
	switch key.Algorithm {
	case domaintypes.SignatureEd25519:
		if len(key.Raw) != ed25519.PublicKeySize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(key.Raw), data, sig)
	case domaintypes.SignatureECDSAP256SHA256:
		pk, err := ECDSAPublicKey(key.Raw)
		if err != nil {
			return false
		}
		digest := sha256.Sum256(data)
		return ecdsa.VerifyASN1(pk, digest[:], sig)
	default:
		return false
	}
}

// ECDSAPublicKey parses an uncompressed P-256 point. Points off the curve,
// the point at infinity and compressed encodings are rejected.
func ECDSAPublicKey(raw []byte) (*ecdsa.PublicKey, error) {
	if len(raw) != 65 || raw[0] != 0x04 {
		return nil, errors.New("P-256 key must be a 65-byte uncompressed point")
	}
	if _, err := ecdh.P256().NewPublicKey(raw); err != nil {
		return nil, err
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(raw[1:33]),
		Y:     new(big.Int).SetBytes(raw[33:65]),
	}, nil
}

func ecdsaPrivateKey(priv []byte) (*ecdsa.PrivateKey, error) {
	ek, err := ecdh.P256().NewPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSigningKey, err)
	}
	pub, err := ECDSAPublicKey(ek.PublicKey().Bytes())
	if err != nil {
		return nil, err
	}
	return &ecdsa.PrivateKey{PublicKey: *pub, D: new(big.Int).SetBytes(priv)}, nil
}
