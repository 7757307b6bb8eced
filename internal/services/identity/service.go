package identity

import (
	"errors"
	"fmt"
	"os"
	"unicode"

	"ledgerlink/internal/crypto"
	"ledgerlink/internal/domain"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
	// ErrNoIdentity is returned when nothing has been initialised yet.
	ErrNoIdentity = errors.New("no local identity; run init first")
)

// Service manages identity key creation and access using a backing store.
//
// The identity pairs a HoldingIdentity (X.500 name and group) with one
// signing key, Ed25519 or ECDSA P-256. Peers resolve the public half
// through the membership directory and verify handshake signatures with it.
type Service struct {
	store domain.IdentityStore
}

// New returns an identity service backed by the given store.
func New(s domain.IdentityStore) *Service { return &Service{store: s} }

// GenerateIdentity creates a new signing identity for id, saves it encrypted
// with the passphrase, and returns it plus a short fingerprint of the public
// key.
func (s *Service) GenerateIdentity(
	passphrase string,
	id domain.HoldingIdentity,
	alg domain.SignatureAlgorithm,
) (domain.LocalIdentity, domain.Fingerprint, error) {
	if !isSecurePassphrase(passphrase) {
		return domain.LocalIdentity{}, "", ErrWeakPassphrase
	}
	if err := id.Validate(); err != nil {
		return domain.LocalIdentity{}, "", err
	}

	pub, priv, err := crypto.GenerateSigningKey(alg)
	if err != nil {
		return domain.LocalIdentity{}, "", err
	}
	local := domain.LocalIdentity{
		Identity:  id,
		Algorithm: alg,
		Public:    pub,
		Private:   priv,
	}
	if err := s.store.SaveIdentity(passphrase, local); err != nil {
		return domain.LocalIdentity{}, "", err
	}
	return local, crypto.Fingerprint(local.PublicKey()), nil
}

// LoadIdentity decrypts and returns the local identity.
func (s *Service) LoadIdentity(passphrase string) (domain.LocalIdentity, error) {
	id, err := s.store.LoadIdentity(passphrase)
	if errors.Is(err, os.ErrNotExist) {
		return domain.LocalIdentity{}, ErrNoIdentity
	}
	return id, err
}

// FingerprintIdentity returns a short fingerprint of the local public key.
func (s *Service) FingerprintIdentity(passphrase string) (domain.Fingerprint, error) {
	id, err := s.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(id.PublicKey()), nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
