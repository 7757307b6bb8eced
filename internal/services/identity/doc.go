// Package identity manages creation, encryption and loading of the local
// holding identity.
//
// It enforces passphrase policy, generates the stable signing key pair the
// handshake authenticates with, and persists it via the domain.IdentityStore.
package identity
