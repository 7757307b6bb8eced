// Package crypto exposes the primitives used by ledgerlink.
//
// Contents
//
//   - Ephemeral key agreement for X25519 and the NIST curves P-256 and P-384
//     (GenerateEphemeral, SharedSecret)
//   - Ed25519 and ECDSA P-256/SHA-256 identity keys (GenerateSigningKey,
//     Sign, Verify)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Public-key hashes and short fingerprints for display/logging
//     (KeyHash, Fingerprint)
//   - SoftwareProvider, an in-process implementation of the crypto capability
//     consumed by the handshake
//
// # Notes
//
// Ephemeral private keys are returned as plain byte slices so that the
// negotiation owning them can Wipe them once it completes or fails.
package crypto
