// Package store provides file-based persistence for ledgerlink’s core data.
//
// It contains concrete implementations of the domain storage interfaces,
// serialising data as JSON on disk. All methods are concurrency-safe via
// internal locking. Stored files typically live under the user’s configured
// home directory.
//
// The package includes stores for:
//   - The local signing identity, sealed with a scrypt-derived key (IdentityFileStore)
//   - Session metadata (SessionFileStore, MemorySessionStore)
//   - Negotiated session keys, sealed with an Argon2id-derived key
//     (KeyVaultFileStore, MemoryKeyStore)
//   - Cached membership directory records (MemberFileStore)
package store
