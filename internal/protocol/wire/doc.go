// Package wire encodes session messages as canonical CBOR.
//
// Each message travels as a two-field frame: a kind tag and the CBOR body of
// the concrete message. Encoding is deterministic (core deterministic
// encoding, sorted map keys) so that the same message always hashes to the
// same transcript value on both sides of a handshake.
package wire
