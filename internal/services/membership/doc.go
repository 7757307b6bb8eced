// Package membership publishes the local identity key to the relay
// directory and resolves the identity keys of peers.
//
// Resolved records are cached in a domain.MemberStore so that handshakes
// with known peers do not hit the relay. Every key is checked with
// authn.ValidateIdentityKey before it is cached or returned.
package membership
