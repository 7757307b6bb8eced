// Package authn implements the four-message session handshake.
//
//	InitiatorHello     -> ephemeral key, supported modes
//	ResponderHello     <- ephemeral key, selected mode
//	InitiatorHandshake -> identity, key hash, signature, finished MAC
//	ResponderHandshake <- signature, finished MAC
//
// Every message is folded into a running SHA-256 transcript. After the hellos
// both sides hold an ECDH secret S and the transcript T2, from which the
// finished keys are derived:
//
//	hs   = HKDF-Extract(salt=T2, S)
//	ifin = HKDF-Expand(hs, "initiator finished")
//	rfin = HKDF-Expand(hs, "responder finished")
//
// The initiator signs T2 together with its identity and key hash; the
// responder signs T3. Once the ResponderHandshake is folded in (T4) both
// sides derive the session key HKDF-Expand(HKDF-Extract(salt=T4, S),
// "session") and keep T4 as the transcript hash.
//
// Initiator and Responder are not safe for concurrent use; the owner
// serialises calls per session. Every public key received from a peer passes
// a curve membership check before it is used.
package authn
