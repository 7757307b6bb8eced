// Package session implements the Session Manager for one local holding
// identity.
//
// The manager owns a table of sessions keyed by session id, with outbound
// sessions additionally indexed by destination. It runs the initiator side
// of the handshake for SendMessage and the responder side for inbound
// InitiatorHello messages, persists SessionMetadata at every step, and keeps
// established session keys in a SessionKeyStore so sessions survive a
// restart.
//
// Nothing here touches the network. Handshake and data messages to send are
// drained with GetQueuedOutboundMessage, delivered payloads with
// GetQueuedInboundMessage, and payloads dropped by a failed negotiation with
// GetUndeliverableMessage.
package session
