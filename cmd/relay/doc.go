// Package main runs the in-memory HTTP relay used by ledgerlink nodes during
// development and tests. It publishes identity keys for a membership
// directory and queues encoded session messages for recipients until they
// fetch them.
//
// HTTP API
//
//	POST /members
//	    Store a MemberRecord {identity, public_key}. The key is validated and
//	    the server stamps the update time.
//
//	GET /members?name=X&group=G
//	    Return the record for the identity, or 404.
//
//	POST /mailbox?name=X&group=G
//	    Enqueue an Envelope for a registered identity. If Timestamp is zero,
//	    the server fills it with the current Unix time.
//
//	GET /mailbox?name=X&group=G&limit=N
//	    Return up to N queued Envelopes. If limit is absent or greater than
//	    the queue length, all queued envelopes are returned.
//
//	POST /mailbox/ack?name=X&group=G { "count": N }
//	    Drop the first N queued envelopes. If N exceeds the queue length, the
//	    queue is cleared.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Responses are JSON. Non-2xx statuses carry a short error message.
//   - Logs are JSON lines on stderr; --debug adds an access log entry per
//     request with method, path, remote, status, bytes and duration.
//   - The default listen address is :8080.
//
// The relay is an untrusted middleman. It sees handshake messages and, in
// authentication-only mode, payloads, but never session keys or private keys.
package main
