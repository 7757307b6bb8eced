// Package relay provides the HTTP relay used by ledgerlink nodes: a client
// implementing domain.RelayClient and the in-memory Server behind cmd/relay.
//
// The relay is a membership directory and a store-and-forward mailbox. It
// never sees session keys: mailboxes hold CBOR session frames that are either
// handshake messages or data messages protected by the session.
//
// Supported operations include:
//   - Publishing our identity key to the directory.
//   - Fetching a member's identity key.
//   - Enqueueing a frame in a member's mailbox.
//   - Fetching pending frames for an identity.
//   - Acknowledging processed frames.
//
// Identities travel as the name and group query parameters. All requests are
// JSON over HTTP and accept a context for cancellation and deadlines. Non-2xx
// statuses are returned as errors with the HTTP method, path, and status
// text to aid diagnostics.
package relay
