// Package message pumps session traffic between a SessionManager and the
// relay mailbox.
//
// Outbound handshake and data messages are drained from the manager, framed
// with the wire codec and posted as envelopes. Inbound envelopes are decoded
// and fed back to the manager; delivered payloads come out of its inbound
// queue.
package message
