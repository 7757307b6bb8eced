package interfaces

import (
	"context"

	domaintypes "ledgerlink/internal/domain/types"
)

// IdentityService creates, retrieves, and inspects the local signing identity.
type IdentityService interface {
	GenerateIdentity(
		passphrase string,
		id domaintypes.HoldingIdentity,
		alg domaintypes.SignatureAlgorithm,
	) (domaintypes.LocalIdentity, domaintypes.Fingerprint, error)
	LoadIdentity(passphrase string) (domaintypes.LocalIdentity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}

// MembershipService publishes our key and resolves the keys of peers.
type MembershipService interface {
	IdentityResolver
	Register(ctx context.Context, id domaintypes.LocalIdentity) (domaintypes.MemberRecord, error)
}

// SessionManager negotiates sessions and queues traffic around them. No
// method blocks on the network; the transport drains the queues.
type SessionManager interface {
	SendMessage(
		ctx context.Context,
		destination domaintypes.HoldingIdentity,
		payload []byte,
	) (domaintypes.MessageID, error)
	ProcessSessionMessage(ctx context.Context, msg domaintypes.SessionMessage) error

	GetQueuedOutboundMessage() (domaintypes.OutboundMessage, bool)
	GetQueuedInboundMessage() (domaintypes.DecryptedApplicationMessage, bool)
	GetUndeliverableMessage() (domaintypes.UndeliverableMessage, bool)
}

// MessageService moves session traffic between a SessionManager and the relay.
type MessageService interface {
	Send(
		ctx context.Context,
		to domaintypes.HoldingIdentity,
		payload []byte,
	) (domaintypes.MessageID, error)
	Flush(ctx context.Context) (int, error)
	Poll(ctx context.Context, limit int) ([]domaintypes.DecryptedApplicationMessage, error)
}
