package interfaces

import (
	"context"

	domaintypes "ledgerlink/internal/domain/types"
)

// RelayClient is how we talk to the directory and mailbox relay, all with context.
type RelayClient interface {
	RegisterMember(ctx context.Context, rec domaintypes.MemberRecord) error
	FetchMember(
		ctx context.Context,
		id domaintypes.HoldingIdentity,
	) (domaintypes.MemberRecord, error)

	SendEnvelope(ctx context.Context, env domaintypes.Envelope) error
	FetchEnvelopes(
		ctx context.Context,
		id domaintypes.HoldingIdentity,
		limit int,
	) ([]domaintypes.Envelope, error)
	AckEnvelopes(ctx context.Context, id domaintypes.HoldingIdentity, count int) error
}
