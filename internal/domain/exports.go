package domain

import (
	interfaces "ledgerlink/internal/domain/interfaces"
	types "ledgerlink/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	HoldingIdentity             = types.HoldingIdentity
	SessionID                   = types.SessionID
	MessageID                   = types.MessageID
	Fingerprint                 = types.Fingerprint
	Scheme                      = types.Scheme
	Mode                        = types.Mode
	SignatureAlgorithm          = types.SignatureAlgorithm
	PublicKey                   = types.PublicKey
	EphemeralKeyPair            = types.EphemeralKeyPair
	LocalIdentity               = types.LocalIdentity
	MemberRecord                = types.MemberRecord
	SessionStatus               = types.SessionStatus
	SessionMetadata             = types.SessionMetadata
	SessionKeyRecord            = types.SessionKeyRecord
	Role                        = types.Role
	Header                      = types.Header
	MessageKind                 = types.MessageKind
	SessionMessage              = types.SessionMessage
	InitiatorHello              = types.InitiatorHello
	ResponderHello              = types.ResponderHello
	InitiatorHandshake          = types.InitiatorHandshake
	ResponderHandshake          = types.ResponderHandshake
	DataMessage                 = types.DataMessage
	OutboundMessage             = types.OutboundMessage
	DecryptedApplicationMessage = types.DecryptedApplicationMessage
	UndeliverableMessage        = types.UndeliverableMessage
	Envelope                    = types.Envelope
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	CryptoProvider       = interfaces.CryptoProvider
	IdentityResolver     = interfaces.IdentityResolver
	IdentityService      = interfaces.IdentityService
	MembershipService    = interfaces.MembershipService
	SessionManager       = interfaces.SessionManager
	MessageService       = interfaces.MessageService
	RelayClient          = interfaces.RelayClient
	IdentityStore        = interfaces.IdentityStore
	SessionMetadataStore = interfaces.SessionMetadataStore
	SessionKeyStore      = interfaces.SessionKeyStore
	MemberStore          = interfaces.MemberStore
)
