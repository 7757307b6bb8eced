package types

import "fmt"

// ProtocolVersion is the only handshake version this node speaks.
const ProtocolVersion uint16 = 1

// MessageKind tags the variants of the session message union.
type MessageKind uint8

const (
	KindInitiatorHello MessageKind = iota + 1
	KindResponderHello
	KindInitiatorHandshake
	KindResponderHandshake
	KindData
)

// String returns the variant name.
func (k MessageKind) String() string {
	switch k {
	case KindInitiatorHello:
		return "InitiatorHello"
	case KindResponderHello:
		return "ResponderHello"
	case KindInitiatorHandshake:
		return "InitiatorHandshake"
	case KindResponderHandshake:
		return "ResponderHandshake"
	case KindData:
		return "Data"
	default:
		return fmt.Sprintf("MessageKind(%d)", uint8(k))
	}
}

// Header is common to every session message.
type Header struct {
	SessionID       SessionID `cbor:"sessionId"`
	ProtocolVersion uint16    `cbor:"protocolVersion"`
}

// SessionMessage is the closed set of messages exchanged on a session. The
// variants are the pointer types in this file; consumers switch on the
// concrete type.
type SessionMessage interface {
	Kind() MessageKind
	SessionHeader() Header
}

// InitiatorHello opens a negotiation.
type InitiatorHello struct {
	Header             Header          `cbor:"header"`
	Source             HoldingIdentity `cbor:"source"`
	Destination        HoldingIdentity `cbor:"destination"`
	Scheme             Scheme          `cbor:"scheme"`
	EphemeralPublicKey []byte          `cbor:"ephemeralPublicKey"`
	SupportedModes     []Mode          `cbor:"supportedModes"`
	MaxMessageSize     uint32          `cbor:"maxMessageSize"`
}

// ResponderHello answers an InitiatorHello with the responder's ephemeral key
// and the mode it picked.
type ResponderHello struct {
	Header             Header `cbor:"header"`
	EphemeralPublicKey []byte `cbor:"ephemeralPublicKey"`
	SelectedMode       Mode   `cbor:"selectedMode"`
}

// InitiatorHandshake authenticates the initiator over the hello transcript.
// KeyHash references the identity key the signature was made with.
type InitiatorHandshake struct {
	Header    Header          `cbor:"header"`
	Identity  HoldingIdentity `cbor:"identity"`
	KeyHash   []byte          `cbor:"keyHash"`
	Signature []byte          `cbor:"signature"`
	Finished  []byte          `cbor:"finished"`
}

// ResponderHandshake authenticates the responder over the full transcript.
type ResponderHandshake struct {
	Header         Header `cbor:"header"`
	Signature      []byte `cbor:"signature"`
	Finished       []byte `cbor:"finished"`
	MaxMessageSize uint32 `cbor:"maxMessageSize"`
}

// DataMessage carries one application payload on an established session.
// Payload is ciphertext in authenticated-encryption mode and plaintext with
// Tag set in authentication-only mode.
type DataMessage struct {
	Header   Header `cbor:"header"`
	Epoch    uint32 `cbor:"epoch"`
	Sequence uint64 `cbor:"sequence"`
	Payload  []byte `cbor:"payload"`
	Tag      []byte `cbor:"tag,omitempty"`
}

func (*InitiatorHello) Kind() MessageKind     { return KindInitiatorHello }
func (*ResponderHello) Kind() MessageKind     { return KindResponderHello }
func (*InitiatorHandshake) Kind() MessageKind { return KindInitiatorHandshake }
func (*ResponderHandshake) Kind() MessageKind { return KindResponderHandshake }
func (*DataMessage) Kind() MessageKind        { return KindData }

func (m *InitiatorHello) SessionHeader() Header     { return m.Header }
func (m *ResponderHello) SessionHeader() Header     { return m.Header }
func (m *InitiatorHandshake) SessionHeader() Header { return m.Header }
func (m *ResponderHandshake) SessionHeader() Header { return m.Header }
func (m *DataMessage) SessionHeader() Header        { return m.Header }

// OutboundMessage is a session message waiting for the transport.
type OutboundMessage struct {
	Source      HoldingIdentity
	Destination HoldingIdentity
	Message     SessionMessage
}

// DecryptedApplicationMessage is an application payload received on an
// established session.
type DecryptedApplicationMessage struct {
	SessionID   SessionID
	Source      HoldingIdentity
	Destination HoldingIdentity
	Payload     []byte
}

// UndeliverableMessage reports a payload dropped because its session could
// not be established.
type UndeliverableMessage struct {
	MessageID   MessageID
	Destination HoldingIdentity
	Payload     []byte
	Err         error
}

// Envelope is what the relay mailbox stores: an encoded session message
// between two identities.
type Envelope struct {
	From      HoldingIdentity `json:"from"`
	To        HoldingIdentity `json:"to"`
	Payload   []byte          `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}
