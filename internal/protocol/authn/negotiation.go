package authn

import (
	"bytes"
	"fmt"

	"ledgerlink/internal/domain"
	domaintypes "ledgerlink/internal/domain/types"
	"ledgerlink/internal/protocol/wire"
)

// Config holds the negotiation preferences of one side.
type Config struct {
	// Scheme is the key agreement an initiator proposes. Responders accept
	// whatever known scheme the hello names.
	Scheme domaintypes.Scheme
	// SupportedModes is ordered by preference; a responder picks the first
	// of its own modes that the initiator also offers.
	SupportedModes []domaintypes.Mode
	// MaxMessageSize is advertised to the peer; the session uses the
	// smaller of both values. Zero means no limit.
	MaxMessageSize uint32
}

// accepted remembers every inbound message a negotiation has processed and
// the reply it produced, so that redelivery returns the same reply without
// touching key material.
type accepted struct {
	enc   map[domaintypes.MessageKind][]byte
	reply map[domaintypes.MessageKind]domaintypes.SessionMessage
}

func newAccepted() accepted {
	return accepted{
		enc:   make(map[domaintypes.MessageKind][]byte),
		reply: make(map[domaintypes.MessageKind]domaintypes.SessionMessage),
	}
}

func (a accepted) duplicate(kind domaintypes.MessageKind, enc []byte) (domaintypes.SessionMessage, bool) {
	prev, ok := a.enc[kind]
	if !ok || !bytes.Equal(prev, enc) {
		return nil, false
	}
	return a.reply[kind], true
}

func (a accepted) record(kind domaintypes.MessageKind, enc []byte, reply domaintypes.SessionMessage) {
	a.enc[kind] = enc
	a.reply[kind] = reply
}

func checkHeader(h domaintypes.Header, want domaintypes.SessionID) error {
	if h.ProtocolVersion != domaintypes.ProtocolVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrProtocolVersionMismatch, h.ProtocolVersion, domaintypes.ProtocolVersion)
	}
	if h.SessionID != want {
		return fmt.Errorf("%w: message for session %q", ErrUnexpectedMessageType, h.SessionID)
	}
	return nil
}

func encode(msg domaintypes.SessionMessage) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrUnexpectedMessageType)
	}
	enc, err := wire.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedMessageType, err)
	}
	return enc, nil
}

func containsMode(modes []domaintypes.Mode, m domaintypes.Mode) bool {
	for _, x := range modes {
		if x == m {
			return true
		}
	}
	return false
}

func selectMode(own, offered []domaintypes.Mode) (domaintypes.Mode, bool) {
	for _, m := range own {
		if containsMode(offered, m) {
			return m, true
		}
	}
	return 0, false
}

func identityBytes(id domain.HoldingIdentity) ([]byte, error) {
	return wire.Marshal(id)
}
