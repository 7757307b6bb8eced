package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// SessionLifetime is how long a session stays usable after its last send.
const SessionLifetime = 7 * 24 * time.Hour

// SessionStatus is the persisted handshake progress of a session.
type SessionStatus uint8

const (
	StatusSentInitiatorHello SessionStatus = iota + 1
	StatusSentInitiatorHandshake
	StatusSentResponderHello
	StatusSentResponderHandshake
	StatusSessionReady
)

var statusNames = map[SessionStatus]string{
	StatusSentInitiatorHello:     "SentInitiatorHello",
	StatusSentInitiatorHandshake: "SentInitiatorHandshake",
	StatusSentResponderHello:     "SentResponderHello",
	StatusSentResponderHandshake: "SentResponderHandshake",
	StatusSessionReady:           "SessionReady",
}

// String returns the persisted status name.
func (s SessionStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("SessionStatus(%d)", uint8(s))
}

// MarshalText encodes the status by name.
func (s SessionStatus) MarshalText() ([]byte, error) {
	n, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown session status %d", uint8(s))
	}
	return []byte(n), nil
}

// UnmarshalText decodes a status name.
func (s *SessionStatus) UnmarshalText(b []byte) error {
	for v, n := range statusNames {
		if n == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown session status %q", b)
}

// Role is the side of the handshake a node played for a session.
type Role uint8

const (
	RoleInitiator Role = iota + 1
	RoleResponder
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// SessionMetadata is the persisted description of a session.
//
// Source is always the local identity and Destination the peer, whichever
// side started the handshake. Both share the group recorded under groupId.
type SessionMetadata struct {
	SessionID           SessionID
	Source              HoldingIdentity
	Destination         HoldingIdentity
	LastSendTimestamp   time.Time
	EncryptionKeyID     string
	EncryptionKeyTenant string
	Status              SessionStatus
	Expiry              time.Time
}

// NewSessionMetadata builds a record whose expiry follows from now.
func NewSessionMetadata(id SessionID, source, destination HoldingIdentity, status SessionStatus, now time.Time) SessionMetadata {
	md := SessionMetadata{
		SessionID:   id,
		Source:      source,
		Destination: destination,
		Status:      status,
	}
	md.Touch(now)
	return md
}

// Touch records a send at now and moves the expiry with it.
func (m *SessionMetadata) Touch(now time.Time) {
	m.LastSendTimestamp = now.UTC()
	m.Expiry = m.LastSendTimestamp.Add(SessionLifetime)
}

// LastSendExpired reports whether now is past lastSendTimestamp plus the
// session lifetime. Expired sessions must be discarded and renegotiated.
func (m SessionMetadata) LastSendExpired(now time.Time) bool {
	return now.After(m.LastSendTimestamp.Add(SessionLifetime))
}

// sessionMetadataJSON carries the persisted key names shared with other
// consumers of the session state.
type sessionMetadataJSON struct {
	SessionID         SessionID     `json:"sessionId"`
	SourceVnode       string        `json:"sourceVnode"`
	DestinationVnode  string        `json:"destinationVnode"`
	GroupID           string        `json:"groupId"`
	LastSendTimestamp time.Time     `json:"lastSendTimestamp"`
	EncryptionKeyID   string        `json:"encryptionKeyId"`
	EncryptionTenant  string        `json:"encryptionTenant"`
	Status            SessionStatus `json:"status"`
	Expiry            time.Time     `json:"expiry"`
}

// MarshalJSON writes the fixed persisted keys.
func (m SessionMetadata) MarshalJSON() ([]byte, error) {
	if m.Source.GroupID != m.Destination.GroupID {
		return nil, fmt.Errorf("session %s spans groups %q and %q", m.SessionID, m.Source.GroupID, m.Destination.GroupID)
	}
	return json.Marshal(sessionMetadataJSON{
		SessionID:         m.SessionID,
		SourceVnode:       m.Source.X500Name,
		DestinationVnode:  m.Destination.X500Name,
		GroupID:           m.Source.GroupID,
		LastSendTimestamp: m.LastSendTimestamp,
		EncryptionKeyID:   m.EncryptionKeyID,
		EncryptionTenant:  m.EncryptionKeyTenant,
		Status:            m.Status,
		Expiry:            m.Expiry,
	})
}

// UnmarshalJSON mirrors MarshalJSON.
func (m *SessionMetadata) UnmarshalJSON(data []byte) error {
	var aux sessionMetadataJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = SessionMetadata{
		SessionID:           aux.SessionID,
		Source:              HoldingIdentity{X500Name: aux.SourceVnode, GroupID: aux.GroupID},
		Destination:         HoldingIdentity{X500Name: aux.DestinationVnode, GroupID: aux.GroupID},
		LastSendTimestamp:   aux.LastSendTimestamp,
		EncryptionKeyID:     aux.EncryptionKeyID,
		EncryptionKeyTenant: aux.EncryptionTenant,
		Status:              aux.Status,
		Expiry:              aux.Expiry,
	}
	return nil
}

// SessionKeyRecord is the key material a key-management service holds for an
// established session. Epoch increases every time the session is restored so
// that sequence numbers never repeat under the same key.
type SessionKeyRecord struct {
	SessionID      SessionID       `json:"session_id"`
	Role           Role            `json:"role"`
	Mode           Mode            `json:"mode"`
	Local          HoldingIdentity `json:"local"`
	Peer           HoldingIdentity `json:"peer"`
	SessionKey     []byte          `json:"session_key"`
	TranscriptHash []byte          `json:"transcript_hash"`
	Epoch          uint32          `json:"epoch"`
	MaxMessageSize uint32          `json:"max_message_size"`

	// RecvEpoch and RecvNext are the receive high-water mark. After a restore
	// the session refuses peer data from an older epoch, or from RecvEpoch
	// with a sequence below RecvNext.
	RecvEpoch uint32 `json:"recv_epoch"`
	RecvNext  uint64 `json:"recv_next"`
}
