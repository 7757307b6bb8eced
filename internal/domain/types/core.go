package types

import (
	"errors"
	"strings"
)

// ErrInvalidIdentity is returned when a HoldingIdentity has an empty name or group.
var ErrInvalidIdentity = errors.New("holding identity requires an X.500 name and a group id")

// HoldingIdentity is a node's logical identity within a membership group.
// Two identities are equal iff both the name and the group match, so the
// struct is usable as a map key.
type HoldingIdentity struct {
	X500Name string `json:"x500_name" cbor:"x500Name"`
	GroupID  string `json:"group_id" cbor:"groupId"`
}

// NewHoldingIdentity trims and validates the parts of an identity.
func NewHoldingIdentity(x500Name, groupID string) (HoldingIdentity, error) {
	id := HoldingIdentity{
		X500Name: strings.TrimSpace(x500Name),
		GroupID:  strings.TrimSpace(groupID),
	}
	return id, id.Validate()
}

// Validate reports ErrInvalidIdentity when either part is empty.
func (h HoldingIdentity) Validate() error {
	if h.X500Name == "" || h.GroupID == "" {
		return ErrInvalidIdentity
	}
	return nil
}

// IsZero reports whether the identity is unset.
func (h HoldingIdentity) IsZero() bool { return h == HoldingIdentity{} }

// String returns "<x500 name>@<group id>".
func (h HoldingIdentity) String() string { return h.X500Name + "@" + h.GroupID }

// SessionID identifies one negotiation attempt. The initiator generates it and
// the responder echoes it in every reply.
type SessionID string

// String returns the string form of the session id.
func (id SessionID) String() string { return string(id) }

// MessageID identifies an application payload accepted by SendMessage.
type MessageID string

// String returns the string form of the message id.
func (id MessageID) String() string { return string(id) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }
