package types

// LocalIdentity holds the stable signing key of a holding identity hosted on
// this node.
type LocalIdentity struct {
	Identity  HoldingIdentity    `json:"identity"`
	Algorithm SignatureAlgorithm `json:"algorithm"`
	Public    []byte             `json:"public"`
	Private   []byte             `json:"private"`
}

// PublicKey returns the verification half of the identity.
func (l LocalIdentity) PublicKey() PublicKey {
	return PublicKey{Algorithm: l.Algorithm, Raw: append([]byte(nil), l.Public...)}
}

// MemberRecord is what the membership directory publishes for an identity.
type MemberRecord struct {
	Identity  HoldingIdentity `json:"identity"`
	PublicKey PublicKey       `json:"public_key"`
	Updated   int64           `json:"updated"`
}
