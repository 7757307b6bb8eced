package authn_test

import (
	"context"
	"errors"
	"testing"

	"ledgerlink/internal/crypto"
	domaintypes "ledgerlink/internal/domain/types"
	"ledgerlink/internal/protocol/authn"
)

var (
	partyA = domaintypes.HoldingIdentity{X500Name: "O=PartyA, L=London, C=GB", GroupID: "group-1"}
	partyB = domaintypes.HoldingIdentity{X500Name: "O=PartyB, L=New York, C=US", GroupID: "group-1"}

	bothModes = []domaintypes.Mode{domaintypes.ModeAuthenticatedEncryption, domaintypes.ModeAuthenticationOnly}
)

// directory is an in-memory IdentityResolver.
type directory map[domaintypes.HoldingIdentity]domaintypes.PublicKey

func (d directory) ResolvePublicKey(_ context.Context, id domaintypes.HoldingIdentity) (domaintypes.PublicKey, error) {
	k, ok := d[id]
	if !ok {
		return domaintypes.PublicKey{}, errors.New("not a member")
	}
	return k, nil
}

// party is one side of a test handshake.
type party struct {
	id       domaintypes.HoldingIdentity
	key      domaintypes.PublicKey
	provider *crypto.SoftwareProvider
}

func newParty(t *testing.T, id domaintypes.HoldingIdentity, alg domaintypes.SignatureAlgorithm) party {
	t.Helper()
	pub, priv, err := crypto.GenerateSigningKey(alg)
	if err != nil {
		t.Fatalf("GenerateSigningKey: %v", err)
	}
	local := domaintypes.LocalIdentity{Identity: id, Algorithm: alg, Public: pub, Private: priv}
	return party{id: id, key: local.PublicKey(), provider: crypto.NewSoftwareProvider(local)}
}

// pair wires an initiator (a) and a responder (b) that know each other.
type pair struct {
	a, b party
	ini  *authn.Initiator
	resp *authn.Responder
	dir  directory
}

type pairOptions struct {
	scheme         domaintypes.Scheme
	alg            domaintypes.SignatureAlgorithm
	initiatorModes []domaintypes.Mode
	responderModes []domaintypes.Mode
	initiatorMax   uint32
	responderMax   uint32
}

func defaultOptions() pairOptions {
	return pairOptions{
		scheme:         domaintypes.SchemeX25519,
		alg:            domaintypes.SignatureEd25519,
		initiatorModes: bothModes,
		responderModes: bothModes,
	}
}

func newPair(t *testing.T, o pairOptions) *pair {
	t.Helper()
	a := newParty(t, partyA, o.alg)
	b := newParty(t, partyB, o.alg)
	dir := directory{a.id: a.key, b.id: b.key}

	ini, err := authn.NewInitiator(authn.InitiatorParams{
		SessionID: "session-1",
		Local:     a.id,
		Peer:      b.id,
		PeerKey:   b.key,
		Crypto:    a.provider,
		Config: authn.Config{
			Scheme:         o.scheme,
			SupportedModes: o.initiatorModes,
			MaxMessageSize: o.initiatorMax,
		},
	})
	if err != nil {
		t.Fatalf("NewInitiator: %v", err)
	}
	resp, err := authn.NewResponder(authn.ResponderParams{
		Local:    b.id,
		Crypto:   b.provider,
		Resolver: dir,
		Config: authn.Config{
			SupportedModes: o.responderModes,
			MaxMessageSize: o.responderMax,
		},
	})
	if err != nil {
		t.Fatalf("NewResponder: %v", err)
	}
	return &pair{a: a, b: b, ini: ini, resp: resp, dir: dir}
}

// run drives both machines to completion and returns every message in order.
func (p *pair) run(t *testing.T) []domaintypes.SessionMessage {
	t.Helper()
	ctx := context.Background()

	hello, err := p.ini.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	rh, err := p.resp.ProcessMessage(ctx, hello)
	if err != nil {
		t.Fatalf("responder hello: %v", err)
	}
	ih, err := p.ini.ProcessMessage(rh)
	if err != nil {
		t.Fatalf("initiator hello: %v", err)
	}
	rhs, err := p.resp.ProcessMessage(ctx, ih)
	if err != nil {
		t.Fatalf("responder handshake: %v", err)
	}
	out, err := p.ini.ProcessMessage(rhs)
	if err != nil {
		t.Fatalf("initiator handshake: %v", err)
	}
	if out != nil {
		t.Fatalf("initiator replied to ResponderHandshake with %v", out.Kind())
	}
	return []domaintypes.SessionMessage{hello, rh, ih, rhs}
}

func (p *pair) sessions(t *testing.T) (*authn.Session, *authn.Session) {
	t.Helper()
	si, ok := p.ini.Session()
	if !ok {
		t.Fatalf("initiator not ready: state %v, err %v", p.ini.State(), p.ini.Err())
	}
	sr, ok := p.resp.Session()
	if !ok {
		t.Fatalf("responder not ready: state %v, err %v", p.resp.State(), p.resp.Err())
	}
	return si, sr
}
