package relay_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"ledgerlink/internal/crypto"
	domaintypes "ledgerlink/internal/domain/types"
	"ledgerlink/internal/relay"
)

var (
	partyA = domaintypes.HoldingIdentity{X500Name: "O=PartyA, L=London, C=GB", GroupID: "group-1"}
	partyB = domaintypes.HoldingIdentity{X500Name: "O=PartyB, L=New York, C=US", GroupID: "group-1"}
)

func newRelay(t *testing.T) *relay.HTTP {
	t.Helper()
	srv := httptest.NewServer(relay.NewServer(zerolog.Nop()).Router())
	t.Cleanup(srv.Close)
	return relay.NewHTTP(srv.URL, srv.Client())
}

func member(t *testing.T, id domaintypes.HoldingIdentity) domaintypes.MemberRecord {
	t.Helper()
	pub, _, err := crypto.GenerateSigningKey(domaintypes.SignatureEd25519)
	if err != nil {
		t.Fatalf("GenerateSigningKey: %v", err)
	}
	return domaintypes.MemberRecord{
		Identity:  id,
		PublicKey: domaintypes.PublicKey{Algorithm: domaintypes.SignatureEd25519, Raw: pub},
	}
}

func TestRelay_Members(t *testing.T) {
	c := newRelay(t)
	ctx := context.Background()
	rec := member(t, partyA)
	if err := c.RegisterMember(ctx, rec); err != nil {
		t.Fatalf("RegisterMember: %v", err)
	}

	got, err := c.FetchMember(ctx, partyA)
	if err != nil {
		t.Fatalf("FetchMember: %v", err)
	}
	if got.Identity != partyA || string(got.PublicKey.Raw) != string(rec.PublicKey.Raw) || got.Updated == 0 {
		t.Fatalf("fetched %+v", got)
	}

	if _, err := c.FetchMember(ctx, partyB); !errors.Is(err, relay.ErrNotFound) {
		t.Fatalf("unknown member: err = %v, want ErrNotFound", err)
	}
}

func TestRelay_RejectsInvalidKey(t *testing.T) {
	c := newRelay(t)
	rec := domaintypes.MemberRecord{
		Identity:  partyA,
		PublicKey: domaintypes.PublicKey{Algorithm: domaintypes.SignatureEd25519, Raw: make([]byte, 32)},
	}
	if err := c.RegisterMember(context.Background(), rec); err == nil {
		t.Fatalf("relay accepted a small-order identity key")
	}
}

func TestRelay_Mailbox(t *testing.T) {
	c := newRelay(t)
	ctx := context.Background()
	if err := c.RegisterMember(ctx, member(t, partyB)); err != nil {
		t.Fatalf("RegisterMember: %v", err)
	}

	for _, p := range []string{"one", "two", "three"} {
		env := domaintypes.Envelope{From: partyA, To: partyB, Payload: []byte(p)}
		if err := c.SendEnvelope(ctx, env); err != nil {
			t.Fatalf("SendEnvelope: %v", err)
		}
	}

	envs, err := c.FetchEnvelopes(ctx, partyB, 2)
	if err != nil {
		t.Fatalf("FetchEnvelopes: %v", err)
	}
	if len(envs) != 2 || string(envs[0].Payload) != "one" || string(envs[1].Payload) != "two" {
		t.Fatalf("fetched %+v", envs)
	}
	if envs[0].From != partyA || envs[0].Timestamp == 0 {
		t.Fatalf("envelope metadata %+v", envs[0])
	}

	if err := c.AckEnvelopes(ctx, partyB, 2); err != nil {
		t.Fatalf("AckEnvelopes: %v", err)
	}
	envs, err = c.FetchEnvelopes(ctx, partyB, 0)
	if err != nil {
		t.Fatalf("FetchEnvelopes: %v", err)
	}
	if len(envs) != 1 || string(envs[0].Payload) != "three" {
		t.Fatalf("after ack fetched %+v", envs)
	}

	if err := c.AckEnvelopes(ctx, partyB, 10); err != nil {
		t.Fatalf("AckEnvelopes: %v", err)
	}
	if envs, _ := c.FetchEnvelopes(ctx, partyB, 0); len(envs) != 0 {
		t.Fatalf("mailbox not cleared: %+v", envs)
	}
}

func TestRelay_MailboxForUnknownMember(t *testing.T) {
	c := newRelay(t)
	env := domaintypes.Envelope{From: partyA, To: partyB, Payload: []byte("x")}
	if err := c.SendEnvelope(context.Background(), env); !errors.Is(err, relay.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
