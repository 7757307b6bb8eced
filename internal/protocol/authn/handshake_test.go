package authn_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	domaintypes "ledgerlink/internal/domain/types"
	"ledgerlink/internal/protocol/authn"
)

func TestHandshake_BothSidesAgree(t *testing.T) {
	for _, scheme := range []domaintypes.Scheme{domaintypes.SchemeX25519, domaintypes.SchemeP256, domaintypes.SchemeP384} {
		for _, alg := range []domaintypes.SignatureAlgorithm{domaintypes.SignatureEd25519, domaintypes.SignatureECDSAP256SHA256} {
			o := defaultOptions()
			o.scheme, o.alg = scheme, alg
			p := newPair(t, o)
			p.run(t)

			si, sr := p.sessions(t)
			if !bytes.Equal(si.SessionKey(), sr.SessionKey()) {
				t.Fatalf("%v/%v: session keys differ", scheme, alg)
			}
			if !bytes.Equal(si.TranscriptHash(), sr.TranscriptHash()) {
				t.Fatalf("%v/%v: transcript hashes differ", scheme, alg)
			}
			if p.ini.State() != authn.InitiatorSessionReady || p.resp.State() != authn.ResponderSentHandshake {
				t.Fatalf("%v/%v: states %v / %v", scheme, alg, p.ini.State(), p.resp.State())
			}
			if si.Mode() != domaintypes.ModeAuthenticatedEncryption {
				t.Fatalf("want responder's preferred mode, got %v", si.Mode())
			}
			if si.Peer() != partyB || sr.Peer() != partyA {
				t.Fatalf("peers: %v / %v", si.Peer(), sr.Peer())
			}
		}
	}
}

func TestHandshake_MaxMessageSizeIsMinimum(t *testing.T) {
	o := defaultOptions()
	o.initiatorMax, o.responderMax = 4096, 1024
	p := newPair(t, o)
	p.run(t)
	si, sr := p.sessions(t)
	if si.MaxMessageSize() != 1024 || sr.MaxMessageSize() != 1024 {
		t.Fatalf("max sizes %d / %d, want 1024", si.MaxMessageSize(), sr.MaxMessageSize())
	}
}

func TestHandshake_IdempotentRedelivery(t *testing.T) {
	p := newPair(t, defaultOptions())
	msgs := p.run(t)
	hello, rh, ih, rhs := msgs[0], msgs[1], msgs[2], msgs[3]
	si, sr := p.sessions(t)
	keyBefore := si.SessionKey()

	// Responder: every accepted message maps to its original reply.
	for _, tc := range []struct {
		in   domaintypes.SessionMessage
		want domaintypes.SessionMessage
	}{{hello, rh}, {ih, rhs}} {
		got, err := p.resp.ProcessMessage(context.Background(), tc.in)
		if err != nil {
			t.Fatalf("redeliver %v: %v", tc.in.Kind(), err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("redeliver %v: reply changed", tc.in.Kind())
		}
	}

	// Initiator: the ResponderHello replays the same handshake; the
	// ResponderHandshake produces nothing.
	got, err := p.ini.ProcessMessage(rh)
	if err != nil {
		t.Fatalf("redeliver ResponderHello: %v", err)
	}
	if !reflect.DeepEqual(got, ih) {
		t.Fatal("redelivered ResponderHello produced a different handshake")
	}
	got, err = p.ini.ProcessMessage(rhs)
	if err != nil || got != nil {
		t.Fatalf("redeliver ResponderHandshake: %v, %v", got, err)
	}

	si2, _ := p.ini.Session()
	sr2, _ := p.resp.Session()
	if si2 != si || sr2 != sr || !bytes.Equal(si2.SessionKey(), keyBefore) {
		t.Fatal("redelivery re-derived the session")
	}
}

func TestHandshake_OutOfOrderIsFatal(t *testing.T) {
	p := newPair(t, defaultOptions())
	if _, err := p.ini.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rhs := &domaintypes.ResponderHandshake{
		Header:    domaintypes.Header{SessionID: "session-1", ProtocolVersion: domaintypes.ProtocolVersion},
		Signature: []byte{1},
		Finished:  []byte{2},
	}
	_, err := p.ini.ProcessMessage(rhs)
	if !errors.Is(err, authn.ErrUnexpectedMessageType) {
		t.Fatalf("want ErrUnexpectedMessageType, got %v", err)
	}
	if !authn.IsFatal(err) || p.ini.State() != authn.InitiatorFailed {
		t.Fatalf("negotiation not failed: %v", p.ini.State())
	}
	if _, ok := p.ini.Session(); ok {
		t.Fatal("failed negotiation produced a session")
	}
}

func TestHandshake_StrayMessageAfterCompletionKeepsSession(t *testing.T) {
	p := newPair(t, defaultOptions())
	msgs := p.run(t)
	si, sr := p.sessions(t)
	keyBefore := si.SessionKey()

	rh := *msgs[1].(*domaintypes.ResponderHello)
	rh.EphemeralPublicKey = append([]byte(nil), rh.EphemeralPublicKey...)
	rh.EphemeralPublicKey[0] ^= 1
	if _, err := p.ini.ProcessMessage(&rh); !errors.Is(err, authn.ErrUnexpectedMessageType) {
		t.Fatalf("initiator: want ErrUnexpectedMessageType, got %v", err)
	}
	if p.ini.State() != authn.InitiatorSessionReady {
		t.Fatalf("initiator state %v", p.ini.State())
	}

	hello := *msgs[0].(*domaintypes.InitiatorHello)
	hello.MaxMessageSize++
	if _, err := p.resp.ProcessMessage(context.Background(), &hello); !errors.Is(err, authn.ErrUnexpectedMessageType) {
		t.Fatalf("responder: want ErrUnexpectedMessageType, got %v", err)
	}
	if p.resp.State() != authn.ResponderSentHandshake {
		t.Fatalf("responder state %v", p.resp.State())
	}

	// Exact redelivery is still answered.
	if got, err := p.resp.ProcessMessage(context.Background(), msgs[2]); err != nil || !reflect.DeepEqual(got, msgs[3]) {
		t.Fatalf("redeliver InitiatorHandshake: %v, %v", got, err)
	}

	si2, _ := p.ini.Session()
	sr2, _ := p.resp.Session()
	if si2 != si || sr2 != sr || !bytes.Equal(si2.SessionKey(), keyBefore) {
		t.Fatal("stray message changed the session")
	}
	msg, err := si.Seal([]byte("still up"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if got, err := sr.Open(msg); err != nil || string(got) != "still up" {
		t.Fatalf("Open: %q, %v", got, err)
	}
}

func TestHandshake_ResponderRejectsHandshakeBeforeHello(t *testing.T) {
	p := newPair(t, defaultOptions())
	ih := &domaintypes.InitiatorHandshake{
		Header:   domaintypes.Header{SessionID: "session-1", ProtocolVersion: domaintypes.ProtocolVersion},
		Identity: partyA,
	}
	if _, err := p.resp.ProcessMessage(context.Background(), ih); !errors.Is(err, authn.ErrUnexpectedMessageType) {
		t.Fatalf("want ErrUnexpectedMessageType, got %v", err)
	}
}

func TestHandshake_NoCommonMode(t *testing.T) {
	o := defaultOptions()
	o.initiatorModes = []domaintypes.Mode{domaintypes.ModeAuthenticationOnly}
	o.responderModes = []domaintypes.Mode{domaintypes.ModeAuthenticatedEncryption}
	p := newPair(t, o)

	hello, err := p.ini.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	reply, err := p.resp.ProcessMessage(context.Background(), hello)
	if !errors.Is(err, authn.ErrNoCommonMode) {
		t.Fatalf("want ErrNoCommonMode, got %v", err)
	}
	if reply != nil {
		t.Fatalf("responder emitted %v", reply.Kind())
	}
	if p.resp.State() != authn.ResponderFailed {
		t.Fatalf("responder state %v", p.resp.State())
	}
}

func TestHandshake_VersionMismatch(t *testing.T) {
	p := newPair(t, defaultOptions())
	hello, err := p.ini.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	hello.Header.ProtocolVersion = 2
	if _, err := p.resp.ProcessMessage(context.Background(), hello); !errors.Is(err, authn.ErrProtocolVersionMismatch) {
		t.Fatalf("want ErrProtocolVersionMismatch, got %v", err)
	}
}

func TestHandshake_UnknownInitiatorIsFatal(t *testing.T) {
	p := newPair(t, defaultOptions())
	delete(p.dir, partyA)

	ctx := context.Background()
	hello, _ := p.ini.Start()
	rh, err := p.resp.ProcessMessage(ctx, hello)
	if err != nil {
		t.Fatalf("hello: %v", err)
	}
	ih, err := p.ini.ProcessMessage(rh)
	if err != nil {
		t.Fatalf("ResponderHello: %v", err)
	}
	_, err = p.resp.ProcessMessage(ctx, ih)
	if !errors.Is(err, authn.ErrUnknownPeer) || !authn.IsFatal(err) {
		t.Fatalf("want fatal ErrUnknownPeer, got %v", err)
	}
}

func TestHandshake_WrongInitiatorKey(t *testing.T) {
	p := newPair(t, defaultOptions())
	impostor := newParty(t, partyA, domaintypes.SignatureEd25519)
	p.dir[partyA] = impostor.key

	ctx := context.Background()
	hello, _ := p.ini.Start()
	rh, _ := p.resp.ProcessMessage(ctx, hello)
	ih, err := p.ini.ProcessMessage(rh)
	if err != nil {
		t.Fatalf("ResponderHello: %v", err)
	}
	if _, err := p.resp.ProcessMessage(ctx, ih); !errors.Is(err, authn.ErrSignatureVerificationFailed) {
		t.Fatalf("want ErrSignatureVerificationFailed, got %v", err)
	}
}

func TestHandshake_TamperedResponderSignature(t *testing.T) {
	p := newPair(t, defaultOptions())
	ctx := context.Background()
	hello, _ := p.ini.Start()
	rh, _ := p.resp.ProcessMessage(ctx, hello)
	ih, _ := p.ini.ProcessMessage(rh)
	reply, err := p.resp.ProcessMessage(ctx, ih)
	if err != nil {
		t.Fatalf("InitiatorHandshake: %v", err)
	}
	rhs := *reply.(*domaintypes.ResponderHandshake)
	rhs.Signature = append([]byte(nil), rhs.Signature...)
	rhs.Signature[0] ^= 0xff

	if _, err := p.ini.ProcessMessage(&rhs); !errors.Is(err, authn.ErrSignatureVerificationFailed) {
		t.Fatalf("want ErrSignatureVerificationFailed, got %v", err)
	}
	if _, ok := p.ini.Session(); ok {
		t.Fatal("session established despite bad signature")
	}
}

func TestNewInitiator_RejectsInvalidPeerKey(t *testing.T) {
	a := newParty(t, partyA, domaintypes.SignatureEd25519)
	_, err := authn.NewInitiator(authn.InitiatorParams{
		SessionID: "s",
		Local:     partyA,
		Peer:      partyB,
		PeerKey:   domaintypes.PublicKey{Algorithm: domaintypes.SignatureECDSAP256SHA256, Raw: []byte{0x00}},
		Crypto:    a.provider,
		Config:    authn.Config{Scheme: domaintypes.SchemeP256, SupportedModes: bothModes},
	})
	if !errors.Is(err, authn.ErrInvalidCurvePoint) {
		t.Fatalf("want ErrInvalidCurvePoint, got %v", err)
	}
}

func TestNewInitiator_GroupMismatch(t *testing.T) {
	a := newParty(t, partyA, domaintypes.SignatureEd25519)
	b := newParty(t, partyB, domaintypes.SignatureEd25519)
	other := partyB
	other.GroupID = "group-2"
	_, err := authn.NewInitiator(authn.InitiatorParams{
		SessionID: "s",
		Local:     partyA,
		Peer:      other,
		PeerKey:   b.key,
		Crypto:    a.provider,
		Config:    authn.Config{Scheme: domaintypes.SchemeX25519, SupportedModes: bothModes},
	})
	if !errors.Is(err, authn.ErrIdentityMismatch) {
		t.Fatalf("want ErrIdentityMismatch, got %v", err)
	}
}
