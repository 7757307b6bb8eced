package authn_test

import (
	"context"
	"errors"
	"testing"

	"ledgerlink/internal/crypto"
	domaintypes "ledgerlink/internal/domain/types"
	"ledgerlink/internal/protocol/authn"
)

func x25519Point(u byte) []byte {
	b := make([]byte, 32)
	b[0] = u
	return b
}

func TestValidateEphemeralKey(t *testing.T) {
	validX, err := crypto.GenerateEphemeral(domaintypes.SchemeX25519)
	if err != nil {
		t.Fatalf("GenerateEphemeral: %v", err)
	}
	validP, err := crypto.GenerateEphemeral(domaintypes.SchemeP256)
	if err != nil {
		t.Fatalf("GenerateEphemeral: %v", err)
	}
	offCurve := append([]byte(nil), validP.Public...)
	offCurve[len(offCurve)-1] ^= 0x01
	compressed := append([]byte{0x02}, validP.Public[1:33]...)

	// p = 2^255 - 19 encoded little-endian is a non-canonical zero.
	nonCanonical := make([]byte, 32)
	for i := range nonCanonical {
		nonCanonical[i] = 0xff
	}
	nonCanonical[0], nonCanonical[31] = 0xed, 0x7f

	cases := []struct {
		name   string
		scheme domaintypes.Scheme
		raw    []byte
		ok     bool
	}{
		{"x25519 valid", domaintypes.SchemeX25519, validX.Public, true},
		{"x25519 base point", domaintypes.SchemeX25519, x25519Point(9), true},
		{"x25519 zero", domaintypes.SchemeX25519, x25519Point(0), false},
		{"x25519 on twist", domaintypes.SchemeX25519, x25519Point(2), false},
		{"x25519 non-canonical", domaintypes.SchemeX25519, nonCanonical, false},
		{"x25519 short", domaintypes.SchemeX25519, []byte{9}, false},
		{"p256 valid", domaintypes.SchemeP256, validP.Public, true},
		{"p256 infinity", domaintypes.SchemeP256, []byte{0x00}, false},
		{"p256 off curve", domaintypes.SchemeP256, offCurve, false},
		{"p256 compressed", domaintypes.SchemeP256, compressed, false},
		{"p384 given p256 point", domaintypes.SchemeP384, validP.Public, false},
	}
	for _, tc := range cases {
		err := authn.ValidateEphemeralKey(tc.scheme, tc.raw)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, authn.ErrInvalidCurvePoint) {
			t.Fatalf("%s: want ErrInvalidCurvePoint, got %v", tc.name, err)
		}
	}
}

func TestValidateIdentityKey(t *testing.T) {
	pub, _, err := crypto.GenerateSigningKey(domaintypes.SignatureEd25519)
	if err != nil {
		t.Fatalf("GenerateSigningKey: %v", err)
	}
	if err := authn.ValidateIdentityKey(domaintypes.PublicKey{Algorithm: domaintypes.SignatureEd25519, Raw: pub}); err != nil {
		t.Fatalf("valid ed25519 key rejected: %v", err)
	}

	identity := make([]byte, 32)
	identity[0] = 0x01
	err = authn.ValidateIdentityKey(domaintypes.PublicKey{Algorithm: domaintypes.SignatureEd25519, Raw: identity})
	if !errors.Is(err, authn.ErrInvalidCurvePoint) {
		t.Fatalf("identity point: want ErrInvalidCurvePoint, got %v", err)
	}

	err = authn.ValidateIdentityKey(domaintypes.PublicKey{Algorithm: domaintypes.SignatureECDSAP256SHA256, Raw: []byte{0x00}})
	if !errors.Is(err, authn.ErrInvalidCurvePoint) {
		t.Fatalf("ecdsa infinity: want ErrInvalidCurvePoint, got %v", err)
	}
}

func TestHandshake_InitiatorRejectsBadResponderPoint(t *testing.T) {
	o := defaultOptions()
	o.scheme = domaintypes.SchemeP256
	p := newPair(t, o)
	if _, err := p.ini.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rh := &domaintypes.ResponderHello{
		Header:             domaintypes.Header{SessionID: "session-1", ProtocolVersion: domaintypes.ProtocolVersion},
		EphemeralPublicKey: []byte{0x00},
		SelectedMode:       domaintypes.ModeAuthenticatedEncryption,
	}
	_, err := p.ini.ProcessMessage(rh)
	if !errors.Is(err, authn.ErrInvalidCurvePoint) {
		t.Fatalf("want ErrInvalidCurvePoint, got %v", err)
	}
	if p.ini.State() != authn.InitiatorFailed {
		t.Fatalf("state %v, want Failed", p.ini.State())
	}
}

func TestHandshake_ResponderRejectsBadInitiatorPoint(t *testing.T) {
	p := newPair(t, defaultOptions())
	hello, err := p.ini.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	hello.EphemeralPublicKey = x25519Point(2)
	reply, err := p.resp.ProcessMessage(context.Background(), hello)
	if !errors.Is(err, authn.ErrInvalidCurvePoint) {
		t.Fatalf("want ErrInvalidCurvePoint, got %v", err)
	}
	if reply != nil {
		t.Fatal("responder replied to an invalid point")
	}
	if _, ok := p.resp.Session(); ok {
		t.Fatal("responder established a session")
	}
}
