package authn_test

import (
	"bytes"
	"errors"
	"testing"

	domaintypes "ledgerlink/internal/domain/types"
	"ledgerlink/internal/protocol/authn"
)

func establish(t *testing.T, mode domaintypes.Mode) (*authn.Session, *authn.Session) {
	t.Helper()
	o := defaultOptions()
	o.initiatorModes = []domaintypes.Mode{mode}
	o.initiatorMax, o.responderMax = 64, 64
	p := newPair(t, o)
	p.run(t)
	return p.sessions(t)
}

func TestSession_SealOpenBothModes(t *testing.T) {
	for _, mode := range bothModes {
		si, sr := establish(t, mode)
		msg, err := si.Seal([]byte("Hello from PartyA"))
		if err != nil {
			t.Fatalf("%v Seal: %v", mode, err)
		}
		if mode == domaintypes.ModeAuthenticatedEncryption && bytes.Contains(msg.Payload, []byte("PartyA")) {
			t.Fatal("payload not encrypted")
		}
		got, err := sr.Open(msg)
		if err != nil {
			t.Fatalf("%v Open: %v", mode, err)
		}
		if string(got) != "Hello from PartyA" {
			t.Fatalf("%v: got %q", mode, got)
		}

		back, err := sr.Seal([]byte("ack"))
		if err != nil {
			t.Fatalf("%v responder Seal: %v", mode, err)
		}
		if got, err := si.Open(back); err != nil || string(got) != "ack" {
			t.Fatalf("%v: reverse direction %q, %v", mode, got, err)
		}
	}
}

func TestSession_EmptyPayload(t *testing.T) {
	si, sr := establish(t, domaintypes.ModeAuthenticatedEncryption)
	msg, err := si.Seal(nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := sr.Open(msg)
	if err != nil || len(got) != 0 {
		t.Fatalf("Open empty: %q, %v", got, err)
	}
}

func TestSession_RejectsReplay(t *testing.T) {
	si, sr := establish(t, domaintypes.ModeAuthenticatedEncryption)
	msg, _ := si.Seal([]byte("once"))
	if _, err := sr.Open(msg); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := sr.Open(msg); !errors.Is(err, authn.ErrReplay) {
		t.Fatalf("want ErrReplay, got %v", err)
	}
}

func TestSession_AuthenticationOnlyDetectsTampering(t *testing.T) {
	si, sr := establish(t, domaintypes.ModeAuthenticationOnly)
	msg, _ := si.Seal([]byte("pay 10"))
	if string(msg.Payload) != "pay 10" {
		t.Fatalf("authentication-only payload should be plaintext, got %q", msg.Payload)
	}
	msg.Payload = []byte("pay 99")
	if _, err := sr.Open(msg); !errors.Is(err, authn.ErrAuthenticationFailed) {
		t.Fatalf("want ErrAuthenticationFailed, got %v", err)
	}
}

func TestSession_PayloadTooLarge(t *testing.T) {
	si, _ := establish(t, domaintypes.ModeAuthenticatedEncryption)
	if _, err := si.Seal(make([]byte, 65)); !errors.Is(err, authn.ErrPayloadTooLarge) {
		t.Fatalf("want ErrPayloadTooLarge, got %v", err)
	}
}

func TestSession_RestoredEpochIsAccepted(t *testing.T) {
	si, sr := establish(t, domaintypes.ModeAuthenticatedEncryption)
	old, _ := si.Seal([]byte("before restart"))
	if _, err := sr.Open(old); err != nil {
		t.Fatalf("Open: %v", err)
	}

	rec := si.Record()
	rec.Epoch++
	restored, err := authn.RestoreSession(rec)
	if err != nil {
		t.Fatalf("RestoreSession: %v", err)
	}
	si.Destroy()

	msg, err := restored.Seal([]byte("after restart"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if msg.Epoch != 1 || msg.Sequence != 0 {
		t.Fatalf("epoch/seq %d/%d, want 1/0", msg.Epoch, msg.Sequence)
	}
	got, err := sr.Open(msg)
	if err != nil || string(got) != "after restart" {
		t.Fatalf("Open after restore: %q, %v", got, err)
	}

	// Messages from the previous epoch are now stale.
	if _, err := sr.Open(old); !errors.Is(err, authn.ErrReplay) {
		t.Fatalf("want ErrReplay for old epoch, got %v", err)
	}
}

func TestSession_RestoredReceiverRefusesAcceptedSequences(t *testing.T) {
	si, sr := establish(t, domaintypes.ModeAuthenticatedEncryption)
	first, _ := si.Seal([]byte("pay 100"))
	skipped, _ := si.Seal([]byte("late"))
	third, _ := si.Seal([]byte("pay 200"))
	for _, m := range []*domaintypes.DataMessage{first, third} {
		if _, err := sr.Open(m); err != nil {
			t.Fatalf("Open seq %d: %v", m.Sequence, err)
		}
	}

	rec := sr.Record()
	if rec.RecvEpoch != 0 || rec.RecvNext != 3 {
		t.Fatalf("receive mark %d/%d, want 0/3", rec.RecvEpoch, rec.RecvNext)
	}
	rec.Epoch++
	restored, err := authn.RestoreSession(rec)
	if err != nil {
		t.Fatalf("RestoreSession: %v", err)
	}
	sr.Destroy()

	for _, m := range []*domaintypes.DataMessage{first, skipped, third} {
		if _, err := restored.Open(m); !errors.Is(err, authn.ErrReplay) {
			t.Fatalf("seq %d after restore: want ErrReplay, got %v", m.Sequence, err)
		}
	}
	next, _ := si.Seal([]byte("pay 300"))
	if got, err := restored.Open(next); err != nil || string(got) != "pay 300" {
		t.Fatalf("fresh message after restore: %q, %v", got, err)
	}
	if restored.Record().RecvNext != 4 {
		t.Fatalf("receive mark not advanced")
	}
}

func TestSession_DestroyClosesSession(t *testing.T) {
	si, _ := establish(t, domaintypes.ModeAuthenticatedEncryption)
	si.Destroy()
	if _, err := si.Seal([]byte("x")); !errors.Is(err, authn.ErrSessionClosed) {
		t.Fatalf("want ErrSessionClosed, got %v", err)
	}
}

func TestIsFatal(t *testing.T) {
	if !authn.IsFatal(authn.ErrNoCommonMode) || authn.IsFatal(authn.ErrReplay) {
		t.Fatal("IsFatal classification wrong")
	}
	if authn.Reason(authn.ErrInvalidCurvePoint) != "invalid_curve_point" {
		t.Fatalf("Reason: %q", authn.Reason(authn.ErrInvalidCurvePoint))
	}
}
