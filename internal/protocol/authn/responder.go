package authn

import (
	"context"
	"crypto/hmac"
	"errors"
	"fmt"

	"ledgerlink/internal/crypto"
	"ledgerlink/internal/domain"
	domaintypes "ledgerlink/internal/domain/types"
)

// ResponderState is the progress of a Responder. ReceivedHello and
// ReceivedHandshake are only observable while a message is being processed.
type ResponderState uint8

const (
	ResponderInit ResponderState = iota
	ResponderReceivedHello
	ResponderSentHello
	ResponderReceivedHandshake
	ResponderSentHandshake
	ResponderFailed
)

func (s ResponderState) String() string {
	switch s {
	case ResponderInit:
		return "Init"
	case ResponderReceivedHello:
		return "ReceivedHello"
	case ResponderSentHello:
		return "SentHello"
	case ResponderReceivedHandshake:
		return "ReceivedHandshake"
	case ResponderSentHandshake:
		return "SentHandshake"
	case ResponderFailed:
		return "Failed"
	default:
		return fmt.Sprintf("ResponderState(%d)", uint8(s))
	}
}

// ResponderParams configures a Responder.
type ResponderParams struct {
	Local    domaintypes.HoldingIdentity
	Crypto   domain.CryptoProvider
	Resolver domain.IdentityResolver
	Config   Config
}

// Responder drives the responding side of one negotiation. The session id
// and peer are taken from the InitiatorHello.
type Responder struct {
	p     ResponderParams
	state ResponderState
	err   error

	id       domaintypes.SessionID
	peer     domaintypes.HoldingIdentity
	tr       transcript
	secret   []byte
	finished finishedKeys
	mode     domaintypes.Mode
	maxSize  uint32
	accepted accepted
	session  *Session
}

// NewResponder returns a responder waiting for an InitiatorHello.
func NewResponder(p ResponderParams) (*Responder, error) {
	if p.Crypto == nil || p.Resolver == nil {
		return nil, errors.New("authn: responder needs a crypto provider and a resolver")
	}
	if err := p.Local.Validate(); err != nil {
		return nil, err
	}
	return &Responder{p: p, tr: newTranscript(), accepted: newAccepted()}, nil
}

func (r *Responder) State() ResponderState { return r.state }

// Err returns the error that failed the negotiation, if any.
func (r *Responder) Err() error { return r.err }

// SessionID is the id adopted from the InitiatorHello.
func (r *Responder) SessionID() domaintypes.SessionID { return r.id }

// Peer is the initiator named by the InitiatorHello.
func (r *Responder) Peer() domaintypes.HoldingIdentity { return r.peer }

// Session returns the established session once the state is SentHandshake.
func (r *Responder) Session() (*Session, bool) { return r.session, r.session != nil }

// ProcessMessage advances the negotiation with a message from the initiator
// and returns the reply to send. Identity resolution for the initiator goes
// through the resolver under ctx.
//
// Redelivery of an already accepted message returns the reply produced the
// first time. Any other message out of protocol order fails the negotiation
// with ErrUnexpectedMessageType. Once the handshake has been sent such
// messages are rejected with the same error but leave the state and the
// session intact.
func (r *Responder) ProcessMessage(ctx context.Context, msg domaintypes.SessionMessage) (domaintypes.SessionMessage, error) {
	if r.state == ResponderFailed {
		return nil, r.err
	}
	enc, err := encode(msg)
	if err != nil {
		return nil, r.fail(err)
	}
	if reply, ok := r.accepted.duplicate(msg.Kind(), enc); ok {
		return reply, nil
	}

	var reply domaintypes.SessionMessage
	switch m := msg.(type) {
	case *domaintypes.InitiatorHello:
		if r.state != ResponderInit {
			return nil, r.fail(r.unexpected(msg))
		}
		reply, err = r.onInitiatorHello(m, enc)
	case *domaintypes.InitiatorHandshake:
		if r.state != ResponderSentHello {
			return nil, r.fail(r.unexpected(msg))
		}
		if err := checkHeader(m.Header, r.id); err != nil {
			return nil, r.fail(err)
		}
		reply, err = r.onInitiatorHandshake(ctx, m, enc)
	default:
		return nil, r.fail(r.unexpected(msg))
	}
	if err != nil {
		return nil, r.fail(err)
	}
	r.accepted.record(msg.Kind(), enc, reply)
	return reply, nil
}

func (r *Responder) onInitiatorHello(m *domaintypes.InitiatorHello, enc []byte) (domaintypes.SessionMessage, error) {
	r.state = ResponderReceivedHello
	if m.Header.SessionID == "" {
		return nil, fmt.Errorf("%w: hello without session id", ErrUnexpectedMessageType)
	}
	if err := checkHeader(m.Header, m.Header.SessionID); err != nil {
		return nil, err
	}
	if m.Destination != r.p.Local {
		return nil, fmt.Errorf("%w: hello addressed to %s", ErrIdentityMismatch, m.Destination)
	}
	if err := m.Source.Validate(); err != nil || m.Source.GroupID != r.p.Local.GroupID {
		return nil, fmt.Errorf("%w: source %s", ErrIdentityMismatch, m.Source)
	}
	if !m.Scheme.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedScheme, m.Scheme)
	}
	mode, ok := selectMode(r.p.Config.SupportedModes, m.SupportedModes)
	if !ok {
		return nil, fmt.Errorf("%w: offered %v", ErrNoCommonMode, m.SupportedModes)
	}
	if err := ValidateEphemeralKey(m.Scheme, m.EphemeralPublicKey); err != nil {
		return nil, err
	}

	// 1) Adopt the negotiation parameters and fold the hello in as T1.
	r.id, r.peer, r.mode = m.Header.SessionID, m.Source, mode
	r.maxSize = negotiateSize(r.p.Config.MaxMessageSize, m.MaxMessageSize)
	r.tr.addEncoded(enc)

	// 2) Agree on the ECDH secret with a fresh ephemeral key.
	eph, err := r.p.Crypto.GenerateEphemeralKeyPair(m.Scheme)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedScheme, err)
	}
	secret, err := r.p.Crypto.DeriveSharedSecret(m.Scheme, eph.Private, m.EphemeralPublicKey)
	crypto.Wipe(eph.Private)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCurvePoint, err)
	}
	r.secret = secret

	// 3) Reply and derive the finished keys over T2.
	rh := &domaintypes.ResponderHello{
		Header:             domaintypes.Header{SessionID: r.id, ProtocolVersion: domaintypes.ProtocolVersion},
		EphemeralPublicKey: eph.Public,
		SelectedMode:       mode,
	}
	if err := r.tr.add(rh); err != nil {
		return nil, err
	}
	r.finished = deriveFinishedKeys(secret, r.tr.sum())
	r.state = ResponderSentHello
	return rh, nil
}

func (r *Responder) onInitiatorHandshake(ctx context.Context, m *domaintypes.InitiatorHandshake, enc []byte) (domaintypes.SessionMessage, error) {
	r.state = ResponderReceivedHandshake
	if m.Identity != r.peer {
		return nil, fmt.Errorf("%w: handshake from %s, hello from %s", ErrIdentityMismatch, m.Identity, r.peer)
	}

	// 1) Resolve and check the initiator's identity key.
	key, err := r.p.Resolver.ResolvePublicKey(ctx, m.Identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownPeer, m.Identity, err)
	}
	if err := ValidateIdentityKey(key); err != nil {
		return nil, err
	}
	if !hmac.Equal(m.KeyHash, crypto.KeyHash(key)) {
		return nil, fmt.Errorf("%w: key hash does not match the key of %s", ErrSignatureVerificationFailed, m.Identity)
	}

	// 2) Verify signature and finished MAC over T2.
	t2 := r.tr.sum()
	id, err := identityBytes(m.Identity)
	if err != nil {
		return nil, err
	}
	if !r.p.Crypto.Verify(m.Signature, initiatorSignedData(t2, id, m.KeyHash), key) {
		return nil, fmt.Errorf("%w: initiator %s", ErrSignatureVerificationFailed, m.Identity)
	}
	if !hmac.Equal(m.Finished, finishedMAC(r.finished.initiator, t2, m.Signature)) {
		return nil, fmt.Errorf("%w: initiator finished MAC", ErrSignatureVerificationFailed)
	}

	// 3) Sign T3 and derive the session key over T4.
	r.tr.addEncoded(enc)
	t3 := r.tr.sum()
	sig, err := r.p.Crypto.Sign(r.p.Local, responderSignedData(t3))
	if err != nil {
		return nil, fmt.Errorf("%w: signing as %s: %v", ErrUnknownPeer, r.p.Local, err)
	}
	rhs := &domaintypes.ResponderHandshake{
		Header:         domaintypes.Header{SessionID: r.id, ProtocolVersion: domaintypes.ProtocolVersion},
		Signature:      sig,
		Finished:       finishedMAC(r.finished.responder, t3, sig),
		MaxMessageSize: r.p.Config.MaxMessageSize,
	}
	if err := r.tr.add(rhs); err != nil {
		return nil, err
	}
	t4 := r.tr.sum()
	sessionKey := deriveSessionKey(r.secret, t4)
	defer crypto.Wipe(sessionKey)

	s, err := RestoreSession(domaintypes.SessionKeyRecord{
		SessionID:      r.id,
		Role:           domaintypes.RoleResponder,
		Mode:           r.mode,
		Local:          r.p.Local,
		Peer:           r.peer,
		SessionKey:     sessionKey,
		TranscriptHash: t4,
		MaxMessageSize: r.maxSize,
	})
	if err != nil {
		return nil, err
	}
	r.session = s
	r.state = ResponderSentHandshake
	r.wipe()
	return rhs, nil
}

func (r *Responder) unexpected(msg domaintypes.SessionMessage) error {
	return fmt.Errorf("%w: %v in state %v", ErrUnexpectedMessageType, msg.Kind(), r.state)
}

// fail ends the negotiation with err. After SentHandshake the session key is
// fixed, so err is only reported.
func (r *Responder) fail(err error) error {
	if r.state == ResponderSentHandshake {
		return err
	}
	r.state = ResponderFailed
	r.err = err
	r.wipe()
	return err
}

// Destroy wipes the negotiation's key material. It does not touch a session
// already handed out by Session.
func (r *Responder) Destroy() {
	r.wipe()
	if r.state != ResponderSentHandshake {
		r.state = ResponderFailed
		if r.err == nil {
			r.err = errors.New("authn: negotiation destroyed")
		}
	}
}

func (r *Responder) wipe() {
	crypto.Wipe(r.secret)
	r.secret = nil
	r.finished.wipe()
}
