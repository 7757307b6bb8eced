package authn

import (
	"crypto/hmac"
	"errors"
	"fmt"

	"ledgerlink/internal/crypto"
	"ledgerlink/internal/domain"
	domaintypes "ledgerlink/internal/domain/types"
)

// InitiatorState is the progress of an Initiator.
type InitiatorState uint8

const (
	InitiatorInit InitiatorState = iota
	InitiatorSentHello
	InitiatorSentHandshake
	InitiatorSessionReady
	InitiatorFailed
)

func (s InitiatorState) String() string {
	switch s {
	case InitiatorInit:
		return "Init"
	case InitiatorSentHello:
		return "SentHello"
	case InitiatorSentHandshake:
		return "SentHandshake"
	case InitiatorSessionReady:
		return "SessionReady"
	case InitiatorFailed:
		return "Failed"
	default:
		return fmt.Sprintf("InitiatorState(%d)", uint8(s))
	}
}

// InitiatorParams configures an Initiator. PeerKey must already be resolved.
type InitiatorParams struct {
	SessionID domaintypes.SessionID
	Local     domaintypes.HoldingIdentity
	Peer      domaintypes.HoldingIdentity
	PeerKey   domaintypes.PublicKey
	Crypto    domain.CryptoProvider
	Config    Config
}

// Initiator drives the initiating side of one negotiation.
type Initiator struct {
	p        InitiatorParams
	localKey domaintypes.PublicKey
	state    InitiatorState
	err      error

	tr       transcript
	eph      domaintypes.EphemeralKeyPair
	secret   []byte
	finished finishedKeys
	mode     domaintypes.Mode
	maxSize  uint32
	accepted accepted
	session  *Session
}

// NewInitiator validates p and checks the peer's identity key.
func NewInitiator(p InitiatorParams) (*Initiator, error) {
	if p.SessionID == "" {
		return nil, errors.New("authn: empty session id")
	}
	if p.Crypto == nil {
		return nil, errors.New("authn: nil crypto provider")
	}
	if err := p.Local.Validate(); err != nil {
		return nil, err
	}
	if err := p.Peer.Validate(); err != nil {
		return nil, err
	}
	if p.Local.GroupID != p.Peer.GroupID {
		return nil, fmt.Errorf("%w: %s and %s are in different groups", ErrIdentityMismatch, p.Local, p.Peer)
	}
	if !p.Config.Scheme.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedScheme, p.Config.Scheme)
	}
	if len(p.Config.SupportedModes) == 0 {
		return nil, fmt.Errorf("%w: no modes configured", ErrNoCommonMode)
	}
	if err := ValidateIdentityKey(p.PeerKey); err != nil {
		return nil, err
	}
	localKey, err := p.Crypto.IdentityKey(p.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: local identity %s: %v", ErrUnknownPeer, p.Local, err)
	}
	return &Initiator{
		p:        p,
		localKey: localKey,
		tr:       newTranscript(),
		accepted: newAccepted(),
	}, nil
}

func (i *Initiator) State() InitiatorState { return i.state }

// Err returns the error that failed the negotiation, if any.
func (i *Initiator) Err() error { return i.err }

// Session returns the established session once the state is SessionReady.
func (i *Initiator) Session() (*Session, bool) { return i.session, i.session != nil }

// Start generates the ephemeral key and returns the InitiatorHello.
func (i *Initiator) Start() (*domaintypes.InitiatorHello, error) {
	if i.state != InitiatorInit {
		return nil, fmt.Errorf("%w: start in state %v", ErrUnexpectedMessageType, i.state)
	}
	eph, err := i.p.Crypto.GenerateEphemeralKeyPair(i.p.Config.Scheme)
	if err != nil {
		return nil, i.fail(fmt.Errorf("%w: %v", ErrUnsupportedScheme, err))
	}
	i.eph = eph

	hello := &domaintypes.InitiatorHello{
		Header:             domaintypes.Header{SessionID: i.p.SessionID, ProtocolVersion: domaintypes.ProtocolVersion},
		Source:             i.p.Local,
		Destination:        i.p.Peer,
		Scheme:             i.p.Config.Scheme,
		EphemeralPublicKey: append([]byte(nil), eph.Public...),
		SupportedModes:     append([]domaintypes.Mode(nil), i.p.Config.SupportedModes...),
		MaxMessageSize:     i.p.Config.MaxMessageSize,
	}
	if err := i.tr.add(hello); err != nil {
		return nil, i.fail(err)
	}
	i.state = InitiatorSentHello
	return hello, nil
}

// ProcessMessage advances the negotiation with a message from the responder
// and returns the reply to send, if any.
//
// Redelivery of an already accepted message returns the reply produced the
// first time. Any other message out of protocol order fails the negotiation
// with ErrUnexpectedMessageType. Once the session is ready such messages are
// rejected with the same error but leave the state and the session intact.
func (i *Initiator) ProcessMessage(msg domaintypes.SessionMessage) (domaintypes.SessionMessage, error) {
	if i.state == InitiatorFailed {
		return nil, i.err
	}
	enc, err := encode(msg)
	if err != nil {
		return nil, i.fail(err)
	}
	if reply, ok := i.accepted.duplicate(msg.Kind(), enc); ok {
		return reply, nil
	}
	if err := checkHeader(msg.SessionHeader(), i.p.SessionID); err != nil {
		return nil, i.fail(err)
	}

	var reply domaintypes.SessionMessage
	switch m := msg.(type) {
	case *domaintypes.ResponderHello:
		if i.state != InitiatorSentHello {
			return nil, i.fail(i.unexpected(msg))
		}
		reply, err = i.onResponderHello(m, enc)
	case *domaintypes.ResponderHandshake:
		if i.state != InitiatorSentHandshake {
			return nil, i.fail(i.unexpected(msg))
		}
		err = i.onResponderHandshake(m, enc)
	default:
		return nil, i.fail(i.unexpected(msg))
	}
	if err != nil {
		return nil, i.fail(err)
	}
	i.accepted.record(msg.Kind(), enc, reply)
	return reply, nil
}

func (i *Initiator) onResponderHello(m *domaintypes.ResponderHello, enc []byte) (domaintypes.SessionMessage, error) {
	if !containsMode(i.p.Config.SupportedModes, m.SelectedMode) {
		return nil, fmt.Errorf("%w: responder selected %v", ErrNoCommonMode, m.SelectedMode)
	}
	if err := ValidateEphemeralKey(i.p.Config.Scheme, m.EphemeralPublicKey); err != nil {
		return nil, err
	}
	secret, err := i.p.Crypto.DeriveSharedSecret(i.p.Config.Scheme, i.eph.Private, m.EphemeralPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCurvePoint, err)
	}
	crypto.Wipe(i.eph.Private)
	i.secret = secret
	i.mode = m.SelectedMode

	// 1) Fold the responder hello in and derive the finished keys.
	i.tr.addEncoded(enc)
	t2 := i.tr.sum()
	i.finished = deriveFinishedKeys(secret, t2)

	// 2) Sign the transcript with our identity and key reference.
	id, err := identityBytes(i.p.Local)
	if err != nil {
		return nil, err
	}
	keyHash := crypto.KeyHash(i.localKey)
	sig, err := i.p.Crypto.Sign(i.p.Local, initiatorSignedData(t2, id, keyHash))
	if err != nil {
		return nil, fmt.Errorf("%w: signing as %s: %v", ErrUnknownPeer, i.p.Local, err)
	}

	// 3) Emit the handshake and fold it in as T3.
	hs := &domaintypes.InitiatorHandshake{
		Header:    domaintypes.Header{SessionID: i.p.SessionID, ProtocolVersion: domaintypes.ProtocolVersion},
		Identity:  i.p.Local,
		KeyHash:   keyHash,
		Signature: sig,
		Finished:  finishedMAC(i.finished.initiator, t2, sig),
	}
	if err := i.tr.add(hs); err != nil {
		return nil, err
	}
	i.state = InitiatorSentHandshake
	return hs, nil
}

func (i *Initiator) onResponderHandshake(m *domaintypes.ResponderHandshake, enc []byte) error {
	t3 := i.tr.sum()
	if !i.p.Crypto.Verify(m.Signature, responderSignedData(t3), i.p.PeerKey) {
		return fmt.Errorf("%w: responder %s", ErrSignatureVerificationFailed, i.p.Peer)
	}
	if !hmac.Equal(m.Finished, finishedMAC(i.finished.responder, t3, m.Signature)) {
		return fmt.Errorf("%w: responder finished MAC", ErrSignatureVerificationFailed)
	}

	i.tr.addEncoded(enc)
	t4 := i.tr.sum()
	key := deriveSessionKey(i.secret, t4)
	defer crypto.Wipe(key)
	i.maxSize = negotiateSize(i.p.Config.MaxMessageSize, m.MaxMessageSize)

	s, err := RestoreSession(domaintypes.SessionKeyRecord{
		SessionID:      i.p.SessionID,
		Role:           domaintypes.RoleInitiator,
		Mode:           i.mode,
		Local:          i.p.Local,
		Peer:           i.p.Peer,
		SessionKey:     key,
		TranscriptHash: t4,
		MaxMessageSize: i.maxSize,
	})
	if err != nil {
		return err
	}
	i.session = s
	i.state = InitiatorSessionReady
	i.wipe()
	return nil
}

func (i *Initiator) unexpected(msg domaintypes.SessionMessage) error {
	return fmt.Errorf("%w: %v in state %v", ErrUnexpectedMessageType, msg.Kind(), i.state)
}

// fail ends the negotiation with err. A ready session's key is fixed until
// expiry, so after SessionReady err is only reported.
func (i *Initiator) fail(err error) error {
	if i.state == InitiatorSessionReady {
		return err
	}
	i.state = InitiatorFailed
	i.err = err
	i.wipe()
	return err
}

// Destroy wipes the negotiation's key material. It does not touch a session
// already handed out by Session.
func (i *Initiator) Destroy() {
	i.wipe()
	if i.state != InitiatorSessionReady {
		i.state = InitiatorFailed
		if i.err == nil {
			i.err = errors.New("authn: negotiation destroyed")
		}
	}
}

func (i *Initiator) wipe() {
	crypto.WipeAll(i.eph.Private, i.secret)
	i.eph.Private, i.secret = nil, nil
	i.finished.wipe()
}
