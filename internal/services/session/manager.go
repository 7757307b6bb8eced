package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"ledgerlink/internal/domain"
	domaintypes "ledgerlink/internal/domain/types"
	"ledgerlink/internal/metrics"
	"ledgerlink/internal/protocol/authn"
)

var (
	// ErrGroupMismatch is returned when the destination is in another group.
	ErrGroupMismatch = errors.New("session: destination is not in the local group")
	// ErrUnknownSession rejects a message for a session id the manager does
	// not hold. No state changes.
	ErrUnknownSession = errors.New("session: unknown session")
	// ErrSessionConflict rejects a handshake message that cannot apply to the
	// session its id names: an InitiatorHello for a session this node
	// initiated, any handshake for a session restored without its
	// negotiation, or a non-duplicate handshake for an established session.
	// No state changes.
	ErrSessionConflict = errors.New("session: session id already in use")
	// ErrRateLimited rejects a new InitiatorHello from a source that exceeded
	// its hello budget.
	ErrRateLimited = errors.New("session: too many negotiations from source")
	// ErrNegotiationTimeout fails a negotiation that did not complete within
	// Config.NegotiationTimeout.
	ErrNegotiationTimeout = errors.New("session: negotiation timed out")
	// ErrSessionExpired is returned for data arriving on a session past its
	// lifetime. The session is discarded.
	ErrSessionExpired = errors.New("session: session expired")
)

// Config tunes a Manager. Zero values select the defaults.
type Config struct {
	Scheme         domain.Scheme
	SupportedModes []domain.Mode // by preference
	MaxMessageSize uint32        // 0 is unlimited

	// KeyTenant scopes session keys in the key store. Defaults to the local
	// identity.
	KeyTenant string

	NegotiationTimeout time.Duration
	HelloRate          rate.Limit
	HelloBurst         int
	LimiterCacheSize   int

	Now func() time.Time
}

const (
	defaultNegotiationTimeout = 2 * time.Minute
	defaultHelloRate          = rate.Limit(20)
	defaultHelloBurst         = 40
	defaultLimiterCacheSize   = 4096
)

func (c *Config) applyDefaults(local domain.HoldingIdentity) {
	if c.Scheme == 0 {
		c.Scheme = domaintypes.SchemeX25519
	}
	if len(c.SupportedModes) == 0 {
		c.SupportedModes = []domain.Mode{domaintypes.ModeAuthenticatedEncryption, domaintypes.ModeAuthenticationOnly}
	}
	if c.KeyTenant == "" {
		c.KeyTenant = local.String()
	}
	if c.NegotiationTimeout <= 0 {
		c.NegotiationTimeout = defaultNegotiationTimeout
	}
	if c.HelloRate <= 0 {
		c.HelloRate = defaultHelloRate
	}
	if c.HelloBurst <= 0 {
		c.HelloBurst = defaultHelloBurst
	}
	if c.LimiterCacheSize <= 0 {
		c.LimiterCacheSize = defaultLimiterCacheSize
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Deps are the collaborators of a Manager. The zero Logger discards
// everything and Metrics may be nil.
type Deps struct {
	Local    domain.HoldingIdentity
	Crypto   domain.CryptoProvider
	Resolver domain.IdentityResolver
	Metadata domain.SessionMetadataStore
	Keys     domain.SessionKeyStore
	Logger   zerolog.Logger
	Metrics  *metrics.Collectors
}

// Manager establishes and tracks sessions for one local identity.
type Manager struct {
	local    domain.HoldingIdentity
	crypto   domain.CryptoProvider
	resolver domain.IdentityResolver
	metadata domain.SessionMetadataStore
	keys     domain.SessionKeyStore
	log      zerolog.Logger
	metrics  *metrics.Collectors
	cfg      Config

	table         *table
	hellos        *helloLimiter
	outbound      queue[domain.OutboundMessage]
	inbound       queue[domain.DecryptedApplicationMessage]
	undeliverable queue[domain.UndeliverableMessage]
}

// New builds a Manager. Call Restore to reload sessions persisted by a
// previous process.
func New(d Deps, cfg Config) (*Manager, error) {
	if err := d.Local.Validate(); err != nil {
		return nil, err
	}
	if d.Crypto == nil || d.Resolver == nil || d.Metadata == nil || d.Keys == nil {
		return nil, errors.New("session: crypto, resolver, metadata and key stores are required")
	}
	cfg.applyDefaults(d.Local)
	if !cfg.Scheme.Valid() {
		return nil, fmt.Errorf("%w: %v", authn.ErrUnsupportedScheme, cfg.Scheme)
	}
	hellos, err := newHelloLimiter(cfg.HelloRate, cfg.HelloBurst, cfg.LimiterCacheSize)
	if err != nil {
		return nil, err
	}
	return &Manager{
		local:    d.Local,
		crypto:   d.Crypto,
		resolver: d.Resolver,
		metadata: d.Metadata,
		keys:     d.Keys,
		log:      d.Logger.With().Str("local", d.Local.String()).Logger(),
		metrics:  d.Metrics,
		cfg:      cfg,
		table:    newTable(),
		hellos:   hellos,
	}, nil
}

// Local is the identity this manager negotiates as.
func (m *Manager) Local() domain.HoldingIdentity { return m.local }

func (m *Manager) authnConfig() authn.Config {
	return authn.Config{
		Scheme:         m.cfg.Scheme,
		SupportedModes: m.cfg.SupportedModes,
		MaxMessageSize: m.cfg.MaxMessageSize,
	}
}

// SendMessage sends payload to destination over a ready session, or queues
// it until the session negotiating with destination is ready, starting that
// negotiation if none is in flight. An expired session is discarded and
// renegotiated.
//
// Resolution of the destination's identity key happens before anything is
// queued; on error the payload is not retained. Payloads dropped later by a
// failed negotiation are reported through GetUndeliverableMessage.
func (m *Manager) SendMessage(ctx context.Context, destination domain.HoldingIdentity, payload []byte) (domain.MessageID, error) {
	if err := destination.Validate(); err != nil {
		return "", err
	}
	if destination.GroupID != m.local.GroupID {
		return "", fmt.Errorf("%w: %s", ErrGroupMismatch, destination)
	}
	if limit := m.cfg.MaxMessageSize; limit > 0 && len(payload) > int(limit) {
		return "", fmt.Errorf("%w: %d > %d", authn.ErrPayloadTooLarge, len(payload), limit)
	}
	pm := pendingMessage{
		id:      domain.MessageID(uuid.NewString()),
		payload: append([]byte(nil), payload...),
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		e, ok := m.table.outbound(destination)
		if !ok {
			done, err := m.startNegotiation(ctx, destination, pm)
			if err != nil {
				return "", err
			}
			if done {
				return pm.id, nil
			}
			continue
		}
		done, err := m.sendOn(e, pm)
		if err != nil {
			return "", err
		}
		if done {
			return pm.id, nil
		}
	}
}

// sendOn seals pm on e, or queues it if e is still negotiating. It reports
// false when e is gone and the caller must look again.
func (m *Manager) sendOn(e *entry, pm pendingMessage) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, nil
	}
	if e.session == nil {
		e.pending = append(e.pending, pm)
		return true, nil
	}
	now := m.cfg.Now()
	if e.md.LastSendExpired(now) {
		m.log.Info().Str("session_id", e.id.String()).Str("peer", e.peer.String()).
			Msg("session expired, renegotiating")
		m.discardLocked(e)
		return false, nil
	}
	return true, m.sealLocked(e, pm, now)
}

// startNegotiation creates an outbound session for destination with pm as
// its first pending payload. It reports false if another caller won the race
// to create one.
func (m *Manager) startNegotiation(ctx context.Context, destination domain.HoldingIdentity, pm pendingMessage) (bool, error) {
	peerKey, err := m.resolver.ResolvePublicKey(ctx, destination)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", authn.ErrUnknownPeer, destination, err)
	}
	id := domain.SessionID(uuid.NewString())
	ini, err := authn.NewInitiator(authn.InitiatorParams{
		SessionID: id,
		Local:     m.local,
		Peer:      destination,
		PeerKey:   peerKey,
		Crypto:    m.crypto,
		Config:    m.authnConfig(),
	})
	if err != nil {
		return false, err
	}

	now := m.cfg.Now()
	e := &entry{
		id:        id,
		role:      domaintypes.RoleInitiator,
		peer:      destination,
		started:   now,
		initiator: ini,
		md:        m.newMetadata(id, destination, domaintypes.StatusSentInitiatorHello, now),
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := m.table.insert(e); !ok {
		ini.Destroy()
		return false, nil
	}

	hello, err := ini.Start()
	if err == nil {
		err = m.metadata.Put(e.md)
	}
	if err != nil {
		m.table.remove(e)
		e.closed = true
		e.destroy()
		return false, err
	}
	e.pending = append(e.pending, pm)
	m.outbound.push(domain.OutboundMessage{Source: m.local, Destination: destination, Message: hello})
	m.metrics.HandshakeStarted(e.role.String())
	m.log.Debug().Str("session_id", id.String()).Str("peer", destination.String()).
		Str("role", e.role.String()).Msg("negotiation started")
	return true, nil
}

func (m *Manager) newMetadata(id domain.SessionID, peer domain.HoldingIdentity, status domain.SessionStatus, now time.Time) domain.SessionMetadata {
	md := domaintypes.NewSessionMetadata(id, m.local, peer, status, now)
	md.EncryptionKeyID = id.String()
	md.EncryptionKeyTenant = m.cfg.KeyTenant
	return md
}

// ProcessSessionMessage applies an inbound handshake or data message.
//
// Handshake errors wrapping one of the authn handshake sentinels have
// destroyed the negotiation and failed its pending payloads. ErrUnknownSession,
// ErrSessionConflict and ErrRateLimited reject the message without changing
// any state, as do the data errors authn.ErrReplay and
// authn.ErrAuthenticationFailed. A handshake message for an established
// session is either an exact redelivery, answered as before, or rejected
// with ErrSessionConflict.
func (m *Manager) ProcessSessionMessage(ctx context.Context, msg domain.SessionMessage) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", authn.ErrUnexpectedMessageType)
	}
	if hello, ok := msg.(*domain.InitiatorHello); ok {
		return m.onInitiatorHello(ctx, hello)
	}

	e, ok := m.table.get(msg.SessionHeader().SessionID)
	if !ok {
		return fmt.Errorf("%w: %s for %q", ErrUnknownSession, msg.Kind(), msg.SessionHeader().SessionID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("%w: %s for %q", ErrUnknownSession, msg.Kind(), e.id)
	}

	switch msg := msg.(type) {
	case *domain.DataMessage:
		return m.onDataLocked(e, msg)
	case *domain.ResponderHello, *domain.ResponderHandshake, *domain.InitiatorHandshake:
		return m.advanceLocked(ctx, e, msg)
	default:
		err := fmt.Errorf("%w: %T", authn.ErrUnexpectedMessageType, msg)
		if e.session != nil {
			return fmt.Errorf("%w: %v", ErrSessionConflict, err)
		}
		m.failLocked(e, err)
		return err
	}
}

func (m *Manager) onInitiatorHello(ctx context.Context, hello *domain.InitiatorHello) error {
	id := hello.Header.SessionID
	if e, ok := m.table.get(id); ok {
		return m.helloForKnown(ctx, e, hello)
	}
	if hello.Destination != m.local {
		return fmt.Errorf("%w: hello for %s", authn.ErrIdentityMismatch, hello.Destination)
	}
	now := m.cfg.Now()
	if !m.hellos.allow(hello.Source, now) {
		m.log.Warn().Str("session_id", id.String()).Str("peer", hello.Source.String()).Msg("hello rate limited")
		return fmt.Errorf("%w: %s", ErrRateLimited, hello.Source)
	}

	r, err := authn.NewResponder(authn.ResponderParams{
		Local:    m.local,
		Crypto:   m.crypto,
		Resolver: m.resolver,
		Config:   m.authnConfig(),
	})
	if err != nil {
		return err
	}
	e := &entry{
		id:        id,
		role:      domaintypes.RoleResponder,
		peer:      hello.Source,
		started:   now,
		responder: r,
	}
	e.mu.Lock()
	if prev, ok := m.table.insert(e); !ok {
		e.mu.Unlock()
		r.Destroy()
		return m.helloForKnown(ctx, prev, hello)
	}
	defer e.mu.Unlock()
	m.metrics.HandshakeStarted(e.role.String())
	return m.advanceLocked(ctx, e, hello)
}

// helloForKnown handles an InitiatorHello naming a session id already in the
// table. Only a responder that still holds its negotiation can answer.
func (m *Manager) helloForKnown(ctx context.Context, e *entry, hello *domain.InitiatorHello) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("%w: %q", ErrUnknownSession, e.id)
	}
	if e.responder == nil {
		return fmt.Errorf("%w: %q", ErrSessionConflict, e.id)
	}
	return m.advanceLocked(ctx, e, hello)
}

// advanceLocked feeds a handshake message to e's state machine, queues the
// reply and persists the resulting status.
func (m *Manager) advanceLocked(ctx context.Context, e *entry, msg domain.SessionMessage) error {
	var (
		reply domain.SessionMessage
		err   error
		moved bool
	)
	switch {
	case e.initiator != nil:
		before := e.initiator.State()
		reply, err = e.initiator.ProcessMessage(msg)
		moved = e.initiator.State() != before
	case e.responder != nil:
		before := e.responder.State()
		reply, err = e.responder.ProcessMessage(ctx, msg)
		moved = e.responder.State() != before
	default:
		return fmt.Errorf("%w: %s for restored session %q", ErrSessionConflict, msg.Kind(), e.id)
	}
	if err != nil {
		if e.session != nil {
			// The key is fixed once established; a stray message cannot undo it.
			m.log.Warn().Err(err).Str("session_id", e.id.String()).Str("peer", e.peer.String()).
				Stringer("kind", msg.Kind()).Msg("handshake message rejected on established session")
			m.metrics.Rejected("session_conflict")
			return fmt.Errorf("%w: %s for established session %q: %v", ErrSessionConflict, msg.Kind(), e.id, err)
		}
		m.failLocked(e, err)
		return err
	}
	if reply != nil {
		m.outbound.push(domain.OutboundMessage{Source: m.local, Destination: e.peer, Message: reply})
	}
	if !moved {
		m.log.Debug().Str("session_id", e.id.String()).Str("peer", e.peer.String()).
			Stringer("kind", msg.Kind()).Msg("duplicate handshake message re-acknowledged")
		return nil
	}
	if err := m.afterStepLocked(e); err != nil {
		m.failLocked(e, err)
		return err
	}
	return nil
}

func (m *Manager) afterStepLocked(e *entry) error {
	now := m.cfg.Now()
	if e.initiator != nil {
		switch e.initiator.State() {
		case authn.InitiatorSentHandshake:
			e.md.Status = domaintypes.StatusSentInitiatorHandshake
			return m.metadata.Put(e.md)
		case authn.InitiatorSessionReady:
			s, _ := e.initiator.Session()
			if err := m.establishLocked(e, s, domaintypes.StatusSessionReady, now); err != nil {
				return err
			}
			m.flushLocked(e, now)
		}
		return nil
	}
	switch e.responder.State() {
	case authn.ResponderSentHello:
		e.md = m.newMetadata(e.id, e.peer, domaintypes.StatusSentResponderHello, now)
		return m.metadata.Put(e.md)
	case authn.ResponderSentHandshake:
		s, _ := e.responder.Session()
		return m.establishLocked(e, s, domaintypes.StatusSentResponderHandshake, now)
	}
	return nil
}

// establishLocked stores the session key and makes s usable on e.
func (m *Manager) establishLocked(e *entry, s *authn.Session, status domain.SessionStatus, now time.Time) error {
	if err := m.keys.PutSessionKey(e.md.EncryptionKeyTenant, e.md.EncryptionKeyID, s.Record()); err != nil {
		s.Destroy()
		return fmt.Errorf("session: store key for %s: %w", e.id, err)
	}
	e.session = s
	e.md.Status = status
	e.md.Touch(now)
	if err := m.metadata.Put(e.md); err != nil {
		return err
	}
	m.metrics.HandshakeCompleted(e.role.String(), now.Sub(e.started))
	m.log.Info().Str("session_id", e.id.String()).Str("peer", e.peer.String()).
		Str("role", e.role.String()).Stringer("mode", s.Mode()).Msg("session established")
	return nil
}

// flushLocked seals every pending payload in submission order.
func (m *Manager) flushLocked(e *entry, now time.Time) {
	pending := e.pending
	e.pending = nil
	for _, pm := range pending {
		if err := m.sealLocked(e, pm, now); err != nil {
			m.undeliverLocked(e, []pendingMessage{pm}, err)
		}
	}
}

func (m *Manager) sealLocked(e *entry, pm pendingMessage, now time.Time) error {
	dm, err := e.session.Seal(pm.payload)
	if err != nil {
		return err
	}
	e.md.Touch(now)
	if err := m.metadata.Put(e.md); err != nil {
		m.log.Warn().Err(err).Str("session_id", e.id.String()).Msg("persist last send")
	}
	m.outbound.push(domain.OutboundMessage{Source: m.local, Destination: e.peer, Message: dm})
	m.metrics.Sent()
	return nil
}

func (m *Manager) onDataLocked(e *entry, msg *domain.DataMessage) error {
	if e.session == nil {
		err := fmt.Errorf("%w: data before the handshake completed", authn.ErrUnexpectedMessageType)
		m.failLocked(e, err)
		return err
	}
	now := m.cfg.Now()
	if e.md.LastSendExpired(now) {
		m.discardLocked(e)
		return fmt.Errorf("%w: %q", ErrSessionExpired, e.id)
	}
	payload, err := e.session.Open(msg)
	if err != nil {
		m.metrics.Rejected(authn.Reason(err))
		m.log.Warn().Err(err).Str("session_id", e.id.String()).Str("peer", e.peer.String()).Msg("data message rejected")
		return err
	}
	// The receive mark must be durable before delivery so that a restart
	// cannot deliver the message again.
	if err := m.keys.PutSessionKey(e.md.EncryptionKeyTenant, e.md.EncryptionKeyID, e.session.Record()); err != nil {
		m.log.Error().Err(err).Str("session_id", e.id.String()).Msg("persist receive mark")
	}
	if e.role == domaintypes.RoleResponder {
		if e.md.Status == domaintypes.StatusSentResponderHandshake {
			e.md.Status = domaintypes.StatusSessionReady
		}
		e.md.Touch(now)
		if err := m.metadata.Put(e.md); err != nil {
			m.log.Warn().Err(err).Str("session_id", e.id.String()).Msg("persist session status")
		}
	}
	m.inbound.push(domain.DecryptedApplicationMessage{
		SessionID:   e.id,
		Source:      e.peer,
		Destination: m.local,
		Payload:     payload,
	})
	m.metrics.Received()
	return nil
}

// failLocked destroys e after a handshake error and reports its pending
// payloads as undeliverable.
func (m *Manager) failLocked(e *entry, err error) {
	pending := e.pending
	e.pending = nil
	m.discardLocked(e)
	m.undeliverLocked(e, pending, err)
	m.metrics.HandshakeFailed(e.role.String(), authn.Reason(err))
	m.log.Warn().Err(err).Str("session_id", e.id.String()).Str("peer", e.peer.String()).
		Str("role", e.role.String()).Msg("negotiation failed")
}

// discardLocked removes e from the table and wipes its metadata and keys.
func (m *Manager) discardLocked(e *entry) {
	m.table.remove(e)
	e.closed = true
	e.destroy()
	m.purge(e.id, e.md)
}

func (m *Manager) purge(id domain.SessionID, md domain.SessionMetadata) {
	if err := m.metadata.Delete(id); err != nil {
		m.log.Warn().Err(err).Str("session_id", id.String()).Msg("delete session metadata")
	}
	if md.EncryptionKeyID == "" {
		return
	}
	if err := m.keys.DeleteSessionKey(md.EncryptionKeyTenant, md.EncryptionKeyID); err != nil {
		m.log.Warn().Err(err).Str("session_id", id.String()).Msg("delete session key")
	}
}

func (m *Manager) undeliverLocked(e *entry, pending []pendingMessage, err error) {
	for _, pm := range pending {
		m.undeliverable.push(domain.UndeliverableMessage{
			MessageID:   pm.id,
			Destination: e.peer,
			Payload:     pm.payload,
			Err:         err,
		})
	}
	m.metrics.Undelivered(len(pending))
}

// GetQueuedOutboundMessage pops the next message for the transport.
func (m *Manager) GetQueuedOutboundMessage() (domain.OutboundMessage, bool) {
	return m.outbound.pop()
}

// GetQueuedInboundMessage pops the next delivered application payload.
func (m *Manager) GetQueuedInboundMessage() (domain.DecryptedApplicationMessage, bool) {
	return m.inbound.pop()
}

// GetUndeliverableMessage pops the next payload dropped by a failed
// negotiation.
func (m *Manager) GetUndeliverableMessage() (domain.UndeliverableMessage, bool) {
	return m.undeliverable.pop()
}

// Compile-time assertion that Manager implements domain.SessionManager.
var _ domain.SessionManager = (*Manager)(nil)
