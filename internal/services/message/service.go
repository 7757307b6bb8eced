package message

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ledgerlink/internal/domain"
	"ledgerlink/internal/protocol/authn"
	"ledgerlink/internal/protocol/wire"
)

// ErrNoRelay is returned when the pump has no relay to talk to.
var ErrNoRelay = errors.New("no relay configured; use --relay")

// Service moves frames between a SessionManager and the relay.
//
// High-level flow:
//   - Send: hand the payload to the session manager, then flush whatever it
//     queued (a hello for a new peer, or a data message on a ready session).
//   - Poll: fetch envelopes, feed each decoded frame to the session manager,
//     ack what was consumed, flush the replies the manager produced, and
//     return the payloads it delivered.
type Service struct {
	local    domain.HoldingIdentity
	sessions domain.SessionManager
	relay    domain.RelayClient
	log      zerolog.Logger
	now      func() time.Time

	mu    sync.Mutex
	retry []domain.OutboundMessage // drained from the manager but not yet posted
}

// New constructs a Message Service for local.
func New(local domain.HoldingIdentity, sessions domain.SessionManager, relay domain.RelayClient, log zerolog.Logger) *Service {
	return &Service{
		local:    local,
		sessions: sessions,
		relay:    relay,
		log:      log,
		now:      time.Now,
	}
}

// Send queues payload for to and posts everything that became sendable.
func (s *Service) Send(ctx context.Context, to domain.HoldingIdentity, payload []byte) (domain.MessageID, error) {
	id, err := s.sessions.SendMessage(ctx, to, payload)
	if err != nil {
		return "", err
	}
	if _, err := s.Flush(ctx); err != nil {
		return id, err
	}
	return id, nil
}

// Flush posts every queued outbound message in order and returns how many
// were posted. On a relay error the unsent messages are kept and retried
// first by the next Flush.
func (s *Service) Flush(ctx context.Context) (int, error) {
	if s.relay == nil {
		return 0, ErrNoRelay
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		out, ok := s.sessions.GetQueuedOutboundMessage()
		if !ok {
			break
		}
		s.retry = append(s.retry, out)
	}

	sent := 0
	for len(s.retry) > 0 {
		out := s.retry[0]
		frame, err := wire.Encode(out.Message)
		if err != nil {
			// Unencodable messages cannot become encodable later.
			s.log.Error().Err(err).Stringer("kind", out.Message.Kind()).Msg("dropping outbound message")
			s.retry = s.retry[1:]
			continue
		}
		env := domain.Envelope{
			From:      out.Source,
			To:        out.Destination,
			Payload:   frame,
			Timestamp: s.now().Unix(),
		}
		if err := s.relay.SendEnvelope(ctx, env); err != nil {
			return sent, fmt.Errorf("post %s to %s: %w", out.Message.Kind(), out.Destination, err)
		}
		s.retry = s.retry[1:]
		sent++
	}
	s.retry = nil
	return sent, nil
}

// Poll fetches up to limit envelopes (0 for all), processes them and
// returns the payloads delivered to us.
//
// Envelopes that fail to decode or that the session manager rejects are
// logged and acknowledged: redelivering them cannot succeed.
func (s *Service) Poll(ctx context.Context, limit int) ([]domain.DecryptedApplicationMessage, error) {
	if s.relay == nil {
		return nil, ErrNoRelay
	}
	envs, err := s.relay.FetchEnvelopes(ctx, s.local, limit)
	if err != nil {
		return nil, err
	}

	processed := 0
	for _, env := range envs {
		if err := ctx.Err(); err != nil {
			break
		}
		processed++
		log := s.log.With().Str("from", env.From.String()).Int64("timestamp", env.Timestamp).Logger()

		msg, err := wire.Decode(env.Payload)
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		if err := s.sessions.ProcessSessionMessage(ctx, msg); err != nil {
			log.Warn().Err(err).Stringer("kind", msg.Kind()).
				Str("session_id", msg.SessionHeader().SessionID.String()).
				Str("reason", authn.Reason(err)).Msg("session message rejected")
		}
	}

	// Ack only what we consumed. If zero, do nothing.
	if processed > 0 {
		if err := s.relay.AckEnvelopes(ctx, s.local, processed); err != nil {
			return nil, fmt.Errorf("ack %d envelopes: %w", processed, err)
		}
	}
	if _, err := s.Flush(ctx); err != nil {
		return nil, err
	}

	var out []domain.DecryptedApplicationMessage
	for {
		m, ok := s.sessions.GetQueuedInboundMessage()
		if !ok {
			break
		}
		out = append(out, m)
	}
	return out, nil
}

// Undeliverable drains the payloads dropped by failed negotiations.
func (s *Service) Undeliverable() []domain.UndeliverableMessage {
	var out []domain.UndeliverableMessage
	for {
		u, ok := s.sessions.GetUndeliverableMessage()
		if !ok {
			return out
		}
		out = append(out, u)
	}
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
