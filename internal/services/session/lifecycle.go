package session

import (
	"context"
	"fmt"
	"time"

	"ledgerlink/internal/domain"
	domaintypes "ledgerlink/internal/domain/types"
	"ledgerlink/internal/protocol/authn"
)

// Restore reloads the sessions a previous process left usable: SessionReady
// sessions and responder sessions in SentResponderHandshake whose keys are
// still in the key store. Each restored session moves to the next epoch and
// the bump is persisted before use, so no sequence number is reused under
// the same key. The receive mark stored with the key keeps peer data
// accepted before the restart refused as a replay. Expired records and records of negotiations that were in
// flight are deleted.
//
// Restore returns the number of sessions restored.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	mds, err := m.metadata.List()
	if err != nil {
		return 0, err
	}
	now := m.cfg.Now()
	restored := 0
	for _, md := range mds {
		if err := ctx.Err(); err != nil {
			return restored, err
		}
		if md.Source != m.local {
			continue
		}
		if _, ok := m.table.get(md.SessionID); ok {
			continue
		}
		log := m.log.With().Str("session_id", md.SessionID.String()).Str("peer", md.Destination.String()).Logger()

		if md.LastSendExpired(now) {
			log.Info().Msg("dropping expired session")
			m.purge(md.SessionID, md)
			continue
		}
		if md.Status != domaintypes.StatusSessionReady && md.Status != domaintypes.StatusSentResponderHandshake {
			log.Info().Stringer("status", md.Status).Msg("dropping interrupted negotiation")
			m.purge(md.SessionID, md)
			continue
		}

		rec, ok, err := m.keys.GetSessionKey(md.EncryptionKeyTenant, md.EncryptionKeyID)
		if err != nil {
			return restored, fmt.Errorf("session: load key for %s: %w", md.SessionID, err)
		}
		if !ok {
			log.Warn().Msg("session key missing, dropping session")
			m.purge(md.SessionID, md)
			continue
		}
		rec.Epoch++
		if err := m.keys.PutSessionKey(md.EncryptionKeyTenant, md.EncryptionKeyID, rec); err != nil {
			return restored, fmt.Errorf("session: persist epoch for %s: %w", md.SessionID, err)
		}
		s, err := authn.RestoreSession(rec)
		if err != nil {
			log.Warn().Err(err).Msg("unusable session key, dropping session")
			m.purge(md.SessionID, md)
			continue
		}

		e := &entry{
			id:      md.SessionID,
			role:    rec.Role,
			peer:    md.Destination,
			started: md.LastSendTimestamp,
			session: s,
			md:      md,
		}
		if _, ok := m.table.insert(e); !ok {
			s.Destroy()
			continue
		}
		restored++
		log.Debug().Str("role", rec.Role.String()).Uint32("epoch", rec.Epoch).Msg("session restored")
	}
	return restored, nil
}

// Sweep discards expired sessions and fails negotiations older than
// Config.NegotiationTimeout, reporting their pending payloads with
// ErrNegotiationTimeout. It returns the number of sessions removed.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.cfg.Now()
	removed := 0
	for _, e := range m.table.snapshot() {
		if ctx.Err() != nil {
			break
		}
		e.mu.Lock()
		switch {
		case e.closed:
		case e.session != nil && e.md.LastSendExpired(now):
			m.log.Info().Str("session_id", e.id.String()).Str("peer", e.peer.String()).Msg("session expired")
			m.discardLocked(e)
			removed++
		case e.session == nil && now.Sub(e.started) > m.cfg.NegotiationTimeout:
			m.failLocked(e, fmt.Errorf("%w: after %s", ErrNegotiationTimeout, now.Sub(e.started).Round(time.Second)))
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// Info is a point-in-time view of one session.
type Info struct {
	SessionID domain.SessionID
	Role      domain.Role
	Peer      domain.HoldingIdentity
	Status    domain.SessionStatus
	State     string
	Mode      domain.Mode
	Epoch     uint32
	Pending   int
	LastSend  time.Time
	Expiry    time.Time
}

// Sessions lists the sessions in the table ordered by id.
func (m *Manager) Sessions() []Info {
	entries := m.table.snapshot()
	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.closed {
			info := Info{
				SessionID: e.id,
				Role:      e.role,
				Peer:      e.peer,
				Status:    e.md.Status,
				State:     e.state(),
				Pending:   len(e.pending),
				LastSend:  e.md.LastSendTimestamp,
				Expiry:    e.md.Expiry,
			}
			if e.session != nil {
				info.Mode = e.session.Mode()
				info.Epoch = e.session.Epoch()
			}
			out = append(out, info)
		}
		e.mu.Unlock()
	}
	return out
}

// PendingCount is the number of payloads waiting for the outbound session
// to destination.
func (m *Manager) PendingCount(destination domain.HoldingIdentity) int {
	e, ok := m.table.outbound(destination)
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// QueuedOutbound is the number of messages waiting for the transport.
func (m *Manager) QueuedOutbound() int { return m.outbound.len() }
