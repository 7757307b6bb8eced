package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ledgerlink/internal/crypto"
	"ledgerlink/internal/domain"
	"ledgerlink/internal/protocol/authn"
)

// Service resolves identity keys through a local cache backed by the relay.
type Service struct {
	relay domain.RelayClient
	cache domain.MemberStore
	log   zerolog.Logger
	now   func() time.Time
}

// New returns a Service. A nil relay limits resolution to cached records.
func New(relay domain.RelayClient, cache domain.MemberStore, log zerolog.Logger) *Service {
	return &Service{relay: relay, cache: cache, log: log, now: time.Now}
}

// Register publishes the public half of id to the directory and caches it.
func (s *Service) Register(ctx context.Context, id domain.LocalIdentity) (domain.MemberRecord, error) {
	if s.relay == nil {
		return domain.MemberRecord{}, fmt.Errorf("membership: no relay configured")
	}
	rec := domain.MemberRecord{
		Identity:  id.Identity,
		PublicKey: id.PublicKey(),
		Updated:   s.now().Unix(),
	}
	if err := authn.ValidateIdentityKey(rec.PublicKey); err != nil {
		return domain.MemberRecord{}, err
	}
	if err := s.relay.RegisterMember(ctx, rec); err != nil {
		return domain.MemberRecord{}, err
	}
	if err := s.cache.SaveMember(rec); err != nil {
		return domain.MemberRecord{}, err
	}
	s.log.Info().Str("member", rec.Identity.String()).
		Str("fingerprint", crypto.Fingerprint(rec.PublicKey).String()).Msg("registered with directory")
	return rec, nil
}

// ResolvePublicKey returns the identity key of id, from the cache when
// present and from the relay otherwise.
func (s *Service) ResolvePublicKey(ctx context.Context, id domain.HoldingIdentity) (domain.PublicKey, error) {
	rec, ok, err := s.cache.LoadMember(id)
	if err != nil {
		return domain.PublicKey{}, err
	}
	if ok {
		return rec.PublicKey, nil
	}
	return s.Refresh(ctx, id)
}

// Refresh fetches the record for id from the relay and replaces the cached
// copy. Use it after a peer re-initialises its identity.
func (s *Service) Refresh(ctx context.Context, id domain.HoldingIdentity) (domain.PublicKey, error) {
	if s.relay == nil {
		return domain.PublicKey{}, fmt.Errorf("membership: %s not cached and no relay configured", id)
	}
	rec, err := s.relay.FetchMember(ctx, id)
	if err != nil {
		return domain.PublicKey{}, fmt.Errorf("membership: fetch %s: %w", id, err)
	}
	if rec.Identity != id {
		return domain.PublicKey{}, fmt.Errorf("%w: directory answered for %s", authn.ErrIdentityMismatch, rec.Identity)
	}
	if err := authn.ValidateIdentityKey(rec.PublicKey); err != nil {
		return domain.PublicKey{}, err
	}
	if err := s.cache.SaveMember(rec); err != nil {
		return domain.PublicKey{}, err
	}
	s.log.Debug().Str("member", id.String()).
		Str("fingerprint", crypto.Fingerprint(rec.PublicKey).String()).Msg("resolved member")
	return rec.PublicKey, nil
}

// Compile-time assertion that Service implements domain.MembershipService.
var _ domain.MembershipService = (*Service)(nil)
