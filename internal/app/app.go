package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ledgerlink/internal/crypto"
	"ledgerlink/internal/domain"
	"ledgerlink/internal/metrics"
	messagesvc "ledgerlink/internal/services/message"
	sessionsvc "ledgerlink/internal/services/session"
	"ledgerlink/internal/store"
)

// Node is an unlocked identity with its session manager and message pump.
type Node struct {
	Local    domain.LocalIdentity
	Sessions *sessionsvc.Manager
	Messages *messagesvc.Service
	Registry *prometheus.Registry

	keys *store.KeyVaultFileStore
}

func newNode(ctx context.Context, w *Wire, local domain.LocalIdentity) (*Node, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	keys := store.NewKeyVaultFileStore(w.cfg.Home, w.cfg.Passphrase)
	log := w.cfg.Logger.With().Str("identity", local.Identity.String()).Logger()

	mgr, err := sessionsvc.New(sessionsvc.Deps{
		Local:    local.Identity,
		Crypto:   crypto.NewSoftwareProvider(local),
		Resolver: w.Members,
		Metadata: w.sessions,
		Keys:     keys,
		Logger:   log,
		Metrics:  metrics.New(reg),
	}, sessionsvc.Config{
		Scheme:         w.cfg.Scheme,
		SupportedModes: w.cfg.Modes,
		MaxMessageSize: w.cfg.MaxMessageSize,
	})
	if err != nil {
		keys.Close()
		return nil, err
	}
	n, err := mgr.Restore(ctx)
	if err != nil {
		keys.Close()
		return nil, fmt.Errorf("restore sessions: %w", err)
	}
	if n > 0 {
		log.Info().Int("sessions", n).Msg("sessions restored")
	}

	return &Node{
		Local:    local,
		Sessions: mgr,
		Messages: messagesvc.New(local.Identity, mgr, w.Relay, log),
		Registry: reg,
		keys:     keys,
	}, nil
}

// Close wipes the cached vault key. The node must not be used afterwards.
func (n *Node) Close() error { return n.keys.Close() }
