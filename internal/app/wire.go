package app

import (
	"context"
	"errors"
	"net/http"

	"ledgerlink/internal/domain"
	"ledgerlink/internal/relay"
	identitysvc "ledgerlink/internal/services/identity"
	membershipsvc "ledgerlink/internal/services/membership"
	"ledgerlink/internal/store"
)

// Wire bundles the stores, clients and services that need no unlocked
// identity.
type Wire struct {
	Identity *identitysvc.Service
	Members  *membershipsvc.Service
	Relay    domain.RelayClient // nil when no relay is configured
	HTTP     *http.Client

	cfg      Config
	sessions *store.SessionFileStore
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	if cfg.Home == "" {
		return nil, errors.New("app: home directory is required")
	}

	// File-based stores
	identityStore := store.NewIdentityFileStore(cfg.Home)
	memberStore := store.NewMemberFileStore(cfg.Home)
	sessionStore := store.NewSessionFileStore(cfg.Home)

	// Ensure an HTTP client is available for outbound calls
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	// Relay client (uses provided HTTP client). Left as a nil interface
	// when offline so services can tell.
	var rc domain.RelayClient
	if cfg.RelayURL != "" {
		rc = relay.NewHTTP(cfg.RelayURL, httpClient)
	}

	return &Wire{
		Identity: identitysvc.New(identityStore),
		Members:  membershipsvc.New(rc, memberStore, cfg.Logger),
		Relay:    rc,
		HTTP:     httpClient,
		cfg:      cfg,
		sessions: sessionStore,
	}, nil
}

// Open unlocks the local identity and builds the session layer over it.
// Sessions persisted by an earlier process are restored before Open returns.
func (w *Wire) Open(ctx context.Context) (*Node, error) {
	local, err := w.Identity.LoadIdentity(w.cfg.Passphrase)
	if err != nil {
		return nil, err
	}
	return newNode(ctx, w, local)
}
