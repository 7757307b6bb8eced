package app

import (
	"net/http"

	"github.com/rs/zerolog"

	"ledgerlink/internal/domain"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home       string // config directory, e.g. $HOME/.ledgerlink
	Passphrase string // unlocks the identity and the session key vault
	RelayURL   string // relay base URL, e.g. http://127.0.0.1:8080; empty runs offline

	Scheme         domain.Scheme // 0 selects x25519
	Modes          []domain.Mode // by preference; nil selects AEAD then auth-only
	MaxMessageSize uint32        // 0 is unlimited

	HTTP   *http.Client   // optional; defaults to http.DefaultClient
	Logger zerolog.Logger // zero value discards
}
