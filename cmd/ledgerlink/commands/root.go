package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ledgerlink/internal/app"
	"ledgerlink/internal/domain"
	domaintypes "ledgerlink/internal/domain/types"
)

var (
	home       string
	passphrase string
	wire       *app.Wire
	logger     zerolog.Logger

	relayURL   string
	name       string
	group      string
	schemeName string
	modeNames  []string
	maxSize    uint32
	logLevel   string
)

func Execute() error {
	root := &cobra.Command{
		Use:          "ledgerlink",
		Short:        "Authenticated session messaging between holding identities",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".ledgerlink")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			lvl, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				Level(lvl).With().Timestamp().Logger()

			cfg, err := buildConfig()
			if err != nil {
				return err
			}
			wire, err = app.NewWire(cfg)
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.ledgerlink)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase to protect keys")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVar(&name, "name", "", "X.500 name of the identity (init only)")
	root.PersistentFlags().StringVar(&group, "group", "", "membership group id (init only)")
	root.PersistentFlags().StringVar(&schemeName, "scheme", "x25519", "key agreement scheme: x25519, p256 or p384")
	root.PersistentFlags().StringSliceVar(&modeNames, "modes", []string{"aead", "auth"}, "supported modes by preference")
	root.PersistentFlags().Uint32Var(&maxSize, "max-message-size", 0, "largest payload accepted in bytes (0 is unlimited)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		registerCmd(),
		sendCmd(),
		recvCmd(),
		listenCmd(),
		sessionsCmd(),
		demoCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return root.ExecuteContext(ctx)
}

func buildConfig() (app.Config, error) {
	scheme, err := domaintypes.ParseScheme(schemeName)
	if err != nil {
		return app.Config{}, err
	}
	modes := make([]domain.Mode, 0, len(modeNames))
	for _, n := range modeNames {
		m, err := domaintypes.ParseMode(n)
		if err != nil {
			return app.Config{}, err
		}
		modes = append(modes, m)
	}
	return app.Config{
		Home:           home,
		Passphrase:     passphrase,
		RelayURL:       relayURL,
		Scheme:         scheme,
		Modes:          modes,
		MaxMessageSize: maxSize,
		Logger:         logger,
	}, nil
}

// openNode unlocks the identity for commands that use sessions.
func openNode(ctx context.Context) (*app.Node, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase required (-p)")
	}
	return wire.Open(ctx)
}

// parsePeer reads "<x500 name>@<group>"; the group defaults to ours.
func parsePeer(s string, local domain.HoldingIdentity) (domain.HoldingIdentity, error) {
	n, g := s, local.GroupID
	if i := strings.LastIndex(s, "@"); i >= 0 {
		n, g = s[:i], s[i+1:]
	}
	return domaintypes.NewHoldingIdentity(n, g)
}

func requireRelay() error {
	if wire.Relay == nil {
		return fmt.Errorf("no relay configured. use --relay")
	}
	return nil
}
