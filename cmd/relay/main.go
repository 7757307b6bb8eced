package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ledgerlink/internal/relay"
)

func main() {
	var (
		addr  string
		debug bool
	)
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "In-memory member directory and mailbox relay",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := zerolog.InfoLevel
			if debug {
				level = zerolog.DebugLevel
			}
			log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("component", "relay").Logger()

			srv := &http.Server{
				Addr:              addr,
				Handler:           relay.NewServer(log).Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			log.Info().Str("addr", addr).Msg("relay listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&debug, "debug", false, "log every request")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
