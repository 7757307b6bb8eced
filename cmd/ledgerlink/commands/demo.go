package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"ledgerlink/internal/app"
	domaintypes "ledgerlink/internal/domain/types"
	"ledgerlink/internal/relay"
)

const demoPassphrase = "Demo-Passphrase-1!"

// demo: two identities in temporary homes talk through an in-process relay.
func demoCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Negotiate a session between PartyA and PartyB and deliver one message",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir, err := os.MkdirTemp("", "ledgerlink-demo-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(dir)

			ln, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				return err
			}
			srv := &http.Server{Handler: relay.NewServer(logger).Router(), ReadHeaderTimeout: 5 * time.Second}
			go srv.Serve(ln)
			defer srv.Shutdown(context.Background())
			url := "http://" + ln.Addr().String()

			a, err := demoNode(ctx, filepath.Join(dir, "a"), url, "O=PartyA, L=London, C=GB")
			if err != nil {
				return err
			}
			defer a.Close()
			b, err := demoNode(ctx, filepath.Join(dir, "b"), url, "O=PartyB, L=New York, C=US")
			if err != nil {
				return err
			}
			defer b.Close()

			if _, err := a.Messages.Send(ctx, b.Local.Identity, []byte(message)); err != nil {
				return err
			}
			for round := 0; round < 5; round++ {
				msgs, err := b.Messages.Poll(ctx, 0)
				if err != nil {
					return err
				}
				if len(msgs) > 0 {
					printMessages(msgs)
					for _, s := range a.Sessions.Sessions() {
						fmt.Printf("session %s %s -> %s, %s, mode %s\n", s.SessionID, s.Role, s.Peer, s.Status, s.Mode)
					}
					return nil
				}
				if _, err := a.Messages.Poll(ctx, 0); err != nil {
					return err
				}
			}
			return fmt.Errorf("message not delivered")
		},
	}
	cmd.Flags().StringVar(&message, "message", "Hello from PartyA", "payload PartyA sends to PartyB")
	return cmd
}

func demoNode(ctx context.Context, dir, url, x500 string) (*app.Node, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}
	cfg.Home, cfg.Passphrase, cfg.RelayURL = dir, demoPassphrase, url
	w, err := app.NewWire(cfg)
	if err != nil {
		return nil, err
	}
	id, err := domaintypes.NewHoldingIdentity(x500, "demo-group")
	if err != nil {
		return nil, err
	}
	local, fp, err := w.Identity.GenerateIdentity(demoPassphrase, id, domaintypes.SignatureEd25519)
	if err != nil {
		return nil, err
	}
	if _, err := w.Members.Register(ctx, local); err != nil {
		return nil, err
	}
	fmt.Printf("%s fingerprint %s\n", id, fp)
	return w.Open(ctx)
}
