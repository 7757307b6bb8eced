package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledgerlink/internal/crypto"
)

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Publish your identity key to the relay directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			if err := requireRelay(); err != nil {
				return err
			}
			local, err := wire.Identity.LoadIdentity(passphrase)
			if err != nil {
				return err
			}
			rec, err := wire.Members.Register(cmd.Context(), local)
			if err != nil {
				return err
			}
			fmt.Printf("Registered %s (%s).\n", rec.Identity, crypto.Fingerprint(rec.PublicKey))
			return nil
		},
	}
}
