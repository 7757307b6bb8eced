package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledgerlink/internal/crypto"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Show your identity fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			local, err := wire.Identity.LoadIdentity(passphrase)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n%s\n", local.Identity, crypto.Fingerprint(local.PublicKey()))
			return nil
		},
	}
}
