package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	domaintypes "ledgerlink/internal/domain/types"
)

func initCmd() *cobra.Command {
	var alg string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate the identity signing key and store it securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			id, err := domaintypes.NewHoldingIdentity(name, group)
			if err != nil {
				return fmt.Errorf("--name and --group: %w", err)
			}
			a, err := domaintypes.ParseSignatureAlgorithm(alg)
			if err != nil {
				return err
			}
			_, fp, err := wire.Identity.GenerateIdentity(passphrase, id, a)
			if err != nil {
				return err
			}
			fmt.Printf("Identity created for %s.\nFingerprint: %s\n", id, fp)
			return nil
		},
	}
	cmd.Flags().StringVar(&alg, "alg", "ed25519", "signing algorithm: ed25519 or ecdsa-p256-sha256")
	return cmd
}
